package client

import "deedles.dev/wlpane/wire"

// wl_surface.
const (
	surfaceAttachOp uint16 = 1
	surfaceCommitOp uint16 = 6

	surfaceEnterEvent                    uint16 = 0
	surfaceLeaveEvent                    uint16 = 1
	surfacePreferredBufferScaleEvent     uint16 = 2
	surfacePreferredBufferTransformEvent uint16 = 3
)

// attach points the surface at a buffer. The pixels do not reach the
// screen until the next commit.
func (s *Session) attach(buffer uint32, x, y int32) error {
	mb := wire.NewMessage(s.surfaceID, surfaceAttachOp)
	mb.WriteUint(buffer)
	mb.WriteInt(x)
	mb.WriteInt(y)
	return s.send(mb)
}

// commit applies the surface's pending state.
func (s *Session) commit() error {
	mb := wire.NewMessage(s.surfaceID, surfaceCommitOp)
	return s.send(mb)
}

func (s *Session) surfaceEvent(msg wire.Message) error {
	switch msg.Op {
	case surfaceEnterEvent, surfaceLeaveEvent:
		r := msg.Reader()
		output := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}

		verb := "entered"
		if msg.Op == surfaceLeaveEvent {
			verb = "left"
		}
		s.log.WithField("output", output).Debugf("surface %v output", verb)
		return nil
	case surfacePreferredBufferScaleEvent:
		r := msg.Reader()
		scale := r.ReadInt()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("scale", scale).Debug("preferred buffer scale")
		return nil
	case surfacePreferredBufferTransformEvent:
		r := msg.Reader()
		transform := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("transform", transform).Debug("preferred buffer transform")
		return nil
	default:
		return UnknownOpError{Interface: "wl_surface", Op: msg.Op}
	}
}
