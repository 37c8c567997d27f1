package client

import (
	"deedles.dev/wlpane/wire"
	"github.com/sirupsen/logrus"
)

// xdg_wm_base.
const (
	wmBaseGetXdgSurfaceOp uint16 = 2
	wmBasePongOp          uint16 = 3

	wmBasePingEvent uint16 = 0
)

// xdg_surface.
const (
	xdgSurfaceGetToplevelOp  uint16 = 1
	xdgSurfaceAckConfigureOp uint16 = 4

	xdgSurfaceConfigureEvent uint16 = 0
)

// xdg_toplevel.
const (
	toplevelSetTitleOp uint16 = 2

	toplevelConfigureEvent       uint16 = 0
	toplevelCloseEvent           uint16 = 1
	toplevelConfigureBoundsEvent uint16 = 2
	toplevelWmCapabilitiesEvent  uint16 = 3
)

// getXdgSurface wraps the wl_surface in an xdg_surface so the shell
// can manage it.
func (s *Session) getXdgSurface(surface uint32) (uint32, error) {
	id, err := s.ids.Next()
	if err != nil {
		return 0, err
	}

	mb := wire.NewMessage(s.wmBaseID, wmBaseGetXdgSurfaceOp)
	mb.WriteUint(id)
	mb.WriteUint(surface)
	if err := s.send(mb); err != nil {
		return 0, err
	}
	return id, nil
}

// getToplevel gives the xdg_surface the toplevel window role.
func (s *Session) getToplevel() (uint32, error) {
	id, err := s.ids.Next()
	if err != nil {
		return 0, err
	}

	mb := wire.NewMessage(s.xdgSurfaceID, xdgSurfaceGetToplevelOp)
	mb.WriteUint(id)
	if err := s.send(mb); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Session) setTitle(title string) error {
	mb := wire.NewMessage(s.toplevelID, toplevelSetTitleOp)
	mb.WriteString(title)
	return s.send(mb)
}

// pong answers a ping so the compositor keeps considering the client
// alive.
func (s *Session) pong(serial uint32) error {
	mb := wire.NewMessage(s.wmBaseID, wmBasePongOp)
	mb.WriteUint(serial)
	return s.send(mb)
}

// ackConfigure tells the compositor the configure it sent has been
// acted on. The next commit completes the handshake.
func (s *Session) ackConfigure(serial uint32) error {
	mb := wire.NewMessage(s.xdgSurfaceID, xdgSurfaceAckConfigureOp)
	mb.WriteUint(serial)
	return s.send(mb)
}

func (s *Session) wmBaseEvent(msg wire.Message) error {
	switch msg.Op {
	case wmBasePingEvent:
		r := msg.Reader()
		serial := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("serial", serial).Debug("ping")
		return s.pong(serial)
	default:
		return UnknownOpError{Interface: wmBaseInterface, Op: msg.Op}
	}
}

func (s *Session) xdgSurfaceEvent(msg wire.Message) error {
	switch msg.Op {
	case xdgSurfaceConfigureEvent:
		r := msg.Reader()
		serial := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}
		return s.configure(serial)
	default:
		return UnknownOpError{Interface: "xdg_surface", Op: msg.Op}
	}
}

func (s *Session) toplevelEvent(msg wire.Message) error {
	switch msg.Op {
	case toplevelConfigureEvent:
		r := msg.Reader()
		width := r.ReadInt()
		height := r.ReadInt()
		states := r.ReadArray()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"width":  width,
			"height": height,
			"states": len(states) / 4,
		}).Debug("toplevel configure")
		return nil
	case toplevelCloseEvent:
		s.log.Info("compositor closed the window")
		s.quit = true
		return nil
	case toplevelConfigureBoundsEvent:
		r := msg.Reader()
		width := r.ReadInt()
		height := r.ReadInt()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"width":  width,
			"height": height,
		}).Debug("configure bounds")
		return nil
	case toplevelWmCapabilitiesEvent:
		r := msg.Reader()
		caps := r.ReadArray()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("capabilities", len(caps)/4).Debug("wm capabilities")
		return nil
	default:
		return UnknownOpError{Interface: "xdg_toplevel", Op: msg.Op}
	}
}
