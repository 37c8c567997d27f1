package client

import (
	"deedles.dev/wlpane/wire"
)

// wl_display, the connection singleton.
const (
	displaySyncOp        uint16 = 0
	displayGetRegistryOp uint16 = 1

	displayErrorEvent    uint16 = 0
	displayDeleteIDEvent uint16 = 1
)

// wl_callback, only ever created by sync.
const callbackDoneEvent uint16 = 0

// getRegistry asks the display for the registry. It is the first
// request of every session.
func (s *Session) getRegistry() error {
	id, err := s.ids.Next()
	if err != nil {
		return err
	}

	mb := wire.NewMessage(displayID, displayGetRegistryOp)
	mb.WriteUint(id)
	if err := s.send(mb); err != nil {
		return err
	}

	s.registryID = id
	return nil
}

// sync asks the display for a callback that fires once every request
// sent before it has been handled.
func (s *Session) sync() error {
	id, err := s.ids.Next()
	if err != nil {
		return err
	}

	mb := wire.NewMessage(displayID, displaySyncOp)
	mb.WriteUint(id)
	if err := s.send(mb); err != nil {
		return err
	}

	s.callbackID = id
	return nil
}

func (s *Session) displayEvent(msg wire.Message) error {
	switch msg.Op {
	case displayErrorEvent:
		r := msg.Reader()
		object := r.ReadUint()
		code := r.ReadUint()
		text := r.ReadString()
		if err := r.Err(); err != nil {
			return err
		}
		return ServerError{ObjectID: object, Code: code, Message: text}
	default:
		return UnknownOpError{Interface: "wl_display", Op: msg.Op}
	}
}

func (s *Session) callbackEvent(msg wire.Message) error {
	switch msg.Op {
	case callbackDoneEvent:
		r := msg.Reader()
		data := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("data", data).Debug("sync done")
		s.callbackID = 0
		return nil
	default:
		return UnknownOpError{Interface: "wl_callback", Op: msg.Op}
	}
}
