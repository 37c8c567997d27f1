package client

import (
	"deedles.dev/wlpane/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

// wl_registry.
const (
	registryBindOp uint16 = 0

	registryGlobalEvent       uint16 = 0
	registryGlobalRemoveEvent uint16 = 1
)

// Interface names of the globals a window needs.
const (
	shmInterface        = "wl_shm"
	compositorInterface = "wl_compositor"
	wmBaseInterface     = "xdg_wm_base"
)

// Interface identifies a global: its interface name and the highest
// version the compositor offers it at.
type Interface struct {
	Name    string
	Version uint32
}

// Globals returns the globals the compositor has announced so far,
// keyed by registry name.
func (s *Session) Globals() map[uint32]Interface {
	return maps.Clone(s.globals)
}

func (s *Session) registryEvent(msg wire.Message) error {
	switch msg.Op {
	case registryGlobalEvent:
		return s.global(msg)
	default:
		return UnknownOpError{Interface: "wl_registry", Op: msg.Op}
	}
}

func (s *Session) global(msg wire.Message) error {
	r := msg.Reader()
	name := r.ReadUint()
	inter := r.ReadString()
	version := r.ReadUint()
	if err := r.Err(); err != nil {
		return err
	}

	s.globals[name] = Interface{Name: inter, Version: version}
	s.log.WithFields(logrus.Fields{
		"name":      name,
		"interface": inter,
		"version":   version,
	}).Debug("global announced")

	if s.discover {
		return nil
	}

	var role *uint32
	switch inter {
	case shmInterface:
		role = &s.shmID
	case compositorInterface:
		role = &s.compositorID
	case wmBaseInterface:
		role = &s.wmBaseID
	default:
		return nil
	}
	if *role != 0 {
		return nil
	}

	id, err := s.bind(name, inter, version)
	if err != nil {
		return err
	}
	*role = id

	if s.shmID != 0 && s.compositorID != 0 && s.wmBaseID != 0 && s.surfaceID == 0 {
		return s.createWindow()
	}
	return nil
}

// bind binds an announced global to a fresh object ID, at the version
// the compositor advertised.
func (s *Session) bind(name uint32, inter string, version uint32) (uint32, error) {
	id, err := s.ids.Next()
	if err != nil {
		return 0, err
	}

	mb := wire.NewMessage(s.registryID, registryBindOp)
	mb.WriteUint(name)
	mb.WriteString(inter)
	mb.WriteUint(version)
	mb.WriteUint(id)
	if err := s.send(mb); err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"interface": inter,
		"version":   version,
		"id":        id,
	}).Info("bound global")
	return id, nil
}
