package client

import "deedles.dev/wlpane/wire"

// wl_compositor.
const compositorCreateSurfaceOp uint16 = 0

// createSurface creates the wl_surface that will become the window.
func (s *Session) createSurface() (uint32, error) {
	id, err := s.ids.Next()
	if err != nil {
		return 0, err
	}

	mb := wire.NewMessage(s.compositorID, compositorCreateSurfaceOp)
	mb.WriteUint(id)
	if err := s.send(mb); err != nil {
		return 0, err
	}
	return id, nil
}
