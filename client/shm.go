package client

import (
	"fmt"

	"deedles.dev/wlpane/wire"
)

// wl_shm, wl_shm_pool, and wl_buffer.
const (
	shmCreatePoolOp uint16 = 0

	shmFormatEvent uint16 = 0

	shmPoolCreateBufferOp uint16 = 0

	bufferReleaseEvent uint16 = 0
)

// formatXRGB8888 is the pixel format of every buffer this client
// creates: 32 bits per pixel, upper byte ignored.
const formatXRGB8888 uint32 = 1

// createPool shares the frame's backing file with the compositor.
// The descriptor rides along as ancillary data; only the pool ID and
// the size appear in the payload.
func (s *Session) createPool() error {
	id, err := s.ids.Next()
	if err != nil {
		return err
	}

	mb := wire.NewMessage(s.shmID, shmCreatePoolOp)
	mb.WriteUint(id)
	mb.WriteInt(s.buf.Len())
	mb.WriteFile(s.buf.File())
	if err := s.send(mb); err != nil {
		return err
	}

	s.poolID = id
	return nil
}

// createBuffer carves a wl_buffer covering the whole pool.
func (s *Session) createBuffer() error {
	id, err := s.ids.Next()
	if err != nil {
		return err
	}

	mb := wire.NewMessage(s.poolID, shmPoolCreateBufferOp)
	mb.WriteUint(id)
	mb.WriteInt(0)
	mb.WriteInt(int32(s.buf.Bounds().Dx()))
	mb.WriteInt(int32(s.buf.Bounds().Dy()))
	mb.WriteInt(s.buf.Stride())
	mb.WriteUint(formatXRGB8888)
	if err := s.send(mb); err != nil {
		return err
	}

	s.bufferID = id
	return nil
}

func (s *Session) shmEvent(msg wire.Message) error {
	switch msg.Op {
	case shmFormatEvent:
		r := msg.Reader()
		format := r.ReadUint()
		if err := r.Err(); err != nil {
			return err
		}

		s.log.WithField("format", fmt.Sprintf("0x%08x", format)).Debug("pixel format advertised")
		return nil
	default:
		return UnknownOpError{Interface: shmInterface, Op: msg.Op}
	}
}

func (s *Session) bufferEvent(msg wire.Message) error {
	switch msg.Op {
	case bufferReleaseEvent:
		s.log.Debug("buffer released")
		return nil
	default:
		return UnknownOpError{Interface: "wl_buffer", Op: msg.Op}
	}
}
