// Package client implements a single-window Wayland client: registry
// discovery, global binding, and the configure handshake that puts a
// shared memory buffer on screen as a toplevel window.
//
// A Session owns one connection and drives it synchronously. Events
// are received, decoded, and handled one at a time on the goroutine
// that calls Run; there is no background listener and no queue.
package client

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"sync"
	"time"

	"deedles.dev/wlpane/internal/debug"
	"deedles.dev/wlpane/internal/hexdump"
	"deedles.dev/wlpane/shm"
	"deedles.dev/wlpane/wire"
	"github.com/sirupsen/logrus"
)

const (
	// displayID is the ID of the wl_display singleton. It exists from
	// the moment the connection opens and is never allocated.
	displayID = 1

	// maxClientID is the highest object ID the client half of the
	// connection may allocate. IDs above it belong to the server.
	maxClientID = 0xFEFFFFFF

	// recvBufSize is the size of the receive scratch buffer, matching
	// the connection buffer size used by libwayland.
	recvBufSize = 4096
)

// idAllocator hands out client object IDs. The display owns ID 1, so
// allocation starts at 2 and only counts up; IDs are never reused.
type idAllocator struct {
	next uint32
}

func (a *idAllocator) Next() (uint32, error) {
	if a.next < displayID+1 {
		a.next = displayID + 1
	}
	if a.next > maxClientID {
		return 0, ErrIDExhausted
	}

	id := a.next
	a.next++
	return id, nil
}

// SurfaceState tracks how far the window has progressed through the
// configure handshake.
type SurfaceState int

const (
	// StateUnconfigured means the surface exists but the compositor
	// has not yet asked it to configure.
	StateUnconfigured SurfaceState = iota

	// StateConfigureAcked means the first configure has been
	// acknowledged and a frame may be attached.
	StateConfigureAcked

	// StateAttached means the frame is attached and committed; the
	// window is on screen.
	StateAttached
)

func (s SurfaceState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigureAcked:
		return "configure-acked"
	case StateAttached:
		return "attached"
	default:
		return fmt.Sprintf("SurfaceState(%d)", int(s))
	}
}

// Config describes the window a Session creates.
type Config struct {
	Title string
	Color color.Color
}

// Session drives one connection to a Wayland compositor. Sessions are
// not safe for concurrent use; everything happens on the goroutine
// that calls Run.
type Session struct {
	conn *wire.Conn
	log  logrus.FieldLogger
	buf  *shm.Buffer
	cfg  Config

	ids      idAllocator
	globals  map[uint32]Interface
	discover bool
	state    SurfaceState
	quit     bool

	// Object IDs, in the order the objects come to exist. Zero means
	// the object does not exist yet.
	registryID   uint32
	callbackID   uint32
	shmID        uint32
	compositorID uint32
	wmBaseID     uint32
	surfaceID    uint32
	xdgSurfaceID uint32
	toplevelID   uint32
	poolID       uint32
	bufferID     uint32

	closeOnce sync.Once
	closeErr  error
}

// New creates a window session. Once Run is called it binds the
// globals it needs and works toward putting buf on screen as a
// toplevel window. The session takes ownership of conn and buf and
// releases both on Close.
func New(conn *wire.Conn, buf *shm.Buffer, cfg Config, log logrus.FieldLogger) (*Session, error) {
	s := newSession(conn, log)
	s.buf = buf
	s.cfg = cfg
	if err := s.getRegistry(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDiscovery creates a session that only watches the registry: it
// records announced globals without binding anything.
func NewDiscovery(conn *wire.Conn, log logrus.FieldLogger) (*Session, error) {
	s := newSession(conn, log)
	s.discover = true
	if err := s.getRegistry(); err != nil {
		return nil, err
	}
	return s, nil
}

func newSession(conn *wire.Conn, log logrus.FieldLogger) *Session {
	return &Session{
		conn:    conn,
		log:     log,
		globals: make(map[uint32]Interface),
	}
}

// State reports how far the window has progressed.
func (s *Session) State() SurfaceState {
	return s.state
}

// Run receives and dispatches events until ctx is canceled, the
// compositor closes the window, or something goes fatally wrong.
// Fatal means fatal: nothing below Run retries, and an error return
// leaves the session good for nothing but Close.
func (s *Session) Run(ctx context.Context) error {
	return s.run(ctx, func() bool { return s.quit })
}

// RoundTrip sends a wl_display.sync and dispatches events until the
// compositor answers it. A finished round trip proves the compositor
// has processed every request sent before it.
func (s *Session) RoundTrip(ctx context.Context) error {
	if err := s.sync(); err != nil {
		return err
	}
	return s.run(ctx, func() bool { return s.callbackID == 0 || s.quit })
}

func (s *Session) run(ctx context.Context, stop func() bool) error {
	// A canceled context pokes a past deadline under a blocked Recv
	// so the loop can notice the cancellation.
	s.conn.SetReadDeadline(time.Time{})
	unhook := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer unhook()

	buf := make([]byte, recvBufSize)
	for {
		if ctx.Err() != nil || stop() {
			return nil
		}

		n, err := s.conn.Recv(buf)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}

		// stop is only consulted between reads: a message that
		// satisfies it does not drop the ones received behind it in
		// the same chunk.
		for off := 0; off < n; {
			msg, next, err := wire.DecodeMessage(buf[:n], off)
			if err != nil {
				return err
			}
			if err := s.Dispatch(msg); err != nil {
				return err
			}
			off = next
		}
	}
}

// Dispatch routes one event to its handler based on which object sent
// it. An event from an object the session does not know, or with an
// opcode its handler does not recognize, means the session and the
// compositor have desynced, and kills the session.
func (s *Session) Dispatch(msg wire.Message) error {
	if msg.Sender == 0 {
		return UnknownSenderIDError{Sender: msg.Sender, Op: msg.Op}
	}

	switch msg.Sender {
	case displayID:
		return s.displayEvent(msg)
	case s.registryID:
		return s.registryEvent(msg)
	case s.callbackID:
		return s.callbackEvent(msg)
	case s.shmID:
		return s.shmEvent(msg)
	case s.compositorID:
		return UnknownOpError{Interface: compositorInterface, Op: msg.Op}
	case s.surfaceID:
		return s.surfaceEvent(msg)
	case s.wmBaseID:
		return s.wmBaseEvent(msg)
	case s.xdgSurfaceID:
		return s.xdgSurfaceEvent(msg)
	case s.toplevelID:
		return s.toplevelEvent(msg)
	case s.poolID:
		return UnknownOpError{Interface: "wl_shm_pool", Op: msg.Op}
	case s.bufferID:
		return s.bufferEvent(msg)
	default:
		return UnknownSenderIDError{Sender: msg.Sender, Op: msg.Op}
	}
}

// send encodes and transmits one request.
func (s *Session) send(mb *wire.MessageBuilder) error {
	if debug.Enabled() {
		if b, err := mb.Bytes(); err == nil {
			msg := mb.Message()
			s.log.WithFields(logrus.Fields{
				"object": msg.Sender,
				"opcode": msg.Op,
			}).Debugf("send %v bytes\n%s", len(b), hexdump.Dump(b, 0))
		}
	}

	return mb.Build(s.conn)
}

// createWindow runs the chain from bare surface to toplevel window:
// create_surface, get_xdg_surface, get_toplevel, set_title, and the
// initial commit that asks the compositor for a configure. It fires
// once, as soon as all three required globals are bound.
func (s *Session) createWindow() error {
	surface, err := s.createSurface()
	if err != nil {
		return err
	}
	s.surfaceID = surface

	xdgSurface, err := s.getXdgSurface(surface)
	if err != nil {
		return err
	}
	s.xdgSurfaceID = xdgSurface

	toplevel, err := s.getToplevel()
	if err != nil {
		return err
	}
	s.toplevelID = toplevel

	if err := s.setTitle(s.cfg.Title); err != nil {
		return err
	}
	if err := s.commit(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"surface":     surface,
		"xdg_surface": xdgSurface,
		"toplevel":    toplevel,
	}).Info("window created")
	return nil
}

// configure acknowledges a configure event and, the first time
// through, attaches the frame. Every configure gets acknowledged, but
// later ones change nothing: the window never resizes or redraws.
func (s *Session) configure(serial uint32) error {
	if err := s.ackConfigure(serial); err != nil {
		return err
	}

	if s.state != StateUnconfigured {
		s.log.WithField("serial", serial).Debug("already configured")
		return nil
	}
	s.state = StateConfigureAcked
	s.log.WithField("serial", serial).Debug("configure acknowledged")

	return s.render()
}

// render shares the pixel buffer with the compositor and puts it on
// the surface: pool, buffer, fill, attach, commit.
func (s *Session) render() error {
	if err := s.createPool(); err != nil {
		return err
	}
	if err := s.createBuffer(); err != nil {
		return err
	}

	s.buf.Fill(s.cfg.Color)

	if err := s.attach(s.bufferID, 0, 0); err != nil {
		return err
	}
	if err := s.commit(); err != nil {
		return err
	}

	s.state = StateAttached
	s.log.WithFields(logrus.Fields{
		"width":  s.buf.Bounds().Dx(),
		"height": s.buf.Bounds().Dy(),
	}).Info("frame attached")
	return nil
}

// Close releases the connection and then the pixel buffer, in that
// order, exactly once. Calling it again returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		err := s.conn.Close()
		if s.buf != nil {
			if berr := s.buf.Close(); err == nil {
				err = berr
			}
		}
		s.closeErr = err
	})
	return s.closeErr
}
