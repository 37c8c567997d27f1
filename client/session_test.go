package client

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"deedles.dev/wlpane/shm"
	"deedles.dev/wlpane/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"
	"golang.org/x/sys/unix"
)

// fake plays compositor on the far end of a socketpair: it reads the
// session's requests and stages events for it to dispatch.
type fake struct {
	t       *testing.T
	conn    *net.UnixConn
	pending []wire.Message
	files   []*os.File
}

func newFake(t *testing.T) (*wire.Conn, *fake) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	cf := os.NewFile(uintptr(fds[0]), "session")
	defer cf.Close()
	ff := os.NewFile(uintptr(fds[1]), "compositor")
	defer ff.Close()

	cc, err := net.FileConn(cf)
	require.NoError(t, err)
	fc, err := net.FileConn(ff)
	require.NoError(t, err)

	conn := wire.NewConn(cc.(*net.UnixConn))
	f := &fake{t: t, conn: fc.(*net.UnixConn)}
	t.Cleanup(func() {
		conn.Close()
		f.conn.Close()
		for _, file := range f.files {
			file.Close()
		}
	})
	return conn, f
}

// read returns the next request the session sent. Descriptors that
// arrive as ancillary data are collected into f.files.
func (f *fake) read() wire.Message {
	f.t.Helper()

	if len(f.pending) == 0 {
		buf := make([]byte, 4096)
		oob := make([]byte, 512)
		f.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, oobn, _, _, err := f.conn.ReadMsgUnix(buf, oob)
		require.NoError(f.t, err)

		if oobn > 0 {
			cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
			require.NoError(f.t, err)
			for i := range cmsgs {
				fds, err := unix.ParseUnixRights(&cmsgs[i])
				if err != nil {
					continue
				}
				for _, fd := range fds {
					f.files = append(f.files, os.NewFile(uintptr(fd), "shared"))
				}
			}
		}

		for off := 0; off < n; {
			msg, next, err := wire.DecodeMessage(buf[:n], off)
			require.NoError(f.t, err)
			msg.Payload = append([]byte(nil), msg.Payload...)
			f.pending = append(f.pending, msg)
			off = next
		}
	}

	require.NotEmpty(f.t, f.pending, "no request pending")
	msg := f.pending[0]
	f.pending = f.pending[1:]
	return msg
}

// send stages an event for the session.
func (f *fake) send(sender uint32, op uint16, args func(*wire.MessageBuilder)) {
	f.t.Helper()

	mb := wire.NewMessage(sender, op)
	if args != nil {
		args(mb)
	}
	buf, err := mb.Bytes()
	require.NoError(f.t, err)
	_, err = f.conn.Write(buf)
	require.NoError(f.t, err)
}

// pump reads one chunk from the connection and dispatches every
// message in it, the way Run's inner loop does.
func pump(t *testing.T, s *Session) error {
	t.Helper()

	buf := make([]byte, recvBufSize)
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := s.conn.Recv(buf)
	require.NoError(t, err)
	s.conn.SetReadDeadline(time.Time{})

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
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestSession(t *testing.T) (*Session, *fake) {
	t.Helper()

	conn, f := newFake(t)
	buf, err := shm.NewBuffer(8, 8)
	require.NoError(t, err)

	s, err := New(conn, buf, Config{Title: "pane", Color: colornames.Cadetblue}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, f
}

// windowUp drives a session all the way to an attached frame and
// drains every request it sent along the way.
func windowUp(t *testing.T) (*Session, *fake) {
	t.Helper()

	s, f := newTestSession(t)
	f.read() // get_registry

	for i, inter := range []string{"wl_shm", "wl_compositor", "xdg_wm_base"} {
		name := uint32(i + 1)
		f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
			mb.WriteUint(name)
			mb.WriteString(inter)
			mb.WriteUint(1)
		})
	}
	require.NoError(t, pump(t, s))
	for i := 0; i < 8; i++ { // 3 binds plus the window chain
		f.read()
	}

	f.send(7, xdgSurfaceConfigureEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(1) })
	require.NoError(t, pump(t, s))
	for i := 0; i < 5; i++ { // ack, pool, buffer, attach, commit
		f.read()
	}

	require.Equal(t, StateAttached, s.State())
	return s, f
}

func TestSessionWindowFlow(t *testing.T) {
	s, f := newTestSession(t)

	// The registry request goes out before any event arrives.
	msg := f.read()
	assert.Equal(t, uint32(displayID), msg.Sender)
	assert.Equal(t, displayGetRegistryOp, msg.Op)
	assert.Equal(t, uint32(2), msg.Reader().ReadUint())

	// Announce the three required globals plus one the session has no
	// use for.
	globals := []struct {
		name    uint32
		inter   string
		version uint32
	}{
		{1, "wl_shm", 1},
		{2, "wl_seat", 7},
		{3, "wl_compositor", 4},
		{4, "xdg_wm_base", 2},
	}
	for _, g := range globals {
		f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
			mb.WriteUint(g.name)
			mb.WriteString(g.inter)
			mb.WriteUint(g.version)
		})
	}
	require.NoError(t, pump(t, s))

	// Binds happen in announce order, at the announced version, with
	// IDs counting up from the registry's.
	bind := f.read()
	assert.Equal(t, uint32(2), bind.Sender)
	assert.Equal(t, registryBindOp, bind.Op)
	r := bind.Reader()
	assert.Equal(t, uint32(1), r.ReadUint())
	assert.Equal(t, "wl_shm", r.ReadString())
	assert.Equal(t, uint32(1), r.ReadUint())
	assert.Equal(t, uint32(3), r.ReadUint())
	require.NoError(t, r.Err())

	bind = f.read()
	r = bind.Reader()
	assert.Equal(t, uint32(3), r.ReadUint())
	assert.Equal(t, "wl_compositor", r.ReadString())
	assert.Equal(t, uint32(4), r.ReadUint())
	assert.Equal(t, uint32(4), r.ReadUint())

	bind = f.read()
	r = bind.Reader()
	assert.Equal(t, uint32(4), r.ReadUint())
	assert.Equal(t, "xdg_wm_base", r.ReadString())
	assert.Equal(t, uint32(2), r.ReadUint())
	assert.Equal(t, uint32(5), r.ReadUint())

	// With all three globals bound, the window chain fires on its own.
	createSurface := f.read()
	assert.Equal(t, uint32(4), createSurface.Sender)
	assert.Equal(t, compositorCreateSurfaceOp, createSurface.Op)
	assert.Equal(t, uint32(6), createSurface.Reader().ReadUint())

	getXdg := f.read()
	assert.Equal(t, uint32(5), getXdg.Sender)
	assert.Equal(t, wmBaseGetXdgSurfaceOp, getXdg.Op)
	r = getXdg.Reader()
	assert.Equal(t, uint32(7), r.ReadUint())
	assert.Equal(t, uint32(6), r.ReadUint())

	getTop := f.read()
	assert.Equal(t, uint32(7), getTop.Sender)
	assert.Equal(t, xdgSurfaceGetToplevelOp, getTop.Op)
	assert.Equal(t, uint32(8), getTop.Reader().ReadUint())

	title := f.read()
	assert.Equal(t, uint32(8), title.Sender)
	assert.Equal(t, toplevelSetTitleOp, title.Op)
	assert.Equal(t, "pane", title.Reader().ReadString())

	commit := f.read()
	assert.Equal(t, uint32(6), commit.Sender)
	assert.Equal(t, surfaceCommitOp, commit.Op)
	assert.Empty(t, commit.Payload)

	assert.Equal(t, StateUnconfigured, s.State())

	// The configure is acknowledged and answered with a frame.
	f.send(7, xdgSurfaceConfigureEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(42)
	})
	require.NoError(t, pump(t, s))

	ack := f.read()
	assert.Equal(t, uint32(7), ack.Sender)
	assert.Equal(t, xdgSurfaceAckConfigureOp, ack.Op)
	assert.Equal(t, uint32(42), ack.Reader().ReadUint())

	pool := f.read()
	assert.Equal(t, uint32(3), pool.Sender)
	assert.Equal(t, shmCreatePoolOp, pool.Op)
	r = pool.Reader()
	assert.Equal(t, uint32(9), r.ReadUint())
	assert.Equal(t, int32(256), r.ReadInt())
	require.NoError(t, r.Err())
	assert.Len(t, pool.Payload, 8, "descriptor must ride out of band, not in the payload")
	require.Len(t, f.files, 1)

	buffer := f.read()
	assert.Equal(t, uint32(9), buffer.Sender)
	assert.Equal(t, shmPoolCreateBufferOp, buffer.Op)
	r = buffer.Reader()
	assert.Equal(t, uint32(10), r.ReadUint())
	assert.Equal(t, int32(0), r.ReadInt())
	assert.Equal(t, int32(8), r.ReadInt())
	assert.Equal(t, int32(8), r.ReadInt())
	assert.Equal(t, int32(32), r.ReadInt())
	assert.Equal(t, formatXRGB8888, r.ReadUint())
	require.NoError(t, r.Err())

	attach := f.read()
	assert.Equal(t, uint32(6), attach.Sender)
	assert.Equal(t, surfaceAttachOp, attach.Op)
	r = attach.Reader()
	assert.Equal(t, uint32(10), r.ReadUint())
	assert.Equal(t, int32(0), r.ReadInt())
	assert.Equal(t, int32(0), r.ReadInt())

	commit = f.read()
	assert.Equal(t, uint32(6), commit.Sender)
	assert.Equal(t, surfaceCommitOp, commit.Op)

	assert.Equal(t, StateAttached, s.State())

	// The pixels were filled before attach and are visible through the
	// received descriptor. Cadet blue is RGB(95, 158, 160), stored
	// B, G, R, X.
	pixels := make([]byte, 4)
	_, err := f.files[0].ReadAt(pixels, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{160, 158, 95, 0}, pixels)
}

func TestSessionBindsGlobalsAnyOrder(t *testing.T) {
	s, f := newTestSession(t)
	f.read() // get_registry

	// The same three roles windowUp announces, in the opposite order.
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(1)
		mb.WriteString("xdg_wm_base")
		mb.WriteUint(2)
	})
	require.NoError(t, pump(t, s))

	bind := f.read()
	assert.Equal(t, registryBindOp, bind.Op)
	r := bind.Reader()
	assert.Equal(t, uint32(1), r.ReadUint())
	assert.Equal(t, "xdg_wm_base", r.ReadString())
	assert.Equal(t, uint32(2), r.ReadUint())
	assert.Equal(t, uint32(3), r.ReadUint())
	require.NoError(t, r.Err())

	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(2)
		mb.WriteString("wl_compositor")
		mb.WriteUint(4)
	})
	require.NoError(t, pump(t, s))

	bind = f.read()
	r = bind.Reader()
	assert.Equal(t, uint32(2), r.ReadUint())
	assert.Equal(t, "wl_compositor", r.ReadString())
	assert.Equal(t, uint32(4), r.ReadUint())
	assert.Equal(t, uint32(4), r.ReadUint())

	// Two roles of three are bound, so no window yet: the pong
	// answering this ping must be the next request on the wire.
	f.send(3, wmBasePingEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(5) })
	require.NoError(t, pump(t, s))
	pong := f.read()
	assert.Equal(t, wmBasePongOp, pong.Op)

	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(3)
		mb.WriteString("wl_shm")
		mb.WriteUint(1)
	})
	require.NoError(t, pump(t, s))

	bind = f.read()
	r = bind.Reader()
	assert.Equal(t, uint32(3), r.ReadUint())
	assert.Equal(t, "wl_shm", r.ReadString())
	assert.Equal(t, uint32(1), r.ReadUint())
	assert.Equal(t, uint32(5), r.ReadUint())

	// The third bind completes the set and fires the window chain with
	// the usual IDs, whatever order the roles arrived in.
	createSurface := f.read()
	assert.Equal(t, uint32(4), createSurface.Sender)
	assert.Equal(t, compositorCreateSurfaceOp, createSurface.Op)
	assert.Equal(t, uint32(6), createSurface.Reader().ReadUint())

	getXdg := f.read()
	assert.Equal(t, uint32(3), getXdg.Sender)
	assert.Equal(t, wmBaseGetXdgSurfaceOp, getXdg.Op)
	r = getXdg.Reader()
	assert.Equal(t, uint32(7), r.ReadUint())
	assert.Equal(t, uint32(6), r.ReadUint())

	getTop := f.read()
	assert.Equal(t, uint32(7), getTop.Sender)
	assert.Equal(t, xdgSurfaceGetToplevelOp, getTop.Op)
	assert.Equal(t, uint32(8), getTop.Reader().ReadUint())

	f.read() // set_title
	f.read() // initial commit

	f.send(7, xdgSurfaceConfigureEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(11) })
	require.NoError(t, pump(t, s))

	ack := f.read()
	assert.Equal(t, xdgSurfaceAckConfigureOp, ack.Op)
	assert.Equal(t, uint32(11), ack.Reader().ReadUint())
	for i := 0; i < 4; i++ { // pool, buffer, attach, commit
		f.read()
	}
	assert.Equal(t, StateAttached, s.State())
}

func TestSessionSecondConfigureOnlyAcks(t *testing.T) {
	s, f := windowUp(t)

	f.send(7, xdgSurfaceConfigureEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(9) })
	require.NoError(t, pump(t, s))

	ack := f.read()
	assert.Equal(t, xdgSurfaceAckConfigureOp, ack.Op)
	assert.Equal(t, uint32(9), ack.Reader().ReadUint())
	assert.Equal(t, StateAttached, s.State())

	// Nothing besides the ack went out: the next request on the wire
	// is the pong answering a ping sent afterwards.
	f.send(5, wmBasePingEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(33) })
	require.NoError(t, pump(t, s))

	pong := f.read()
	assert.Equal(t, uint32(5), pong.Sender)
	assert.Equal(t, wmBasePongOp, pong.Op)
	assert.Equal(t, uint32(33), pong.Reader().ReadUint())
}

func TestSessionPong(t *testing.T) {
	s, f := newTestSession(t)
	f.read()

	// Pings must be answered at any point in the session's life, even
	// before anything is bound.
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(1)
		mb.WriteString("xdg_wm_base")
		mb.WriteUint(5)
	})
	require.NoError(t, pump(t, s))
	f.read() // bind

	f.send(3, wmBasePingEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(7) })
	require.NoError(t, pump(t, s))

	pong := f.read()
	assert.Equal(t, uint32(3), pong.Sender)
	assert.Equal(t, wmBasePongOp, pong.Op)
	assert.Equal(t, uint32(7), pong.Reader().ReadUint())
}

func TestSessionToleratesAdvisoryEvents(t *testing.T) {
	s, f := windowUp(t)

	f.send(3, shmFormatEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(0) })
	f.send(10, bufferReleaseEvent, nil)
	f.send(8, toplevelConfigureEvent, func(mb *wire.MessageBuilder) {
		mb.WriteInt(800)
		mb.WriteInt(600)
		mb.WriteArray([]byte{1, 0, 0, 0})
	})
	f.send(8, toplevelConfigureBoundsEvent, func(mb *wire.MessageBuilder) {
		mb.WriteInt(1920)
		mb.WriteInt(1080)
	})
	f.send(8, toplevelWmCapabilitiesEvent, func(mb *wire.MessageBuilder) {
		mb.WriteArray([]byte{2, 0, 0, 0, 3, 0, 0, 0})
	})
	f.send(6, surfaceEnterEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(99) })
	f.send(6, surfaceLeaveEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(99) })
	f.send(6, surfacePreferredBufferScaleEvent, func(mb *wire.MessageBuilder) { mb.WriteInt(2) })
	f.send(6, surfacePreferredBufferTransformEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(0) })

	require.NoError(t, pump(t, s))
	assert.Equal(t, StateAttached, s.State())
}

func TestSessionRunStopsOnClose(t *testing.T) {
	s, f := windowUp(t)

	f.send(8, toplevelCloseEvent, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.NoError(t, ctx.Err(), "Run must return because of the close event, not the guard timeout")
	assert.True(t, s.quit)
}

func TestSessionRunReturnsOnCancel(t *testing.T) {
	s, _ := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond) // let Run block in Recv
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSessionRunSurfacesServerError(t *testing.T) {
	s, f := newTestSession(t)
	f.read()

	f.send(1, displayErrorEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(2)
		mb.WriteUint(1)
		mb.WriteString("bad bind")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Run(ctx)

	var serverErr ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "bad bind", serverErr.Message)
}

func TestDiscoveryRoundTrip(t *testing.T) {
	conn, f := newFake(t)
	s, err := NewDiscovery(conn, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := f.read()
	assert.Equal(t, displayGetRegistryOp, reg.Op)

	// Stage the announcements and the sync answer up front; the
	// callback is the next ID after the registry.
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(1)
		mb.WriteString("wl_compositor")
		mb.WriteUint(6)
	})
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(2)
		mb.WriteString("wl_output")
		mb.WriteUint(4)
	})
	f.send(3, callbackDoneEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(0) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.RoundTrip(ctx))
	assert.NoError(t, ctx.Err())

	syncMsg := f.read()
	assert.Equal(t, uint32(displayID), syncMsg.Sender)
	assert.Equal(t, displaySyncOp, syncMsg.Op)
	assert.Equal(t, uint32(3), syncMsg.Reader().ReadUint())

	// Everything was recorded, nothing was bound.
	globals := s.Globals()
	require.Len(t, globals, 2)
	assert.Equal(t, Interface{Name: "wl_compositor", Version: 6}, globals[1])
	assert.Equal(t, Interface{Name: "wl_output", Version: 4}, globals[2])
	assert.Zero(t, s.compositorID)
	assert.Equal(t, StateUnconfigured, s.State())
}

func TestRoundTripDispatchesWholeChunk(t *testing.T) {
	conn, f := newFake(t)
	s, err := NewDiscovery(conn, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f.read() // get_registry

	// The second announcement arrives in the same chunk as the sync
	// answer, behind it. It must be dispatched, not dropped.
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(1)
		mb.WriteString("wl_output")
		mb.WriteUint(4)
	})
	f.send(3, callbackDoneEvent, func(mb *wire.MessageBuilder) { mb.WriteUint(0) })
	f.send(2, registryGlobalEvent, func(mb *wire.MessageBuilder) {
		mb.WriteUint(2)
		mb.WriteString("wl_compositor")
		mb.WriteUint(6)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.RoundTrip(ctx))
	assert.NoError(t, ctx.Err())

	globals := s.Globals()
	require.Len(t, globals, 2)
	assert.Equal(t, Interface{Name: "wl_output", Version: 4}, globals[1])
	assert.Equal(t, Interface{Name: "wl_compositor", Version: 6}, globals[2])
}

func TestSessionCloseIdempotent(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
