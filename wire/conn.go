package wire

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SocketPath determines the path to the compositor's Unix domain
// socket from the environment. $WAYLAND_DISPLAY defaults to wayland-0
// and is used as-is when absolute; otherwise it is joined with
// $XDG_RUNTIME_DIR, which must be set. SocketPath does not check that
// anything is actually listening there.
func SocketPath() (string, error) {
	display, ok := os.LookupEnv("WAYLAND_DISPLAY")
	if !ok {
		display = "wayland-0"
	}
	if filepath.IsAbs(display) {
		return display, nil
	}

	dir, ok := os.LookupEnv("XDG_RUNTIME_DIR")
	if !ok {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(dir, display), nil
}

// Conn is a connection to a Wayland compositor. Its methods are not
// safe for concurrent use.
type Conn struct {
	conn *net.UnixConn
}

// NewConn creates a new Conn that wraps c. After this is called, use
// the provided Close method to close c instead of calling its own
// Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{
		conn: c,
	}
}

// Dial opens a connection to the compositor socket named by the
// current environment. It follows the procedure outlined at
// https://wayland-book.com/protocol-design/wire-protocol.html#transports
func Dial() (*Conn, error) {
	if v, ok := os.LookupEnv("WAYLAND_SOCKET"); ok {
		fd, err := strconv.ParseInt(v, 10, 0)
		if err != nil {
			return nil, errors.Wrap(err, "parse WAYLAND_SOCKET fd")
		}
		file := os.NewFile(uintptr(fd), "WAYLAND_SOCKET")
		defer file.Close()

		c, err := net.FileConn(file)
		if err != nil {
			return nil, errors.Wrap(err, "open WAYLAND_SOCKET connection")
		}
		return NewConn(c.(*net.UnixConn)), nil
	}

	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	s, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to wayland socket %q", path)
	}
	return NewConn(s.(*net.UnixConn)), nil
}

// Send transmits one encoded message. A partial transmission is an
// error; nothing resends the remainder.
func (c *Conn) Send(buf []byte) error {
	n, err := c.conn.Write(buf)
	if err != nil {
		return SendError{Wrote: n, Want: len(buf), Err: err}
	}
	if n < len(buf) {
		return SendError{Wrote: n, Want: len(buf)}
	}
	return nil
}

// SendFile transmits one encoded message with f's descriptor attached
// as SCM_RIGHTS ancillary data. The descriptor rides alongside the
// message; it never appears in the payload.
func (c *Conn) SendFile(buf []byte, f *os.File) error {
	rights := unix.UnixRights(int(f.Fd()))
	n, _, err := c.conn.WriteMsgUnix(buf, rights, nil)
	if err != nil {
		return SendError{Wrote: n, Want: len(buf), Err: err}
	}
	if n < len(buf) {
		return SendError{Wrote: n, Want: len(buf)}
	}
	return nil
}

// Recv reads whatever the compositor has sent into buf and returns
// the number of bytes read. A single read may carry several messages
// or none at all; the caller frames them with DecodeMessage.
func (c *Conn) Recv(buf []byte) (int, error) {
	n, err := c.conn.Read(buf)
	if err != nil {
		return n, RecvError{Err: err}
	}
	return n, nil
}

// SetReadDeadline sets the deadline for future and pending Recv
// calls. Poking a past deadline is how a blocked Recv gets unstuck
// when the session is told to shut down.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
