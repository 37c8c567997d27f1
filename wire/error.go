package wire

import (
	"fmt"
)

// MalformedHeaderError is returned by DecodeMessage when a header's
// declared size cannot be honored. It is always fatal: once a size
// field is untrustworthy the stream has no message boundaries left.
type MalformedHeaderError struct {
	Sender    uint32
	Op        uint16
	Size      int
	Remaining int
}

func (err MalformedHeaderError) Error() string {
	switch {
	case err.Remaining < HeaderSize:
		return fmt.Sprintf("message truncated: %v bytes remaining, need at least %v for a header", err.Remaining, HeaderSize)
	case err.Size < HeaderSize:
		return fmt.Sprintf("message from object %v declares size %v, smaller than its own header", err.Sender, err.Size)
	default:
		return fmt.Sprintf("message from object %v declares size %v with only %v bytes remaining", err.Sender, err.Size, err.Remaining)
	}
}

// MalformedPayloadError is returned when an argument does not fit
// inside the message that carries it.
type MalformedPayloadError struct {
	Reason string
}

func (err MalformedPayloadError) Error() string {
	return "malformed payload: " + err.Reason
}

// BufferTooSmallError is returned by the encoding functions when the
// destination cannot hold the encoded form. Nothing is written
// past the end of the destination.
type BufferTooSmallError struct {
	Need int
	Have int
}

func (err BufferTooSmallError) Error() string {
	return fmt.Sprintf("buffer too small: need %v bytes, have %v", err.Need, err.Have)
}

// SendError reports a message that did not reach the compositor in
// full, either because the write failed or because it was short.
type SendError struct {
	Wrote int
	Want  int
	Err   error
}

func (err SendError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("send message: %v", err.Err)
	}
	return fmt.Sprintf("short send: wrote %v of %v bytes", err.Wrote, err.Want)
}

func (err SendError) Unwrap() error { return err.Err }

// RecvError reports a failed read from the compositor, including the
// compositor closing the connection.
type RecvError struct {
	Err error
}

func (err RecvError) Error() string {
	return fmt.Sprintf("receive from compositor: %v", err.Err)
}

func (err RecvError) Unwrap() error { return err.Err }
