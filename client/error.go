package client

import (
	"errors"
	"fmt"
)

// ErrIDExhausted is returned when the client half of the object ID
// space is used up. IDs are never reused, so this ends the session.
var ErrIDExhausted = errors.New("client object IDs exhausted")

// UnknownSenderIDError is returned by an attempt to dispatch an event
// from an object the session doesn't know about. The session and the
// compositor no longer agree on what the object IDs mean, so it is
// always fatal.
type UnknownSenderIDError struct {
	Sender uint32
	Op     uint16
}

func (err UnknownSenderIDError) Error() string {
	return fmt.Sprintf("unknown sender object ID: %v (opcode %v)", err.Sender, err.Op)
}

// UnknownOpError is returned by an attempt to dispatch an event with
// an opcode its sender's interface is not known to have. Like an
// unknown sender, it means the two ends of the connection have
// stopped agreeing and is always fatal.
type UnknownOpError struct {
	Interface string
	Op        uint16
}

func (err UnknownOpError) Error() string {
	return fmt.Sprintf("unknown event opcode for %v: %v", err.Interface, err.Op)
}

// ServerError is an error event from the display: the compositor has
// declared the session broken and will not process anything further
// from it.
type ServerError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (err ServerError) Error() string {
	return fmt.Sprintf("fatal server error on object %v: %v (code %v)", err.ObjectID, err.Message, err.Code)
}
