// Package wire implements the Wayland wire format and the Unix domain
// socket transport that carries it.
//
// A message is an 8 byte header followed by a payload. The header is
// the sender's object ID and then a second word packing the total
// message size, header included, into the upper 16 bits and the opcode
// into the lower 16. Every argument inside the payload is padded to a
// 4 byte boundary. Integers travel in the host's byte order, as both
// ends of the connection always share a machine.
package wire

import (
	"encoding/binary"
	"unsafe"
)

// byteOrder is the host byte order.
var byteOrder binary.ByteOrder = binary.LittleEndian

func init() {
	n := uint32(1)
	b := (*[4]byte)(unsafe.Pointer(&n))
	if b[0] == 0 {
		byteOrder = binary.BigEndian
	}
}

const (
	// HeaderSize is the size of a message header.
	HeaderSize = 8

	// MaxMessageSize is the largest total message size that the
	// header's 16 bit size field can describe.
	MaxMessageSize = 0xFFFF
)

// padding returns the number of bytes needed to pad size up to a
// 4 byte boundary.
func padding(size uint32) uint32 {
	return (4 - (size & 3)) & 3
}

// Message is a single message, either an event received from the
// compositor or a request on its way to it.
type Message struct {
	// Sender is the ID of the object that the message concerns.
	Sender uint32

	// Op is the opcode, scoped to the sender's interface.
	Op uint16

	// Payload is the message body without the header or trailing
	// padding. After a decode it aliases the buffer that the message
	// was decoded from and is only valid until that buffer is reused.
	Payload []byte
}
