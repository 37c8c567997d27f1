package wire

import (
	"bytes"
	"errors"
	"os"
)

// EncodeMessage encodes msg into its wire form: header, payload, and
// zero padding out to a 4 byte boundary.
func EncodeMessage(msg Message) ([]byte, error) {
	size := HeaderSize + len(msg.Payload)
	if size > MaxMessageSize {
		return nil, BufferTooSmallError{Need: size, Have: MaxMessageSize}
	}

	buf := make([]byte, size+int(padding(uint32(size))))
	byteOrder.PutUint32(buf, msg.Sender)
	byteOrder.PutUint32(buf[4:], uint32(size)<<16|uint32(msg.Op))
	copy(buf[HeaderSize:], msg.Payload)
	return buf, nil
}

// EncodeString encodes s as a string argument at the front of dst:
// a length prefix counting the NUL terminator, the bytes, the
// terminator, and zero padding out to a 4 byte boundary. It returns
// the number of bytes written and never writes past the end of dst.
func EncodeString(dst []byte, s string) (int, error) {
	total := stringSize(s)
	if len(dst) < total {
		return 0, BufferTooSmallError{Need: total, Have: len(dst)}
	}

	byteOrder.PutUint32(dst, uint32(len(s)+1))
	n := copy(dst[4:], s)
	for i := 4 + n; i < total; i++ {
		dst[i] = 0
	}
	return total, nil
}

// stringSize is the encoded size of s: length prefix plus the
// NUL-terminated bytes padded to a 4 byte boundary.
func stringSize(s string) int {
	n := uint32(len(s) + 1)
	return 4 + int(n+padding(n))
}

// MessageBuilder assembles the payload of a single request. The Write
// methods record the first error encountered and turn the rest into
// no-ops, so a whole message can be built before checking anything.
type MessageBuilder struct {
	sender uint32
	op     uint16
	data   bytes.Buffer
	file   *os.File
	err    error
}

// NewMessage starts a request from the object with the given ID.
func NewMessage(sender uint32, op uint16) *MessageBuilder {
	return &MessageBuilder{
		sender: sender,
		op:     op,
	}
}

func (mb *MessageBuilder) WriteInt(v int32) {
	mb.WriteUint(uint32(v))
}

func (mb *MessageBuilder) WriteUint(v uint32) {
	if mb.err != nil {
		return
	}

	var data [4]byte
	byteOrder.PutUint32(data[:], v)
	mb.data.Write(data[:])
}

func (mb *MessageBuilder) WriteString(v string) {
	if mb.err != nil {
		return
	}

	buf := make([]byte, stringSize(v))
	if _, err := EncodeString(buf, v); err != nil {
		mb.err = err
		return
	}
	mb.data.Write(buf)
}

// WriteArray writes an array argument: a length prefix, the raw
// bytes, and zero padding out to a 4 byte boundary.
func (mb *MessageBuilder) WriteArray(v []byte) {
	if mb.err != nil {
		return
	}

	pad := padding(uint32(len(v)))
	mb.WriteUint(uint32(len(v)))
	mb.data.Write(v)
	for i := uint32(0); i < pad; i++ {
		mb.data.WriteByte(0)
	}
}

// WriteFile attaches f to the message as ancillary data. The
// descriptor travels out of band and contributes nothing to the
// payload. At most one file may be attached, and f must stay open
// until the message has been sent.
func (mb *MessageBuilder) WriteFile(f *os.File) {
	if mb.err != nil {
		return
	}
	if mb.file != nil {
		mb.err = errors.New("message already has a file attached")
		return
	}

	mb.file = f
}

// Message returns the assembled message. The payload aliases the
// builder's internal buffer.
func (mb *MessageBuilder) Message() Message {
	return Message{
		Sender:  mb.sender,
		Op:      mb.op,
		Payload: mb.data.Bytes(),
	}
}

// Bytes returns the assembled message in its wire form.
func (mb *MessageBuilder) Bytes() ([]byte, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	return EncodeMessage(mb.Message())
}

// Build encodes the message and sends it on c, along with the
// attached file descriptor if there is one. The builder should not be
// used again afterwards.
func (mb *MessageBuilder) Build(c *Conn) error {
	buf, err := mb.Bytes()
	if err != nil {
		return err
	}

	if mb.file != nil {
		return c.SendFile(buf, mb.file)
	}
	return c.Send(buf)
}
