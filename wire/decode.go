package wire

// DecodeMessage decodes the message starting at off in buf and
// returns it along with the offset of the message that follows it.
// The returned payload aliases buf.
//
// Sizes come from the peer and are never trusted: a header that does
// not fit, declares less than its own size, or runs past the end of
// buf is reported as a MalformedHeaderError. Framing cannot recover
// once a size field is wrong, so any error from DecodeMessage ends
// the connection.
func DecodeMessage(buf []byte, off int) (Message, int, error) {
	if off < 0 || len(buf)-off < HeaderSize {
		return Message{}, 0, MalformedHeaderError{Remaining: max(len(buf)-off, 0)}
	}

	sender := byteOrder.Uint32(buf[off:])
	so := byteOrder.Uint32(buf[off+4:])
	size := int(so >> 16)
	op := uint16(so & 0xFFFF)

	if size < HeaderSize {
		return Message{}, 0, MalformedHeaderError{Sender: sender, Op: op, Size: size, Remaining: len(buf) - off}
	}
	total := size + int(padding(uint32(size)))
	if total > len(buf)-off {
		return Message{}, 0, MalformedHeaderError{Sender: sender, Op: op, Size: size, Remaining: len(buf) - off}
	}

	msg := Message{
		Sender:  sender,
		Op:      op,
		Payload: buf[off+HeaderSize : off+size],
	}
	return msg, off + total, nil
}

// DecodeString decodes a string argument starting at off in buf and
// returns it along with the offset of the argument that follows it.
// The length prefix counts the NUL terminator; a zero length is the
// null string and decodes as empty with no terminator or padding.
func DecodeString(buf []byte, off int) (string, int, error) {
	if off < 0 || len(buf)-off < 4 {
		return "", 0, MalformedPayloadError{Reason: "string length truncated"}
	}

	length := byteOrder.Uint32(buf[off:])
	off += 4
	if length == 0 {
		return "", off, nil
	}

	total := uint64(length) + uint64(padding(length))
	if total > uint64(len(buf)-off) {
		return "", 0, MalformedPayloadError{Reason: "string extends past end of message"}
	}
	if buf[off+int(length)-1] != 0 {
		return "", 0, MalformedPayloadError{Reason: "string is not null-terminated"}
	}

	return string(buf[off : off+int(length)-1]), off + int(total), nil
}

// Reader returns a reader that decodes msg's arguments in order.
func (msg Message) Reader() *MessageReader {
	return &MessageReader{payload: msg.Payload}
}

// MessageReader decodes the arguments of a single message in order.
// It records the first error it hits and turns the remaining reads
// into no-ops, so a whole payload can be read before checking
// anything.
type MessageReader struct {
	payload []byte
	off     int
	err     error
}

func (r *MessageReader) ReadUint() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.payload)-r.off < 4 {
		r.err = MalformedPayloadError{Reason: "integer argument truncated"}
		return 0
	}

	v := byteOrder.Uint32(r.payload[r.off:])
	r.off += 4
	return v
}

func (r *MessageReader) ReadInt() int32 {
	return int32(r.ReadUint())
}

func (r *MessageReader) ReadString() string {
	if r.err != nil {
		return ""
	}

	s, off, err := DecodeString(r.payload, r.off)
	if err != nil {
		r.err = err
		return ""
	}
	r.off = off
	return s
}

// ReadArray reads an array argument: a length prefix and that many
// raw bytes, padded to a 4 byte boundary. The result aliases the
// payload.
func (r *MessageReader) ReadArray() []byte {
	if r.err != nil {
		return nil
	}
	if len(r.payload)-r.off < 4 {
		r.err = MalformedPayloadError{Reason: "array length truncated"}
		return nil
	}

	length := byteOrder.Uint32(r.payload[r.off:])
	off := r.off + 4
	total := uint64(length) + uint64(padding(length))
	if total > uint64(len(r.payload)-off) {
		r.err = MalformedPayloadError{Reason: "array extends past end of message"}
		return nil
	}

	r.off = off + int(total)
	return r.payload[off : off+int(length)]
}

// Err reports the first decoding failure, if any.
func (r *MessageReader) Err() error {
	return r.err
}
