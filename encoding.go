package mqtt

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

const (
	maxUint16          = 65535
	maxRemainingLength = 268435455 // 0x0FFFFFFF
	maxLengthBytes     = 4
	maxHeaderSize      = 1 + maxLengthBytes
	lengthContinueBit  = 0x80
	lengthValueMask    = 0x7F
)

// EncodeRemainingLength returns the minimal continuation encoding of v.
func EncodeRemainingLength(v uint32) ([]byte, error) {
	if v > maxRemainingLength {
		return nil, ErrLengthTooLong
	}
	return appendRemainingLength(make([]byte, 0, maxLengthBytes), v), nil
}

// appendRemainingLength appends the encoding of v to dst. v must not exceed maxRemainingLength.
func appendRemainingLength(dst []byte, v uint32) []byte {
	for {
		b := byte(v & lengthValueMask)
		v >>= 7
		if v > 0 {
			b |= lengthContinueBit
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// DecodeRemainingLength reads a remaining length from r.
// Returns the value and the number of bytes consumed.
func DecodeRemainingLength(r io.ByteReader) (uint32, int, error) {
	var value uint32
	multiplier := uint32(1)

	for n := 1; n <= maxLengthBytes; n++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n - 1, err
		}

		value += uint32(b&lengthValueMask) * multiplier
		if b&lengthContinueBit == 0 {
			return value, n, nil
		}
		multiplier *= 128
	}

	return 0, maxLengthBytes, ErrMalformedLength
}

// remainingLengthSize returns the number of bytes needed to encode v.
func remainingLengthSize(v uint32) int {
	switch {
	case v < 128:
		return 1
	case v < 16384:
		return 2
	case v < 2097152:
		return 3
	default:
		return 4
	}
}

// packetWriter builds one frame in a pooled buffer. The first maxHeaderSize
// bytes are reserved so the fixed header can be placed in front of the body
// once its length is known. Errors are sticky and reported by frame.
type packetWriter struct {
	bp    *[]byte
	limit int
	err   error
}

func newPacketWriter(limit int) *packetWriter {
	return &packetWriter{bp: getFrameBuffer(maxHeaderSize), limit: limit}
}

func (w *packetWriter) bodyLen() int {
	return len(*w.bp) - maxHeaderSize
}

func (w *packetWriter) reserve(n int) bool {
	if w.err != nil {
		return false
	}

	body := w.bodyLen() + n
	if body > maxRemainingLength {
		w.err = ErrOutOfMemory
		return false
	}
	if w.limit > 0 && 1+remainingLengthSize(uint32(body))+body > w.limit {
		w.err = ErrOutOfMemory
		return false
	}
	return true
}

func (w *packetWriter) writeByte(b byte) {
	if w.reserve(1) {
		*w.bp = append(*w.bp, b)
	}
}

func (w *packetWriter) writeUint16(v uint16) {
	if w.reserve(2) {
		*w.bp = binary.BigEndian.AppendUint16(*w.bp, v)
	}
}

func (w *packetWriter) writeBytes(p []byte) {
	if w.reserve(len(p)) {
		*w.bp = append(*w.bp, p...)
	}
}

func (w *packetWriter) writeBinary(p []byte) {
	if len(p) > maxUint16 {
		if w.err == nil {
			w.err = ErrInvalidParameter
		}
		return
	}
	w.writeUint16(uint16(len(p)))
	w.writeBytes(p)
}

func (w *packetWriter) writeString(s string) {
	if len(s) > maxUint16 {
		if w.err == nil {
			w.err = ErrInvalidParameter
		}
		return
	}
	w.writeUint16(uint16(len(s)))
	if w.reserve(len(s)) {
		*w.bp = append(*w.bp, s...)
	}
}

// frame places the fixed header in front of the body and hands the buffer to a Frame.
// On error the buffer is returned to the pool.
func (w *packetWriter) frame(header byte) (*Frame, error) {
	if w.err != nil {
		putFrameBuffer(w.bp)
		w.bp = nil
		return nil, w.err
	}

	var length [maxLengthBytes]byte
	enc := appendRemainingLength(length[:0], uint32(w.bodyLen()))

	off := maxHeaderSize - 1 - len(enc)
	buf := *w.bp
	buf[off] = header
	copy(buf[off+1:maxHeaderSize], enc)

	f := &Frame{bp: w.bp, off: off}
	w.bp = nil
	return f, nil
}

// packetReader reads the variable header and payload of one frame.
// Reads past the end set a sticky ErrMalformedPacket.
type packetReader struct {
	data []byte
	pos  int
	err  error
}

func newPacketReader(data []byte) *packetReader {
	return &packetReader{data: data}
}

func (r *packetReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *packetReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > r.remaining() {
		r.err = ErrMalformedPacket
		return nil
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p
}

func (r *packetReader) readByte() byte {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *packetReader) readUint16() uint16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// readBinary returns a copy of a length-prefixed field. An empty field is a non-nil empty slice.
func (r *packetReader) readBinary() []byte {
	n := r.readUint16()
	p := r.take(int(n))
	if p == nil {
		return nil
	}
	return append([]byte{}, p...)
}

func (r *packetReader) readString() string {
	n := r.readUint16()
	p := r.take(int(n))
	if p == nil {
		return ""
	}
	if !utf8.Valid(p) {
		r.err = ErrMalformedPacket
		return ""
	}
	return string(p)
}

// readRest returns a copy of the unread bytes.
func (r *packetReader) readRest() []byte {
	p := r.take(r.remaining())
	if p == nil {
		return nil
	}
	return append([]byte{}, p...)
}

// done reports the sticky error, or ErrMalformedPacket if bytes are left over.
func (r *packetReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return ErrMalformedPacket
	}
	return nil
}
