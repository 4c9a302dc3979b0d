package mqtt

import (
	"sync"
)

// maxPooledBufferSize caps the capacity of buffers kept for reuse.
const maxPooledBufferSize = 65536

// frameBufferPool holds frame buffers for both encoding and inbound assembly.
var frameBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

// getFrameBuffer returns a pooled buffer of length size.
func getFrameBuffer(size int) *[]byte {
	bp := frameBufferPool.Get().(*[]byte)
	if cap(*bp) < size {
		*bp = make([]byte, size)
	} else {
		*bp = (*bp)[:size]
	}
	return bp
}

// putFrameBuffer returns a buffer to the pool.
func putFrameBuffer(bp *[]byte) {
	if bp == nil || cap(*bp) > maxPooledBufferSize {
		return
	}
	clear((*bp)[:cap(*bp)])
	*bp = (*bp)[:0]
	frameBufferPool.Put(bp)
}

// Frame is the wire form of one packet: fixed header, remaining length,
// variable header and payload. The holder of a Frame owns its buffer and
// must call Release once the bytes are no longer needed.
type Frame struct {
	bp  *[]byte
	off int
}

// newFrame allocates a frame of exactly size bytes.
func newFrame(size int) *Frame {
	return &Frame{bp: getFrameBuffer(size)}
}

// Bytes returns the encoded packet. The slice is invalid after Release.
func (f *Frame) Bytes() []byte {
	if f == nil || f.bp == nil {
		return nil
	}
	return (*f.bp)[f.off:]
}

// Len returns the encoded size in bytes.
func (f *Frame) Len() int {
	return len(f.Bytes())
}

// Type returns the packet type encoded in the first byte.
func (f *Frame) Type() PacketType {
	b := f.Bytes()
	if len(b) == 0 {
		return 0
	}
	return PacketType(b[0] >> 4)
}

// Release returns the buffer to the pool. It is safe to call more than once.
func (f *Frame) Release() {
	if f == nil || f.bp == nil {
		return
	}
	putFrameBuffer(f.bp)
	f.bp = nil
	f.off = 0
}
