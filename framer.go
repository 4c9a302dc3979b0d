package mqtt

import (
	"bytes"
	"errors"
	"time"
)

// rxState is the receive side of the framer. Exactly one of rxIdle,
// *rxHeader and *rxBody is current.
type rxState interface {
	rxState()
}

// rxIdle waits for the first byte of the next packet.
type rxIdle struct{}

// rxHeader holds the fixed header bytes observed so far (1..maxHeaderSize).
type rxHeader struct {
	buf [maxHeaderSize]byte
	n   int
}

// rxBody fills a frame sized for the whole packet; the header is already in front.
type rxBody struct {
	frame  *Frame
	filled int
}

func (rxIdle) rxState()    {}
func (*rxHeader) rxState() {}
func (*rxBody) rxState()   {}

// Framer moves whole packets over a Conn that may deliver or accept any
// number of bytes per call. It keeps at most one outbound frame draining
// and assembles one inbound frame at a time. Partial progress survives
// timeouts; fatal errors are sticky.
type Framer struct {
	conn    Conn
	clock   Clock
	maxSize uint32

	rx    rxState
	ready *Frame

	out  *Frame
	sent int

	err error
}

// NewFramer creates a framer over conn. Inbound packets whose remaining
// length exceeds maxMessageSize are rejected; 0 means the protocol maximum.
func NewFramer(conn Conn, clock Clock, maxMessageSize uint32) *Framer {
	if clock == nil {
		clock = SystemClock()
	}
	if maxMessageSize == 0 || maxMessageSize > maxRemainingLength {
		maxMessageSize = maxRemainingLength
	}
	return &Framer{
		conn:    conn,
		clock:   clock,
		maxSize: maxMessageSize,
		rx:      rxIdle{},
	}
}

// Exchange runs one round: it drains out (if any, taking ownership of it)
// and, when wantIn is set, assembles one inbound frame. It returns the
// inbound frame (owned by the caller) and the unused budget.
//
// When the budget runs out first it returns ErrTimeout and keeps all
// partial state; a later call continues where this one stopped. A new
// outbound frame while a previous one is still draining is rejected with
// ErrFramerBusy and stays owned by the caller.
func (f *Framer) Exchange(out *Frame, wantIn bool, budget time.Duration) (*Frame, time.Duration, error) {
	if f.err != nil {
		return nil, budget, f.err
	}
	if out != nil {
		if f.out != nil {
			return nil, budget, ErrFramerBusy
		}
		f.out = out
		f.sent = 0
	}

	d := newDeadline(f.clock, budget)

	for {
		if f.out != nil {
			err := f.send(d)
			if err != nil && !errors.Is(err, ErrTimeout) {
				return nil, d.remaining(), f.fail(err)
			}
			// Keep writing while the conn accepts bytes; a peer may not
			// answer before it has the whole request.
			if err == nil && f.out != nil && !d.expired() {
				continue
			}
		}

		if wantIn && f.ready == nil {
			if err := f.receive(d); err != nil && !errors.Is(err, ErrTimeout) {
				return nil, d.remaining(), f.fail(err)
			}
		}

		if f.out == nil && (!wantIn || f.ready != nil) {
			var in *Frame
			if wantIn {
				in, f.ready = f.ready, nil
			}
			return in, d.remaining(), nil
		}

		if d.expired() {
			return nil, 0, ErrTimeout
		}
	}
}

// Busy reports whether an outbound frame is still draining.
func (f *Framer) Busy() bool {
	return f.out != nil
}

// Err returns the fatal error that stopped the framer, if any.
func (f *Framer) Err() error {
	return f.err
}

// Close releases all buffers held by the framer. The connection is not closed.
func (f *Framer) Close() {
	f.out.Release()
	f.out = nil
	f.ready.Release()
	f.ready = nil
	if body, ok := f.rx.(*rxBody); ok {
		body.frame.Release()
	}
	f.rx = rxIdle{}
	if f.err == nil {
		f.err = ErrNotConnected
	}
}

func (f *Framer) fail(err error) error {
	f.err = err
	return err
}

// send writes the unsent part of the outbound frame once.
func (f *Framer) send(d deadline) error {
	b := f.out.Bytes()
	n, err := f.conn.Write(b[f.sent:], d.remaining())
	f.sent += n
	if f.sent >= len(b) {
		f.out.Release()
		f.out = nil
		f.sent = 0
	}
	return err
}

// receive performs one read of the receive state machine, so the caller
// can go back to draining the outbound frame between reads.
func (f *Framer) receive(d deadline) error {
	switch st := f.rx.(type) {
	case rxIdle:
		var b [1]byte
		n, err := f.conn.Read(b[:], d.remaining())
		if n == 1 {
			h := &rxHeader{n: 1}
			h.buf[0] = b[0]
			f.rx = h
		}
		return err

	case *rxHeader:
		// The length field size is only known by looking at each byte.
		n, err := f.conn.Read(st.buf[st.n:st.n+1], d.remaining())
		if n == 1 {
			st.n++
			if herr := f.headerByte(st); herr != nil {
				return herr
			}
		}
		return err

	case *rxBody:
		buf := st.frame.Bytes()
		n, err := f.conn.Read(buf[st.filled:], d.remaining())
		st.filled += n
		if st.filled == len(buf) {
			f.ready = st.frame
			f.rx = rxIdle{}
		}
		return err
	}
	return nil
}

// headerByte handles a newly observed fixed header byte.
func (f *Framer) headerByte(st *rxHeader) error {
	if st.buf[st.n-1]&lengthContinueBit != 0 {
		if st.n == maxHeaderSize {
			return ErrMalformedLength
		}
		return nil
	}

	length, _, err := DecodeRemainingLength(bytes.NewReader(st.buf[1:st.n]))
	if err != nil {
		return err
	}
	if length > f.maxSize {
		return ErrMessageTooLarge
	}

	frame := newFrame(st.n + int(length))
	copy(frame.Bytes(), st.buf[:st.n])

	if length == 0 {
		f.ready = frame
		f.rx = rxIdle{}
		return nil
	}

	f.rx = &rxBody{frame: frame, filled: st.n}
	return nil
}
