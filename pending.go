package mqtt

import "time"

// PendingState is the acknowledgment stage an in-flight packet is waiting for.
type PendingState byte

// Pending states.
const (
	// AwaitingAck waits for PUBACK, SUBACK or UNSUBACK.
	AwaitingAck PendingState = iota
	// AwaitingPubrec waits for the PUBREC of a QoS 2 PUBLISH.
	AwaitingPubrec
	// AwaitingPubcomp waits for the PUBCOMP after PUBREL was sent.
	AwaitingPubcomp
)

// String returns the string representation of the state.
func (s PendingState) String() string {
	switch s {
	case AwaitingAck:
		return "awaiting ack"
	case AwaitingPubrec:
		return "awaiting pubrec"
	case AwaitingPubcomp:
		return "awaiting pubcomp"
	default:
		return "unknown"
	}
}

// PendingEntry is an outbound packet waiting for its acknowledgment.
type PendingEntry struct {
	PacketID uint16
	Packet   PacketWithID
	State    PendingState
	SentAt   time.Time

	next, prev *PendingEntry
}

// PendingList is a FIFO of in-flight packets with lookup by identifier.
// The list owns its entries but not the packets they reference.
// It is not safe for concurrent use.
type PendingList struct {
	head, tail *PendingEntry
	length     int
}

// PushBack appends e. e must not already be on a list.
func (l *PendingList) PushBack(e *PendingEntry) {
	e.next = nil
	e.prev = l.tail
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.length++
}

// PopFront removes and returns the oldest entry.
func (l *PendingList) PopFront() (*PendingEntry, error) {
	e := l.head
	if e == nil {
		return nil, ErrListEmpty
	}
	l.unlink(e)
	return e, nil
}

// Get removes and returns the most recently added entry with the given identifier.
func (l *PendingList) Get(id uint16) (*PendingEntry, error) {
	e := l.find(id)
	if e == nil {
		return nil, ErrNotFound
	}
	l.unlink(e)
	return e, nil
}

// Peek returns the most recently added entry with the given identifier without removing it.
func (l *PendingList) Peek(id uint16) (*PendingEntry, error) {
	e := l.find(id)
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// Contains reports whether an entry with the given identifier is pending.
func (l *PendingList) Contains(id uint16) bool {
	return l.find(id) != nil
}

// Len returns the number of entries.
func (l *PendingList) Len() int {
	return l.length
}

// Front returns the oldest entry, or nil.
func (l *PendingList) Front() *PendingEntry {
	return l.head
}

// Each calls fn for every entry from oldest to newest until fn returns false.
// fn must not modify the list.
func (l *PendingList) Each(fn func(e *PendingEntry) bool) {
	for e := l.head; e != nil; e = e.next {
		if !fn(e) {
			return
		}
	}
}

// find scans from the tail; recent packets are acknowledged first.
func (l *PendingList) find(id uint16) *PendingEntry {
	for e := l.tail; e != nil; e = e.prev {
		if e.PacketID == id {
			return e
		}
	}
	return nil
}

func (l *PendingList) unlink(e *PendingEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev = nil, nil
	l.length--
}
