package mqtt

import "fmt"

// ErrPacketIDExhausted is returned when all 65535 identifiers are held by pending packets.
var ErrPacketIDExhausted = fmt.Errorf("%w: no free packet identifier", ErrOutOfMemory)

// Serializer encodes outbound packets for one session and owns the
// session's packet identifier counter.
type Serializer struct {
	// InUse, if set, reports identifiers still held by unacknowledged
	// packets. Such identifiers are skipped.
	InUse func(id uint16) bool

	capacity           int
	allowEmptyClientID bool
	lastID             uint16
}

// NewSerializer creates a serializer. Frames larger than capacity bytes fail
// with ErrOutOfMemory; 0 means no limit beyond the protocol maximum.
func NewSerializer(capacity int, allowEmptyClientID bool) *Serializer {
	return &Serializer{
		capacity:           capacity,
		allowEmptyClientID: allowEmptyClientID,
	}
}

// Serialize encodes pkt. QoS 1/2 PUBLISH, SUBSCRIBE and UNSUBSCRIBE packets
// receive a fresh identifier, written back into pkt on success. On failure
// the counter is left unchanged.
func (s *Serializer) Serialize(pkt Packet) (*Frame, error) {
	if c, ok := pkt.(*ConnectPacket); ok && s.allowEmptyClientID {
		c.AllowEmptyClientID = true
	}

	withID, ok := pkt.(PacketWithID)
	if !ok || !needsFreshID(pkt) {
		return Marshal(pkt, s.capacity)
	}

	id, err := s.peekID()
	if err != nil {
		return nil, err
	}

	prev := withID.GetPacketID()
	withID.SetPacketID(id)

	frame, err := Marshal(pkt, s.capacity)
	if err != nil {
		withID.SetPacketID(prev)
		return nil, err
	}

	s.lastID = id
	return frame, nil
}

// LastPacketID returns the most recently issued identifier, 0 if none.
func (s *Serializer) LastPacketID() uint16 {
	return s.lastID
}

// peekID returns the identifier after lastID. The counter wraps from 65535
// and skips 0, which is not a valid identifier.
func (s *Serializer) peekID() (uint16, error) {
	next := s.lastID
	for range maxUint16 {
		next++
		if next == 0 {
			next = 1
		}
		if s.InUse == nil || !s.InUse(next) {
			return next, nil
		}
	}
	return 0, ErrPacketIDExhausted
}

func needsFreshID(pkt Packet) bool {
	switch p := pkt.(type) {
	case *PublishPacket:
		return p.QoS > QoS0
	case *SubscribePacket, *UnsubscribePacket:
		return true
	default:
		return false
	}
}
