package mqtt

import "fmt"

// ErrNoTopicFilters is returned for SUBSCRIBE and UNSUBSCRIBE packets without filters.
var ErrNoTopicFilters = fmt.Errorf("%w: at least one topic filter required", ErrInvalidParameter)

// SubscribePacket represents an MQTT SUBSCRIBE packet.
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType {
	return PacketSUBSCRIBE
}

// GetPacketID returns the packet identifier.
func (p *SubscribePacket) GetPacketID() uint16 {
	return p.PacketID
}

// SetPacketID sets the packet identifier.
func (p *SubscribePacket) SetPacketID(id uint16) {
	p.PacketID = id
}

func (p *SubscribePacket) flags() byte { return 0x02 }

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrInvalidParameter
	}
	if len(p.Subscriptions) == 0 {
		return ErrNoTopicFilters
	}

	for _, sub := range p.Subscriptions {
		if err := ValidateTopicFilter(sub.TopicFilter); err != nil {
			return err
		}
		if sub.QoS > QoS2 {
			return ErrInvalidQoS
		}
	}

	return nil
}

func (p *SubscribePacket) encodeBody(w *packetWriter) {
	w.writeUint16(p.PacketID)
	for _, sub := range p.Subscriptions {
		w.writeString(sub.TopicFilter)
		w.writeByte(sub.QoS)
	}
}

func (p *SubscribePacket) decodeBody(r *packetReader, _ FixedHeader) error {
	p.PacketID = r.readUint16()
	p.Subscriptions = p.Subscriptions[:0]

	for r.err == nil && r.remaining() > 0 {
		filter := r.readString()
		qos := r.readByte()
		if r.err == nil && (qos > QoS2 || ValidateTopicFilter(filter) != nil) {
			return ErrMalformedPacket
		}
		p.Subscriptions = append(p.Subscriptions, Subscription{TopicFilter: filter, QoS: qos})
	}

	if err := r.done(); err != nil {
		return err
	}
	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(p.Subscriptions) == 0 {
		return ErrMalformedPacket
	}
	return nil
}
