package mqtt

// UnsubscribePacket represents an MQTT UNSUBSCRIBE packet.
type UnsubscribePacket struct {
	PacketID     uint16
	TopicFilters []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType {
	return PacketUNSUBSCRIBE
}

// GetPacketID returns the packet identifier.
func (p *UnsubscribePacket) GetPacketID() uint16 {
	return p.PacketID
}

// SetPacketID sets the packet identifier.
func (p *UnsubscribePacket) SetPacketID(id uint16) {
	p.PacketID = id
}

func (p *UnsubscribePacket) flags() byte { return 0x02 }

// Validate validates the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrInvalidParameter
	}
	if len(p.TopicFilters) == 0 {
		return ErrNoTopicFilters
	}
	for _, filter := range p.TopicFilters {
		if err := ValidateTopicFilter(filter); err != nil {
			return err
		}
	}
	return nil
}

func (p *UnsubscribePacket) encodeBody(w *packetWriter) {
	w.writeUint16(p.PacketID)
	for _, filter := range p.TopicFilters {
		w.writeString(filter)
	}
}

func (p *UnsubscribePacket) decodeBody(r *packetReader, _ FixedHeader) error {
	p.PacketID = r.readUint16()
	p.TopicFilters = p.TopicFilters[:0]

	for r.err == nil && r.remaining() > 0 {
		filter := r.readString()
		if r.err == nil && ValidateTopicFilter(filter) != nil {
			return ErrMalformedPacket
		}
		p.TopicFilters = append(p.TopicFilters, filter)
	}

	if err := r.done(); err != nil {
		return err
	}
	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(p.TopicFilters) == 0 {
		return ErrMalformedPacket
	}
	return nil
}
