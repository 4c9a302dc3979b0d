package mqtt

// PublishPacket represents an MQTT PUBLISH packet.
type PublishPacket struct {
	// PacketID is present on the wire only when QoS > 0.
	PacketID uint16

	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	DUP     bool
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// GetPacketID returns the packet identifier.
func (p *PublishPacket) GetPacketID() uint16 {
	return p.PacketID
}

// SetPacketID sets the packet identifier.
func (p *PublishPacket) SetPacketID(id uint16) {
	p.PacketID = id
}

func (p *PublishPacket) flags() byte {
	var flags byte
	if p.DUP {
		flags |= publishFlagDUP
	}
	flags |= (p.QoS << 1) & publishFlagQoS
	if p.Retain {
		flags |= publishFlagRetain
	}
	return flags
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if p.QoS > QoS2 {
		return ErrInvalidQoS
	}
	if err := ValidateTopicName(p.Topic); err != nil {
		return err
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrInvalidParameter
	}
	// DUP is meaningless without a retransmittable QoS.
	if p.QoS == QoS0 && p.DUP {
		return ErrInvalidParameter
	}
	return nil
}

func (p *PublishPacket) encodeBody(w *packetWriter) {
	w.writeString(p.Topic)
	if p.QoS > QoS0 {
		w.writeUint16(p.PacketID)
	}
	w.writeBytes(p.Payload)
}

func (p *PublishPacket) decodeBody(r *packetReader, h FixedHeader) error {
	p.DUP = h.DUP()
	p.QoS = h.QoS()
	p.Retain = h.Retain()

	p.Topic = r.readString()
	if p.QoS > QoS0 {
		p.PacketID = r.readUint16()
	}
	p.Payload = r.readRest()
	if err := r.done(); err != nil {
		return err
	}

	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if ValidateTopicName(p.Topic) != nil {
		return ErrMalformedPacket
	}
	return nil
}

// ToMessage converts the packet to a Message.
func (p *PublishPacket) ToMessage() *Message {
	return &Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Duplicate: p.DUP,
		PacketID:  p.PacketID,
	}
}

// FromMessage populates the packet from a Message. The packet identifier is left untouched.
func (p *PublishPacket) FromMessage(m *Message) {
	p.Topic = m.Topic
	p.Payload = m.Payload
	p.QoS = m.QoS
	p.Retain = m.Retain
}
