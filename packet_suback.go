package mqtt

// SubackFailure is the SUBACK return code for a refused subscription.
const SubackFailure byte = 0x80

// SubackPacket represents an MQTT SUBACK packet.
// ReturnCodes holds one granted QoS or SubackFailure per requested filter.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType {
	return PacketSUBACK
}

// GetPacketID returns the packet identifier.
func (p *SubackPacket) GetPacketID() uint16 {
	return p.PacketID
}

// SetPacketID sets the packet identifier.
func (p *SubackPacket) SetPacketID(id uint16) {
	p.PacketID = id
}

func (p *SubackPacket) flags() byte { return 0 }

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 || len(p.ReturnCodes) == 0 {
		return ErrInvalidParameter
	}
	for _, code := range p.ReturnCodes {
		if !validSubackCode(code) {
			return ErrInvalidParameter
		}
	}
	return nil
}

func (p *SubackPacket) encodeBody(w *packetWriter) {
	w.writeUint16(p.PacketID)
	w.writeBytes(p.ReturnCodes)
}

func (p *SubackPacket) decodeBody(r *packetReader, _ FixedHeader) error {
	p.PacketID = r.readUint16()
	p.ReturnCodes = r.readRest()
	if err := r.done(); err != nil {
		return err
	}

	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(p.ReturnCodes) == 0 {
		return ErrMalformedPacket
	}
	for _, code := range p.ReturnCodes {
		if !validSubackCode(code) {
			return ErrMalformedPacket
		}
	}
	return nil
}

func validSubackCode(code byte) bool {
	return code <= QoS2 || code == SubackFailure
}
