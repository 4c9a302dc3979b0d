package mqtt

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

// GetPacketID returns the packet identifier.
func (p *PubackPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubackPacket) SetPacketID(id uint16) { p.PacketID = id }

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error { return validatePacketID(p.PacketID) }

func (p *PubackPacket) flags() byte { return 0 }

func (p *PubackPacket) encodeBody(w *packetWriter) { w.writeUint16(p.PacketID) }

func (p *PubackPacket) decodeBody(r *packetReader, _ FixedHeader) (err error) {
	p.PacketID, err = decodePacketID(r)
	return err
}

// PubrecPacket is the first acknowledgment of a QoS 2 PUBLISH.
type PubrecPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

// GetPacketID returns the packet identifier.
func (p *PubrecPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubrecPacket) SetPacketID(id uint16) { p.PacketID = id }

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error { return validatePacketID(p.PacketID) }

func (p *PubrecPacket) flags() byte { return 0 }

func (p *PubrecPacket) encodeBody(w *packetWriter) { w.writeUint16(p.PacketID) }

func (p *PubrecPacket) decodeBody(r *packetReader, _ FixedHeader) (err error) {
	p.PacketID, err = decodePacketID(r)
	return err
}

// PubrelPacket releases a QoS 2 message after PUBREC.
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

// GetPacketID returns the packet identifier.
func (p *PubrelPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubrelPacket) SetPacketID(id uint16) { p.PacketID = id }

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error { return validatePacketID(p.PacketID) }

func (p *PubrelPacket) flags() byte { return 0x02 }

func (p *PubrelPacket) encodeBody(w *packetWriter) { w.writeUint16(p.PacketID) }

func (p *PubrelPacket) decodeBody(r *packetReader, _ FixedHeader) (err error) {
	p.PacketID, err = decodePacketID(r)
	return err
}

// PubcompPacket completes a QoS 2 exchange.
type PubcompPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

// GetPacketID returns the packet identifier.
func (p *PubcompPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubcompPacket) SetPacketID(id uint16) { p.PacketID = id }

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error { return validatePacketID(p.PacketID) }

func (p *PubcompPacket) flags() byte { return 0 }

func (p *PubcompPacket) encodeBody(w *packetWriter) { w.writeUint16(p.PacketID) }

func (p *PubcompPacket) decodeBody(r *packetReader, _ FixedHeader) (err error) {
	p.PacketID, err = decodePacketID(r)
	return err
}

// UnsubackPacket acknowledges an UNSUBSCRIBE.
type UnsubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

// GetPacketID returns the packet identifier.
func (p *UnsubackPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *UnsubackPacket) SetPacketID(id uint16) { p.PacketID = id }

// Validate validates the packet contents.
func (p *UnsubackPacket) Validate() error { return validatePacketID(p.PacketID) }

func (p *UnsubackPacket) flags() byte { return 0 }

func (p *UnsubackPacket) encodeBody(w *packetWriter) { w.writeUint16(p.PacketID) }

func (p *UnsubackPacket) decodeBody(r *packetReader, _ FixedHeader) (err error) {
	p.PacketID, err = decodePacketID(r)
	return err
}

func validatePacketID(id uint16) error {
	if id == 0 {
		return ErrInvalidParameter
	}
	return nil
}
