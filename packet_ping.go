package mqtt

// PingreqPacket represents an MQTT PINGREQ packet.
type PingreqPacket struct {
	emptyBody
}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

// PingrespPacket represents an MQTT PINGRESP packet.
type PingrespPacket struct {
	emptyBody
}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }
