package mqtt

// DisconnectPacket is the last packet a client sends before closing the connection.
// The broker discards the will message on receipt.
type DisconnectPacket struct {
	emptyBody
}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }
