package mqtt

// Marshal validates pkt and encodes it into a new Frame.
// If limit is greater than 0, frames larger than limit bytes fail with ErrOutOfMemory.
// The packet identifier is encoded as set; see Serializer for fresh identifiers.
func Marshal(pkt Packet, limit int) (*Frame, error) {
	if pkt == nil {
		return nil, ErrInvalidParameter
	}
	if err := pkt.Validate(); err != nil {
		return nil, err
	}

	w := newPacketWriter(limit)
	pkt.encodeBody(w)
	return w.frame(byte(pkt.Type())<<4 | pkt.flags())
}

// Unmarshal decodes one complete frame (fixed header included).
// Any malformed input is reported as a protocol violation.
func Unmarshal(frame []byte) (Packet, error) {
	header, n, err := ParseFixedHeader(frame)
	if err != nil {
		return nil, err
	}
	if err := header.ValidateFlags(); err != nil {
		return nil, err
	}

	pkt := newPacket(header.PacketType)
	if pkt == nil {
		return nil, ErrInvalidPacketType
	}

	if err := pkt.decodeBody(newPacketReader(frame[n:]), header); err != nil {
		return nil, err
	}
	return pkt, nil
}

// newPacket returns an empty packet of the given type, or nil for an unknown type.
func newPacket(t PacketType) Packet {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}
	case PacketCONNACK:
		return &ConnackPacket{}
	case PacketPUBLISH:
		return &PublishPacket{}
	case PacketPUBACK:
		return &PubackPacket{}
	case PacketPUBREC:
		return &PubrecPacket{}
	case PacketPUBREL:
		return &PubrelPacket{}
	case PacketPUBCOMP:
		return &PubcompPacket{}
	case PacketSUBSCRIBE:
		return &SubscribePacket{}
	case PacketSUBACK:
		return &SubackPacket{}
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}
	case PacketUNSUBACK:
		return &UnsubackPacket{}
	case PacketPINGREQ:
		return &PingreqPacket{}
	case PacketPINGRESP:
		return &PingrespPacket{}
	case PacketDISCONNECT:
		return &DisconnectPacket{}
	default:
		return nil
	}
}
