package mqtt

import (
	"bytes"
)

// PacketType represents an MQTT control packet type.
type PacketType byte

// MQTT v3.1.1 control packet types.
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
)

// String returns the string representation of the packet type.
func (p PacketType) String() string {
	switch p {
	case PacketCONNECT:
		return "CONNECT"
	case PacketCONNACK:
		return "CONNACK"
	case PacketPUBLISH:
		return "PUBLISH"
	case PacketPUBACK:
		return "PUBACK"
	case PacketPUBREC:
		return "PUBREC"
	case PacketPUBREL:
		return "PUBREL"
	case PacketPUBCOMP:
		return "PUBCOMP"
	case PacketSUBSCRIBE:
		return "SUBSCRIBE"
	case PacketSUBACK:
		return "SUBACK"
	case PacketUNSUBSCRIBE:
		return "UNSUBSCRIBE"
	case PacketUNSUBACK:
		return "UNSUBACK"
	case PacketPINGREQ:
		return "PINGREQ"
	case PacketPINGRESP:
		return "PINGRESP"
	case PacketDISCONNECT:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the packet type is a v3.1.1 control packet.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketDISCONNECT
}

// Publish flag bits.
const (
	publishFlagRetain = 0x01
	publishFlagQoS    = 0x06
	publishFlagDUP    = 0x08
)

// FixedHeader represents the fixed header of an MQTT control packet.
type FixedHeader struct {
	PacketType      PacketType
	Flags           byte
	RemainingLength uint32
}

// ParseFixedHeader decodes the fixed header at the front of a complete frame.
// Returns the header and its size in bytes. The remaining length must match
// the number of bytes that follow the header.
func ParseFixedHeader(frame []byte) (FixedHeader, int, error) {
	if len(frame) < 2 {
		return FixedHeader{}, 0, ErrMalformedPacket
	}

	h := FixedHeader{
		PacketType: PacketType(frame[0] >> 4),
		Flags:      frame[0] & 0x0F,
	}
	if !h.PacketType.Valid() {
		return h, 0, ErrInvalidPacketType
	}

	length, n, err := DecodeRemainingLength(bytes.NewReader(frame[1:]))
	if err != nil {
		if err == ErrMalformedLength {
			return h, 0, err
		}
		return h, 0, ErrMalformedPacket
	}
	h.RemainingLength = length

	size := 1 + n
	if uint64(len(frame)-size) != uint64(length) {
		return h, 0, ErrMalformedPacket
	}

	return h, size, nil
}

// Size returns the encoded size of the fixed header in bytes.
func (h *FixedHeader) Size() int {
	return 1 + remainingLengthSize(h.RemainingLength)
}

// ValidateFlags validates the flags for the packet type.
func (h *FixedHeader) ValidateFlags() error {
	switch h.PacketType {
	case PacketPUBLISH:
		// QoS 3 is reserved
		if h.QoS() > QoS2 {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		if h.Flags != 0x02 {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketCONNECT, PacketCONNACK, PacketPUBACK, PacketPUBREC,
		PacketPUBCOMP, PacketSUBACK, PacketUNSUBACK, PacketPINGREQ,
		PacketPINGRESP, PacketDISCONNECT:
		if h.Flags != 0x00 {
			return ErrInvalidPacketFlags
		}
		return nil

	default:
		return ErrInvalidPacketType
	}
}

// DUP returns the DUP flag from PUBLISH packet flags.
func (h *FixedHeader) DUP() bool {
	return h.Flags&publishFlagDUP != 0
}

// QoS returns the QoS level from PUBLISH packet flags.
func (h *FixedHeader) QoS() byte {
	return (h.Flags & publishFlagQoS) >> 1
}

// Retain returns the RETAIN flag from PUBLISH packet flags.
func (h *FixedHeader) Retain() bool {
	return h.Flags&publishFlagRetain != 0
}
