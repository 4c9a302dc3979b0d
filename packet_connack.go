package mqtt

// ConnackCode is the return code of a CONNACK packet.
type ConnackCode byte

// CONNACK return codes.
const (
	ConnectionAccepted         ConnackCode = 0x00
	RefusedProtocolVersion     ConnackCode = 0x01
	RefusedIdentifierRejected  ConnackCode = 0x02
	RefusedServerUnavailable   ConnackCode = 0x03
	RefusedBadUsernamePassword ConnackCode = 0x04
	RefusedNotAuthorized       ConnackCode = 0x05

	maxConnackCode = RefusedNotAuthorized
)

const connackFlagSessionPresent = 0x01

// String returns the string representation of the return code.
func (c ConnackCode) String() string {
	switch c {
	case ConnectionAccepted:
		return "connection accepted"
	case RefusedProtocolVersion:
		return "unacceptable protocol version"
	case RefusedIdentifierRejected:
		return "identifier rejected"
	case RefusedServerUnavailable:
		return "server unavailable"
	case RefusedBadUsernamePassword:
		return "bad user name or password"
	case RefusedNotAuthorized:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// ConnackPacket represents an MQTT CONNACK packet.
type ConnackPacket struct {
	// SessionPresent is set when the broker resumed a stored session.
	SessionPresent bool

	// ReturnCode reports whether the connection was accepted.
	ReturnCode ConnackCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

func (p *ConnackPacket) flags() byte { return 0 }

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	if p.ReturnCode > maxConnackCode {
		return ErrInvalidParameter
	}
	// A refused connection never has a session.
	if p.SessionPresent && p.ReturnCode != ConnectionAccepted {
		return ErrInvalidParameter
	}
	return nil
}

func (p *ConnackPacket) encodeBody(w *packetWriter) {
	var flags byte
	if p.SessionPresent {
		flags |= connackFlagSessionPresent
	}
	w.writeByte(flags)
	w.writeByte(byte(p.ReturnCode))
}

func (p *ConnackPacket) decodeBody(r *packetReader, _ FixedHeader) error {
	flags := r.readByte()
	code := r.readByte()
	if err := r.done(); err != nil {
		return err
	}

	if flags&^connackFlagSessionPresent != 0 || ConnackCode(code) > maxConnackCode {
		return ErrMalformedPacket
	}

	p.SessionPresent = flags&connackFlagSessionPresent != 0
	p.ReturnCode = ConnackCode(code)
	return nil
}
