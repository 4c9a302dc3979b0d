package mqtt

import (
	"fmt"
	"unicode/utf8"
)

// CONNECT packet constants.
const (
	protocolName  = "MQTT"
	protocolLevel = 4
)

// Connect flag bit positions.
const (
	connectFlagReserved     = 0x01
	connectFlagCleanSession = 0x02
	connectFlagWillFlag     = 0x04
	connectFlagWillQoS      = 0x18
	connectFlagWillRetain   = 0x20
	connectFlagPasswordFlag = 0x40
	connectFlagUsernameFlag = 0x80
)

// CONNECT validation errors.
var (
	ErrClientIDRequired    = fmt.Errorf("%w: client ID required", ErrInvalidParameter)
	ErrPasswordNoUsername  = fmt.Errorf("%w: password requires a username", ErrInvalidParameter)
	ErrInvalidWill         = fmt.Errorf("%w: will topic and will message must be set together", ErrInvalidParameter)
	ErrInvalidQoS          = fmt.Errorf("%w: QoS must be 0, 1 or 2", ErrInvalidParameter)
	ErrInvalidProtocol     = fmt.Errorf("%w: unsupported protocol name or level", ErrProtocolViolation)
	ErrInvalidConnectFlags = fmt.Errorf("%w: invalid connect flags", ErrProtocolViolation)
)

// ConnectPacket represents an MQTT CONNECT packet.
type ConnectPacket struct {
	// ClientID is the client identifier.
	ClientID string

	// CleanSession asks the broker to discard any previous session state.
	CleanSession bool

	// KeepAlive is the keep alive interval in seconds.
	KeepAlive uint16

	// Username is sent when non-empty.
	Username string

	// Password is sent when non-nil. It requires a Username.
	Password []byte

	// Will message configuration. WillTopic and WillMessage are present
	// exactly when WillFlag is set.
	WillFlag    bool
	WillRetain  bool
	WillQoS     byte
	WillTopic   string
	WillMessage []byte

	// AllowEmptyClientID lets Validate accept an empty ClientID.
	AllowEmptyClientID bool
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

func (p *ConnectPacket) flags() byte { return 0 }

// connectFlags returns the connect flags byte.
func (p *ConnectPacket) connectFlags() byte {
	var flags byte

	if p.CleanSession {
		flags |= connectFlagCleanSession
	}

	if p.WillFlag {
		flags |= connectFlagWillFlag
		flags |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			flags |= connectFlagWillRetain
		}
	}

	if p.Password != nil {
		flags |= connectFlagPasswordFlag
	}

	if p.Username != "" {
		flags |= connectFlagUsernameFlag
	}

	return flags
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if p.ClientID == "" && !p.AllowEmptyClientID {
		return ErrClientIDRequired
	}
	if len(p.ClientID) > maxUint16 || !utf8.ValidString(p.ClientID) {
		return ErrInvalidParameter
	}

	if p.Password != nil && p.Username == "" {
		return ErrPasswordNoUsername
	}
	if len(p.Username) > maxUint16 || !utf8.ValidString(p.Username) || len(p.Password) > maxUint16 {
		return ErrInvalidParameter
	}

	if p.WillFlag {
		if p.WillMessage == nil {
			return ErrInvalidWill
		}
		if err := ValidateTopicName(p.WillTopic); err != nil {
			return err
		}
		if p.WillQoS > QoS2 {
			return ErrInvalidQoS
		}
		if len(p.WillMessage) > maxUint16 {
			return ErrInvalidParameter
		}
	} else if p.WillTopic != "" || p.WillMessage != nil || p.WillQoS != 0 || p.WillRetain {
		return ErrInvalidWill
	}

	return nil
}

func (p *ConnectPacket) encodeBody(w *packetWriter) {
	w.writeString(protocolName)
	w.writeByte(protocolLevel)
	w.writeByte(p.connectFlags())
	w.writeUint16(p.KeepAlive)

	w.writeString(p.ClientID)

	if p.WillFlag {
		w.writeString(p.WillTopic)
		w.writeBinary(p.WillMessage)
	}

	if p.Username != "" {
		w.writeString(p.Username)
	}

	if p.Password != nil {
		w.writeBinary(p.Password)
	}
}

func (p *ConnectPacket) decodeBody(r *packetReader, _ FixedHeader) error {
	name := r.readString()
	level := r.readByte()
	flags := r.readByte()
	p.KeepAlive = r.readUint16()
	if r.err != nil {
		return r.err
	}

	if name != protocolName || level != protocolLevel {
		return ErrInvalidProtocol
	}
	if flags&connectFlagReserved != 0 {
		return ErrInvalidConnectFlags
	}

	p.CleanSession = flags&connectFlagCleanSession != 0
	p.WillFlag = flags&connectFlagWillFlag != 0
	p.WillQoS = (flags & connectFlagWillQoS) >> 3
	p.WillRetain = flags&connectFlagWillRetain != 0

	if p.WillQoS > QoS2 || (!p.WillFlag && (p.WillQoS != 0 || p.WillRetain)) {
		return ErrInvalidConnectFlags
	}
	if flags&connectFlagPasswordFlag != 0 && flags&connectFlagUsernameFlag == 0 {
		return ErrInvalidConnectFlags
	}

	p.ClientID = r.readString()
	p.AllowEmptyClientID = p.ClientID == ""

	if p.WillFlag {
		p.WillTopic = r.readString()
		p.WillMessage = r.readBinary()
	}

	if flags&connectFlagUsernameFlag != 0 {
		p.Username = r.readString()
	}

	if flags&connectFlagPasswordFlag != 0 {
		p.Password = r.readBinary()
	}

	return r.done()
}
