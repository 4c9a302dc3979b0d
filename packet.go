package mqtt

// Quality of Service levels.
const (
	QoS0 byte = 0
	QoS1 byte = 1
	QoS2 byte = 2
)

// Packet is implemented by the fourteen MQTT v3.1.1 control packets.
// The set is closed: only this package can add implementations.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Validate checks the packet contents before encoding.
	Validate() error

	flags() byte
	encodeBody(w *packetWriter)
	decodeBody(r *packetReader, h FixedHeader) error
}

// PacketWithID is implemented by packets that carry a packet identifier.
type PacketWithID interface {
	Packet

	// GetPacketID returns the packet identifier.
	GetPacketID() uint16

	// SetPacketID sets the packet identifier.
	SetPacketID(id uint16)
}

// Message represents an application message.
type Message struct {
	// Topic is the topic name to publish to or received from.
	Topic string

	// Payload is the application message payload.
	Payload []byte

	// QoS is the Quality of Service level (0, 1, or 2).
	QoS byte

	// Retain indicates if this is a retained message.
	Retain bool

	// Duplicate is set on messages the broker redelivered.
	Duplicate bool

	// PacketID is the identifier of a received QoS 1 or 2 message.
	PacketID uint16
}

// Subscription pairs a topic filter with the requested maximum QoS.
type Subscription struct {
	TopicFilter string
	QoS         byte
}

// decodePacketID reads the identifier that forms the whole body of an
// acknowledgment. Identifier 0 is never valid on the wire.
func decodePacketID(r *packetReader) (uint16, error) {
	id := r.readUint16()
	if err := r.done(); err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrInvalidPacketID
	}
	return id, nil
}

// emptyBody is embedded by packets that consist of the fixed header only.
type emptyBody struct{}

func (emptyBody) flags() byte { return 0 }

func (emptyBody) Validate() error { return nil }

func (emptyBody) encodeBody(_ *packetWriter) {}

func (emptyBody) decodeBody(r *packetReader, _ FixedHeader) error {
	return r.done()
}
