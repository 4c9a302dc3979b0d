// Package mqtt implements the MQTT v3.1.1 protocol engine of a small
// embedded network stack: the wire codec, an incremental stream framer and
// a budget-driven client session.
//
// This package implements the MQTT Version 3.1.1 OASIS Standard:
// https://docs.oasis-open.org/mqtt/mqtt/v3.1.1/mqtt-v3.1.1.html
//
// # Features
//
//   - All 14 MQTT v3.1.1 control packet types
//   - QoS 0, 1, 2 message flows with a pending list per session
//   - Packet assembly from streams that deliver any number of bytes per read
//   - Every blocking call bounded by a caller-supplied time budget
//   - Transport: TCP, Unix sockets, WebSocket, SOCKS5 and HTTP CONNECT proxies
//
// # Packet Types
//
//   - ConnectPacket, ConnackPacket: Connection establishment
//   - PublishPacket, PubackPacket, PubrecPacket, PubrelPacket, PubcompPacket: Message delivery
//   - SubscribePacket, SubackPacket: Topic subscription
//   - UnsubscribePacket, UnsubackPacket: Topic unsubscription
//   - PingreqPacket, PingrespPacket: Keep-alive
//   - DisconnectPacket: Connection termination
//
// Use Marshal and Unmarshal to convert packets to and from frames:
//
//	frame, err := mqtt.Marshal(&mqtt.PingreqPacket{}, 0)
//	if err != nil {
//		return err
//	}
//	defer frame.Release()
//
//	pkt, err := mqtt.Unmarshal(frame.Bytes())
//
// # Client
//
// A Client runs on the caller's goroutine. Each call gets a time budget and
// either completes or returns ErrTimeout with its progress kept:
//
//	client := mqtt.NewClient(mqtt.WithClientID("sensor-1"), mqtt.WithKeepAlive(30))
//
//	if _, err := client.Connect(5*time.Second, "tcp://broker:1883"); err != nil {
//		return err
//	}
//
//	err := client.Publish(time.Second, &mqtt.Message{
//		Topic:   "sensors/temp",
//		Payload: []byte("21.5"),
//		QoS:     mqtt.QoS1,
//	})
//	if errors.Is(err, mqtt.ErrTimeout) {
//		// still pending; retry later with ResendPending
//	}
//
//	msg, err := client.Receive(time.Second)
//
// # Errors
//
// Errors fall into the categories ErrInvalidParameter, ErrOutOfMemory,
// ErrProtocolViolation, ErrTransport and ErrTimeout; check with errors.Is.
// IsFatal reports whether the session was closed.
package mqtt
