package mqtt

import (
	"errors"
	"fmt"
)

// Error categories - check with errors.Is().
var (
	// ErrInvalidParameter is returned when a packet or argument fails validation.
	ErrInvalidParameter = errors.New("invalid parameters")

	// ErrOutOfMemory is returned when an encoded packet does not fit the configured capacity.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrProtocolViolation is returned when the peer sends bytes that are not valid MQTT.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTransport is returned when the underlying connection fails.
	ErrTransport = errors.New("connection error")

	// ErrTimeout is returned when the time budget is exhausted before an operation completes.
	ErrTimeout = errors.New("timeout")
)

// Codec and framing errors.
var (
	ErrLengthTooLong      = fmt.Errorf("%w: length too long", ErrInvalidParameter)
	ErrMalformedLength    = fmt.Errorf("%w: malformed remaining length", ErrProtocolViolation)
	ErrMessageTooLarge    = fmt.Errorf("%w: message too large", ErrProtocolViolation)
	ErrMalformedPacket    = fmt.Errorf("%w: malformed packet", ErrProtocolViolation)
	ErrInvalidPacketType  = fmt.Errorf("%w: invalid packet type", ErrProtocolViolation)
	ErrInvalidPacketFlags = fmt.Errorf("%w: invalid packet flags", ErrProtocolViolation)
	ErrInvalidPacketID    = fmt.Errorf("%w: packet identifier 0", ErrProtocolViolation)
	ErrUnexpectedPacket   = fmt.Errorf("%w: unexpected packet", ErrProtocolViolation)
	ErrFramerBusy         = fmt.Errorf("%w: outbound frame still draining", ErrInvalidParameter)
)

// Pending list errors.
var (
	ErrListEmpty = errors.New("pending list empty")
	ErrNotFound  = errors.New("packet identifier not found")
)

// Session errors.
var (
	// ErrNotConnected is returned when an operation requires an established session.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on a live session.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectRefused is wrapped by ConnectError.
	ErrConnectRefused = errors.New("connection refused")

	// ErrSubscribeFailed is wrapped by SubscribeError.
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// TransportError wraps a failure reported by the transport.
// It matches both ErrTransport and the underlying cause with errors.Is().
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return "connection error: " + e.Op
	}
	return "connection error: " + e.Op + ": " + e.Cause.Error()
}

func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Cause}
}

// ConnectError contains the return code of a refused connection.
// Extract with errors.As().
type ConnectError struct {
	ReturnCode ConnackCode
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReturnCode.String()
}

func (e *ConnectError) Unwrap() error { return ErrConnectRefused }

// SubscribeError reports a topic filter the broker refused.
// Extract with errors.As().
type SubscribeError struct {
	TopicFilter string
}

func (e *SubscribeError) Error() string {
	return "subscribe failed: " + e.TopicFilter
}

func (e *SubscribeError) Unwrap() error { return ErrSubscribeFailed }

// IsFatal reports whether err leaves the session unusable.
// Transport failures and protocol violations are fatal; timeouts are not.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocolViolation)
}
