package mqtt

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
		fatal    bool
	}{
		{"length too long", ErrLengthTooLong, ErrInvalidParameter, false},
		{"framer busy", ErrFramerBusy, ErrInvalidParameter, false},
		{"malformed length", ErrMalformedLength, ErrProtocolViolation, true},
		{"message too large", ErrMessageTooLarge, ErrProtocolViolation, true},
		{"malformed packet", ErrMalformedPacket, ErrProtocolViolation, true},
		{"invalid packet type", ErrInvalidPacketType, ErrProtocolViolation, true},
		{"invalid packet flags", ErrInvalidPacketFlags, ErrProtocolViolation, true},
		{"invalid packet id", ErrInvalidPacketID, ErrProtocolViolation, true},
		{"unexpected packet", ErrUnexpectedPacket, ErrProtocolViolation, true},
		{"timeout", ErrTimeout, ErrTimeout, false},
		{"out of memory", ErrOutOfMemory, ErrOutOfMemory, false},
		{"wrapped timeout", fmt.Errorf("publish: %w", ErrTimeout), ErrTimeout, false},
		{"transport", &TransportError{Op: "read", Cause: io.EOF}, ErrTransport, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.category)
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestIsFatalNil(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrNotConnected))
}

func TestTransportError(t *testing.T) {
	t.Run("with cause", func(t *testing.T) {
		err := error(&TransportError{Op: "write", Cause: io.ErrClosedPipe})

		assert.Equal(t, "connection error: write: io: read/write on closed pipe", err.Error())
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, io.ErrClosedPipe)

		var te *TransportError
		require.True(t, errors.As(fmt.Errorf("send: %w", err), &te))
		assert.Equal(t, "write", te.Op)
	})

	t.Run("without cause", func(t *testing.T) {
		err := error(&TransportError{Op: "keepalive"})

		assert.Equal(t, "connection error: keepalive", err.Error())
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("keepalive timeout", func(t *testing.T) {
		err := error(&TransportError{Op: "keepalive", Cause: ErrKeepAliveTimeout})

		assert.ErrorIs(t, err, ErrKeepAliveTimeout)
		assert.True(t, IsFatal(err))
	})
}

func TestConnectError(t *testing.T) {
	err := error(&ConnectError{ReturnCode: RefusedNotAuthorized})

	assert.ErrorIs(t, err, ErrConnectRefused)
	assert.False(t, IsFatal(err))
	assert.Contains(t, err.Error(), "connect failed")

	var ce *ConnectError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, RefusedNotAuthorized, ce.ReturnCode)
}

func TestSubscribeError(t *testing.T) {
	err := error(&SubscribeError{TopicFilter: "a/#"})

	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Equal(t, "subscribe failed: a/#", err.Error())

	var se *SubscribeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "a/#", se.TopicFilter)
}
