package mqtt

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const brokerTimeout = 5 * time.Second

// pipeDialer hands out one end of an in-memory pipe.
type pipeDialer struct {
	conn net.Conn
	err  error
}

func (d *pipeDialer) Dial(_ string, _ time.Duration) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return NewConn(d.conn), nil
}

// testBroker plays the broker side of a session. Its methods return errors
// instead of failing the test because they run on the errgroup goroutine.
type testBroker struct {
	framer *Framer
}

func (b *testBroker) read() (Packet, error) {
	frame, _, err := b.framer.Exchange(nil, true, brokerTimeout)
	if err != nil {
		return nil, err
	}
	defer frame.Release()
	return Unmarshal(frame.Bytes())
}

func (b *testBroker) write(pkt Packet) error {
	frame, err := Marshal(pkt, 0)
	if err != nil {
		return err
	}
	_, _, err = b.framer.Exchange(frame, false, brokerTimeout)
	return err
}

func (b *testBroker) expect(t PacketType) (Packet, error) {
	pkt, err := b.read()
	if err != nil {
		return nil, err
	}
	if pkt.Type() != t {
		return nil, fmt.Errorf("broker got %s, want %s", pkt.Type(), t)
	}
	return pkt, nil
}

func (b *testBroker) accept() (*ConnectPacket, error) {
	pkt, err := b.expect(PacketCONNECT)
	if err != nil {
		return nil, err
	}
	return pkt.(*ConnectPacket), b.write(&ConnackPacket{})
}

// startSession wires a client to a broker script over net.Pipe.
func startSession(t *testing.T, script func(b *testBroker) error, opts ...Option) (*Client, *errgroup.Group) {
	t.Helper()

	clientSide, brokerSide := net.Pipe()
	t.Cleanup(func() {
		clientSide.Close()
		brokerSide.Close()
	})

	b := &testBroker{framer: NewFramer(NewConn(brokerSide), nil, 0)}

	g := new(errgroup.Group)
	g.Go(func() error { return script(b) })

	base := []Option{WithClientID("test-client"), WithDialer(&pipeDialer{conn: clientSide})}
	return NewClient(append(base, opts...)...), g
}

// connected starts a session and completes the handshake before script runs.
func connected(t *testing.T, script func(b *testBroker) error, opts ...Option) (*Client, *errgroup.Group) {
	t.Helper()

	c, g := startSession(t, func(b *testBroker) error {
		if _, err := b.accept(); err != nil {
			return err
		}
		return script(b)
	}, opts...)

	_, err := c.Connect(brokerTimeout, "pipe")
	require.NoError(t, err)
	return c, g
}

func TestClientConnect(t *testing.T) {
	var got *ConnectPacket
	c, g := startSession(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketCONNECT)
		if err != nil {
			return err
		}
		got = pkt.(*ConnectPacket)
		return b.write(&ConnackPacket{SessionPresent: true})
	}, WithKeepAlive(30), WithCredentials("user", "pass"), WithCleanSession(false))

	sessionPresent, err := c.Connect(brokerTimeout, "pipe")
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.True(t, sessionPresent)
	assert.True(t, c.IsConnected())
	assert.Equal(t, "test-client", got.ClientID)
	assert.Equal(t, uint16(30), got.KeepAlive)
	assert.False(t, got.CleanSession)
	assert.Equal(t, "user", got.Username)
	assert.Equal(t, []byte("pass"), got.Password)

	_, err = c.Connect(brokerTimeout, "pipe")
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestClientConnectWill(t *testing.T) {
	var got *ConnectPacket
	c, g := startSession(t, func(b *testBroker) error {
		var err error
		got, err = b.accept()
		return err
	}, WithWill("status/test", []byte("offline"), true, QoS1))

	_, err := c.Connect(brokerTimeout, "pipe")
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.True(t, got.WillFlag)
	assert.Equal(t, "status/test", got.WillTopic)
	assert.Equal(t, []byte("offline"), got.WillMessage)
	assert.Equal(t, QoS1, got.WillQoS)
	assert.True(t, got.WillRetain)
}

func TestClientGeneratedClientID(t *testing.T) {
	c := NewClient()
	assert.Regexp(t, `^mqtt-[0-9a-v]{20}$`, c.ClientID())
	assert.NotEqual(t, c.ClientID(), NewClient().ClientID())

	assert.Empty(t, NewClient(WithAllowEmptyClientID(true)).ClientID())
}

func TestClientConnectRefused(t *testing.T) {
	c, g := startSession(t, func(b *testBroker) error {
		if _, err := b.expect(PacketCONNECT); err != nil {
			return err
		}
		return b.write(&ConnackPacket{ReturnCode: RefusedNotAuthorized})
	})

	_, err := c.Connect(brokerTimeout, "pipe")
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrConnectRefused)
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, RefusedNotAuthorized, connErr.ReturnCode)
	assert.False(t, c.IsConnected())
}

func TestClientConnectUnexpectedFirstPacket(t *testing.T) {
	c, g := startSession(t, func(b *testBroker) error {
		if _, err := b.expect(PacketCONNECT); err != nil {
			return err
		}
		return b.write(&PingrespPacket{})
	})

	_, err := c.Connect(brokerTimeout, "pipe")
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrUnexpectedPacket)
	assert.True(t, IsFatal(err))
	assert.False(t, c.IsConnected())
}

func TestClientConnectTimeout(t *testing.T) {
	c, g := startSession(t, func(b *testBroker) error {
		_, err := b.expect(PacketCONNECT)
		return err
	})

	_, err := c.Connect(100*time.Millisecond, "pipe")
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, c.IsConnected())
}

func TestClientConnectDialError(t *testing.T) {
	dialErr := &TransportError{Op: "dial", Cause: io.ErrUnexpectedEOF}
	c := NewClient(WithClientID("c"), WithDialer(&pipeDialer{err: dialErr}))

	_, err := c.Connect(time.Second, "pipe")
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, c.IsConnected())
}

func TestClientNotConnected(t *testing.T) {
	c := NewClient(WithClientID("c"))

	assert.ErrorIs(t, c.Publish(time.Second, &Message{Topic: "t"}), ErrNotConnected)
	_, err := c.Subscribe(time.Second, Subscription{TopicFilter: "t"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Unsubscribe(time.Second, "t"), ErrNotConnected)
	assert.ErrorIs(t, c.Ping(time.Second), ErrNotConnected)
	assert.ErrorIs(t, c.Disconnect(time.Second), ErrNotConnected)
	_, err = c.Receive(time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.ResendPending(time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestClientPublishQoS0(t *testing.T) {
	var got *PublishPacket
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		got = pkt.(*PublishPacket)
		return nil
	})

	err := c.Publish(time.Second, &Message{Topic: "a/b", Payload: []byte("hello"), Retain: true})
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, "a/b", got.Topic)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, QoS0, got.QoS)
	assert.True(t, got.Retain)
	assert.Equal(t, uint16(0), got.PacketID)
}

func TestClientPublishQoS1(t *testing.T) {
	var ids []uint16
	c, g := connected(t, func(b *testBroker) error {
		for range 2 {
			pkt, err := b.expect(PacketPUBLISH)
			if err != nil {
				return err
			}
			id := pkt.(*PublishPacket).PacketID
			ids = append(ids, id)
			if err := b.write(&PubackPacket{PacketID: id}); err != nil {
				return err
			}
		}
		return nil
	})

	for range 2 {
		require.NoError(t, c.Publish(time.Second, &Message{Topic: "t", Payload: []byte("x"), QoS: QoS1}))
		assert.Equal(t, 0, c.Pending())
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, []uint16{1, 2}, ids)
}

func TestClientPublishQoS1TimeoutStaysPending(t *testing.T) {
	timedOut := make(chan struct{})
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		<-timedOut
		return b.write(&PubackPacket{PacketID: pkt.(*PublishPacket).PacketID})
	})

	err := c.Publish(100*time.Millisecond, &Message{Topic: "t", QoS: QoS1})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, IsFatal(err))
	assert.True(t, c.IsConnected())
	assert.Equal(t, 1, c.Pending())

	close(timedOut)

	// The late PUBACK completes the message while Receive waits.
	_, err = c.Receive(300 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
}

func TestClientPublishQoS2(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		id := pkt.(*PublishPacket).PacketID
		if err := b.write(&PubrecPacket{PacketID: id}); err != nil {
			return err
		}

		rel, err := b.expect(PacketPUBREL)
		if err != nil {
			return err
		}
		if rel.(*PubrelPacket).PacketID != id {
			return errors.New("PUBREL for wrong identifier")
		}
		return b.write(&PubcompPacket{PacketID: id})
	})

	require.NoError(t, c.Publish(time.Second, &Message{Topic: "t", Payload: []byte("once"), QoS: QoS2}))
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
}

func TestClientPublishRateLimit(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		_, err := b.expect(PacketPUBLISH)
		return err
	}, WithPublishRateLimit(rate.Every(time.Hour), 1))

	require.NoError(t, c.Publish(time.Second, &Message{Topic: "t"}))
	require.NoError(t, g.Wait())

	err := c.Publish(100*time.Millisecond, &Message{Topic: "t"})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, c.IsConnected())
}

func TestClientPublishInvalid(t *testing.T) {
	c, g := connected(t, func(*testBroker) error { return nil })
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, c.Publish(time.Second, nil), ErrInvalidParameter)
	assert.ErrorIs(t, c.Publish(time.Second, &Message{Topic: "a/+"}), ErrInvalidTopicName)
	assert.ErrorIs(t, c.Publish(time.Second, &Message{Topic: "t", QoS: 3}), ErrInvalidQoS)
	assert.Equal(t, 0, c.Pending())
	assert.True(t, c.IsConnected())
}

func TestClientSubscribe(t *testing.T) {
	var got *SubscribePacket
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		got = pkt.(*SubscribePacket)
		return b.write(&SubackPacket{PacketID: got.PacketID, ReturnCodes: []byte{QoS1, SubackFailure}})
	})

	codes, err := c.Subscribe(time.Second,
		Subscription{TopicFilter: "sensors/+", QoS: QoS2},
		Subscription{TopicFilter: "forbidden/#", QoS: QoS0},
	)
	require.NoError(t, g.Wait())

	assert.Equal(t, []byte{QoS1, SubackFailure}, codes)
	var subErr *SubscribeError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "forbidden/#", subErr.TopicFilter)
	assert.ErrorIs(t, err, ErrSubscribeFailed)

	assert.Equal(t, map[string]byte{"sensors/+": QoS1}, c.Subscriptions())
	assert.Len(t, got.Subscriptions, 2)
	assert.Equal(t, 0, c.Pending())
	assert.True(t, c.IsConnected())
}

func TestClientSubscribeCodeCountMismatch(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		return b.write(&SubackPacket{PacketID: pkt.(*SubscribePacket).PacketID, ReturnCodes: []byte{QoS0}})
	})

	_, err := c.Subscribe(time.Second, Subscription{TopicFilter: "a"}, Subscription{TopicFilter: "b"})
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.False(t, c.IsConnected())
}

func TestClientUnsubscribe(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		if err := b.write(&SubackPacket{PacketID: pkt.(*SubscribePacket).PacketID, ReturnCodes: []byte{0, 0}}); err != nil {
			return err
		}

		pkt, err = b.expect(PacketUNSUBSCRIBE)
		if err != nil {
			return err
		}
		unsub := pkt.(*UnsubscribePacket)
		if len(unsub.TopicFilters) != 1 || unsub.TopicFilters[0] != "a" {
			return fmt.Errorf("unexpected filters %v", unsub.TopicFilters)
		}
		return b.write(&UnsubackPacket{PacketID: unsub.PacketID})
	})

	_, err := c.Subscribe(time.Second, Subscription{TopicFilter: "a"}, Subscription{TopicFilter: "b"})
	require.NoError(t, err)
	require.NoError(t, c.Unsubscribe(time.Second, "a"))
	require.NoError(t, g.Wait())

	assert.Equal(t, map[string]byte{"b": QoS0}, c.Subscriptions())
	assert.Equal(t, 0, c.Pending())
}

func TestClientPing(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		if _, err := b.expect(PacketPINGREQ); err != nil {
			return err
		}
		return b.write(&PingrespPacket{})
	})

	require.NoError(t, c.Ping(time.Second))
	require.NoError(t, g.Wait())
	assert.False(t, c.KeepAliveDue())
}

func TestClientDisconnect(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		_, err := b.expect(PacketDISCONNECT)
		return err
	})

	require.NoError(t, c.Disconnect(time.Second))
	require.NoError(t, g.Wait())

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish(time.Second, &Message{Topic: "t"}), ErrNotConnected)
}

func TestClientReceiveQoS1(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		if err := b.write(&PublishPacket{Topic: "a/b", Payload: []byte("hi"), QoS: QoS1, PacketID: 7}); err != nil {
			return err
		}
		pkt, err := b.expect(PacketPUBACK)
		if err != nil {
			return err
		}
		if pkt.(*PubackPacket).PacketID != 7 {
			return errors.New("PUBACK for wrong identifier")
		}
		return nil
	})

	msg, err := c.Receive(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Equal(t, "a/b", msg.Topic)
	assert.Equal(t, []byte("hi"), msg.Payload)
	assert.Equal(t, QoS1, msg.QoS)
	assert.Equal(t, uint16(7), msg.PacketID)
}

func TestClientReceiveQoS2DeliveredOnce(t *testing.T) {
	var delivered int
	c, g := connected(t, func(b *testBroker) error {
		pub := &PublishPacket{Topic: "t", Payload: []byte("x"), QoS: QoS2, PacketID: 3}
		if err := b.write(pub); err != nil {
			return err
		}
		if _, err := b.expect(PacketPUBREC); err != nil {
			return err
		}

		pub.DUP = true
		if err := b.write(pub); err != nil {
			return err
		}
		if _, err := b.expect(PacketPUBREC); err != nil {
			return err
		}

		if err := b.write(&PubrelPacket{PacketID: 3}); err != nil {
			return err
		}
		_, err := b.expect(PacketPUBCOMP)
		return err
	}, WithMessageHandler(func(*Message) { delivered++ }))

	msg, err := c.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "t", msg.Topic)

	_, err = c.Receive(300 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, delivered)
}

func TestClientMessageDuringOperationIsQueued(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		if err := b.write(&PublishPacket{Topic: "news", Payload: []byte("early")}); err != nil {
			return err
		}
		return b.write(&SubackPacket{PacketID: pkt.(*SubscribePacket).PacketID, ReturnCodes: []byte{QoS0}})
	})

	_, err := c.Subscribe(time.Second, Subscription{TopicFilter: "news"})
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	msg, err := c.Receive(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("early"), msg.Payload)
}

func TestClientUnexpectedPacketIsFatal(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		return b.write(&ConnackPacket{})
	})

	_, err := c.Receive(time.Second)
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrUnexpectedPacket)
	assert.False(t, c.IsConnected())
}

func TestClientBrokerClosesConnection(t *testing.T) {
	var brokerConn *testBroker
	c, g := connected(t, func(b *testBroker) error {
		brokerConn = b
		return nil
	})
	require.NoError(t, g.Wait())
	brokerConn.framer.conn.Close()

	_, err := c.Receive(time.Second)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, c.IsConnected())
}

func TestClientResendPending(t *testing.T) {
	timedOut := make(chan struct{})
	c, g := connected(t, func(b *testBroker) error {
		first, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		<-timedOut

		again, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		resent := again.(*PublishPacket)
		if !resent.DUP || resent.PacketID != first.(*PublishPacket).PacketID {
			return fmt.Errorf("resent PUBLISH dup=%v id=%d", resent.DUP, resent.PacketID)
		}
		return b.write(&PubackPacket{PacketID: resent.PacketID})
	}, WithRetryInterval(0))

	err := c.Publish(100*time.Millisecond, &Message{Topic: "t", QoS: QoS1})
	require.ErrorIs(t, err, ErrTimeout)
	close(timedOut)

	n, err := c.ResendPending(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Pending())

	_, err = c.Receive(300 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
}

func TestClientResendPubrel(t *testing.T) {
	timedOut := make(chan struct{})
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		id := pkt.(*PublishPacket).PacketID
		if err := b.write(&PubrecPacket{PacketID: id}); err != nil {
			return err
		}
		if _, err := b.expect(PacketPUBREL); err != nil {
			return err
		}
		<-timedOut

		rel, err := b.expect(PacketPUBREL)
		if err != nil {
			return err
		}
		return b.write(&PubcompPacket{PacketID: rel.(*PubrelPacket).PacketID})
	}, WithRetryInterval(0))

	err := c.Publish(200*time.Millisecond, &Message{Topic: "t", QoS: QoS2})
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, AwaitingPubcomp, c.pending.Front().State)
	close(timedOut)

	n, err := c.ResendPending(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.Receive(300 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
}

func TestClientResendPendingNotDue(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		_, err := b.expect(PacketPUBLISH)
		return err
	}, WithRetryInterval(time.Hour))

	err := c.Publish(100*time.Millisecond, &Message{Topic: "t", QoS: QoS1})
	require.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())

	n, err := c.ResendPending(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClientCleanSessionDiscardsPending(t *testing.T) {
	clientSide, brokerSide := net.Pipe()
	dialer := &pipeDialer{conn: clientSide}
	c := NewClient(WithClientID("c"), WithDialer(dialer))

	b := &testBroker{framer: NewFramer(NewConn(brokerSide), nil, 0)}
	g := new(errgroup.Group)
	g.Go(func() error {
		if _, err := b.accept(); err != nil {
			return err
		}
		_, err := b.expect(PacketPUBLISH)
		return err
	})

	_, err := c.Connect(time.Second, "pipe")
	require.NoError(t, err)
	require.ErrorIs(t, c.Publish(100*time.Millisecond, &Message{Topic: "t", QoS: QoS1}), ErrTimeout)
	require.NoError(t, g.Wait())
	require.NoError(t, c.Close())
	brokerSide.Close()
	assert.Equal(t, 1, c.Pending())

	clientSide, brokerSide = net.Pipe()
	defer brokerSide.Close()
	dialer.conn = clientSide
	b = &testBroker{framer: NewFramer(NewConn(brokerSide), nil, 0)}
	g = new(errgroup.Group)
	g.Go(func() error {
		_, err := b.accept()
		return err
	})

	_, err = c.Connect(time.Second, "pipe")
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
	require.NoError(t, c.Close())
}

func TestClientKeepAlive(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		if _, err := b.expect(PacketPINGREQ); err != nil {
			return err
		}
		return b.write(&PingrespPacket{})
	}, WithKeepAlive(1))

	assert.False(t, c.KeepAliveDue())

	_, err := c.Receive(1500 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, g.Wait())
	assert.True(t, c.IsConnected())
}

func TestClientKeepAliveUnanswered(t *testing.T) {
	if testing.Short() {
		t.Skip("waits two keep-alive intervals")
	}

	c, g := connected(t, func(b *testBroker) error {
		_, err := b.expect(PacketPINGREQ)
		return err
	}, WithKeepAlive(1))

	_, err := c.Receive(5 * time.Second)
	require.NoError(t, g.Wait())

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrKeepAliveTimeout)
	assert.False(t, c.IsConnected())
}

func TestClientMismatchedAckKeepsPending(t *testing.T) {
	tests := []struct {
		name string
		ack  func(id uint16) Packet
	}{
		{"puback", func(id uint16) Packet { return &PubackPacket{PacketID: id} }},
		{"pubcomp", func(id uint16) Packet { return &PubcompPacket{PacketID: id} }},
		{"suback", func(id uint16) Packet { return &SubackPacket{PacketID: id, ReturnCodes: []byte{QoS0}} }},
		{"unsuback", func(id uint16) Packet { return &UnsubackPacket{PacketID: id} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, g := connected(t, func(b *testBroker) error {
				pkt, err := b.expect(PacketPUBLISH)
				if err != nil {
					return err
				}
				return b.write(tt.ack(pkt.(*PublishPacket).PacketID))
			})

			err := c.Publish(200*time.Millisecond, &Message{Topic: "t", QoS: QoS2})
			require.NoError(t, g.Wait())

			assert.ErrorIs(t, err, ErrTimeout)
			assert.True(t, c.IsConnected())
			require.Equal(t, 1, c.Pending())
			assert.Equal(t, AwaitingPubrec, c.pending.Front().State)
		})
	}
}

func TestClientPubrecForQoS1IsIgnored(t *testing.T) {
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketPUBLISH)
		if err != nil {
			return err
		}
		id := pkt.(*PublishPacket).PacketID
		if err := b.write(&PubrecPacket{PacketID: id}); err != nil {
			return err
		}
		if err := b.write(&PubackPacket{PacketID: id}); err != nil {
			return err
		}

		// No PUBREL may come before the PINGREQ.
		if _, err := b.expect(PacketPINGREQ); err != nil {
			return err
		}
		return b.write(&PingrespPacket{})
	})

	require.NoError(t, c.Publish(time.Second, &Message{Topic: "t", QoS: QoS1}))
	require.NoError(t, c.Ping(time.Second))
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, c.Pending())
}

func TestClientLateSubackRecordsSubscriptions(t *testing.T) {
	timedOut := make(chan struct{})
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		<-timedOut
		if err := b.write(&SubackPacket{PacketID: pkt.(*SubscribePacket).PacketID, ReturnCodes: []byte{QoS1, SubackFailure}}); err != nil {
			return err
		}
		return b.write(&PublishPacket{Topic: "sensors/1", Payload: []byte("21.5")})
	})

	_, err := c.Subscribe(100*time.Millisecond,
		Subscription{TopicFilter: "sensors/+", QoS: QoS1},
		Subscription{TopicFilter: "forbidden/#", QoS: QoS1},
	)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, c.Pending())
	assert.Empty(t, c.Subscriptions())

	close(timedOut)

	msg, err := c.Receive(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Equal(t, "sensors/1", msg.Topic)
	assert.Equal(t, map[string]byte{"sensors/+": QoS1}, c.Subscriptions())
	assert.Equal(t, 0, c.Pending())
}

func TestClientLateUnsubackRemovesSubscriptions(t *testing.T) {
	timedOut := make(chan struct{})
	c, g := connected(t, func(b *testBroker) error {
		pkt, err := b.expect(PacketSUBSCRIBE)
		if err != nil {
			return err
		}
		if err := b.write(&SubackPacket{PacketID: pkt.(*SubscribePacket).PacketID, ReturnCodes: []byte{QoS0}}); err != nil {
			return err
		}

		pkt, err = b.expect(PacketUNSUBSCRIBE)
		if err != nil {
			return err
		}
		<-timedOut
		if err := b.write(&UnsubackPacket{PacketID: pkt.(*UnsubscribePacket).PacketID}); err != nil {
			return err
		}
		return b.write(&PublishPacket{Topic: "other", Payload: []byte("x")})
	})

	_, err := c.Subscribe(time.Second, Subscription{TopicFilter: "a"})
	require.NoError(t, err)

	err = c.Unsubscribe(100*time.Millisecond, "a")
	assert.ErrorIs(t, err, ErrTimeout)
	close(timedOut)

	_, err = c.Receive(time.Second)
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Empty(t, c.Subscriptions())
	assert.Equal(t, 0, c.Pending())
}

func TestClientSendReleasesFrameOnStoppedFramer(t *testing.T) {
	clock := newManualClock()
	conn := newScriptConn(clock)

	c := NewClient(WithClientID("test-client"), WithClock(clock))
	c.conn = conn
	c.framer = NewFramer(conn, clock, 0)
	c.connected = true
	c.framer.fail(&TransportError{Op: "read", Cause: io.EOF})

	frame, err := Marshal(&PingreqPacket{}, 0)
	require.NoError(t, err)

	err = c.send(frame, newDeadline(clock, time.Second))
	assert.ErrorIs(t, err, io.EOF)
	assert.Nil(t, frame.Bytes())
	assert.False(t, c.IsConnected())
	assert.True(t, conn.closed)
}
