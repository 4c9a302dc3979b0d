package mqtt

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"time"

	"github.com/rs/xid"
	"golang.org/x/time/rate"
)

// ErrKeepAliveTimeout is the cause reported when the broker does not answer a PINGREQ in time.
var ErrKeepAliveTimeout = errors.New("keep-alive timeout")

// Client is an MQTT v3.1.1 client session.
//
// Every blocking method takes a time budget as its first argument and returns
// ErrTimeout when the budget runs out. A timeout leaves the session usable:
// unacknowledged packets stay pending and partially transferred packets are
// resumed by the next call. Transport failures and protocol violations close
// the session; Connect must be called again.
//
// A Client is not safe for concurrent use.
type Client struct {
	options    *clientOptions
	clock      Clock
	logger     Logger
	metrics    clientMetrics
	limiter    *rate.Limiter
	serializer *Serializer
	clientID   string

	conn      Conn
	framer    *Framer
	connected bool

	pending       PendingList
	inboundQoS2   map[uint16]struct{}
	inbox         []*Message
	subscriptions map[string]byte

	lastSent        time.Time
	pingSentAt      time.Time
	pingOutstanding bool
}

// NewClient creates a disconnected client.
func NewClient(opts ...Option) *Client {
	options := applyOptions(opts...)

	clientID := options.clientID
	if clientID == "" && !options.allowEmptyClientID {
		clientID = "mqtt-" + xid.New().String()
	}

	c := &Client{
		options:       options,
		clock:         options.clock,
		logger:        options.logger.WithFields(LogFields{LogFieldClientID: clientID}),
		metrics:       clientMetrics{metrics: options.metrics},
		serializer:    NewSerializer(int(options.maxMessageSize)+maxHeaderSize, options.allowEmptyClientID),
		clientID:      clientID,
		inboundQoS2:   make(map[uint16]struct{}),
		subscriptions: make(map[string]byte),
	}
	c.serializer.InUse = c.pending.Contains

	if options.publishLimit != rate.Inf {
		c.limiter = rate.NewLimiter(options.publishLimit, options.publishBurst)
	}

	return c
}

// ClientID returns the client identifier sent in CONNECT.
func (c *Client) ClientID() string {
	return c.clientID
}

// IsConnected reports whether the session is established.
func (c *Client) IsConnected() bool {
	return c.connected
}

// KeepAlive returns the keep-alive interval, 0 if disabled.
func (c *Client) KeepAlive() time.Duration {
	return time.Duration(c.options.keepAlive) * time.Second
}

// Pending returns the number of packets waiting for acknowledgment.
func (c *Client) Pending() int {
	return c.pending.Len()
}

// Subscriptions returns the topic filters granted by the broker with their QoS.
func (c *Client) Subscriptions() map[string]byte {
	return maps.Clone(c.subscriptions)
}

// KeepAliveDue reports whether a PINGREQ is needed to keep the connection alive.
func (c *Client) KeepAliveDue() bool {
	ka := c.KeepAlive()
	if !c.connected || ka == 0 || c.pingOutstanding {
		return false
	}
	return c.clock.Now().Sub(c.lastSent) >= ka
}

// Connect dials uri and performs the CONNECT/CONNACK handshake.
// It returns the broker's session-present flag. Any failure, including a
// timeout, closes the connection.
func (c *Client) Connect(budget time.Duration, uri string) (bool, error) {
	if c.connected {
		return false, ErrAlreadyConnected
	}

	d := newDeadline(c.clock, budget)

	pkt := &ConnectPacket{
		ClientID:           c.clientID,
		CleanSession:       c.options.cleanSession,
		KeepAlive:          c.options.keepAlive,
		Username:           c.options.username,
		Password:           c.options.password,
		AllowEmptyClientID: c.options.allowEmptyClientID,
	}
	if c.options.willMessage != nil {
		pkt.WillFlag = true
		pkt.WillTopic = c.options.willTopic
		pkt.WillMessage = c.options.willMessage
		pkt.WillQoS = c.options.willQoS
		pkt.WillRetain = c.options.willRetain
	}

	frame, err := c.serializer.Serialize(pkt)
	if err != nil {
		return false, err
	}

	conn, err := c.options.dialer.Dial(uri, d.remaining())
	if err != nil {
		frame.Release()
		c.logger.Error("dial failed", LogFields{LogFieldError: err.Error()})
		if errors.Is(err, ErrTimeout) {
			c.metrics.timeout("connect")
		}
		return false, err
	}

	c.conn = conn
	c.framer = NewFramer(conn, c.clock, c.options.maxMessageSize)

	connack, err := c.handshake(frame, d)
	if err != nil {
		c.teardown(err)
		return false, err
	}

	if connack.ReturnCode != ConnectionAccepted {
		err := &ConnectError{ReturnCode: connack.ReturnCode}
		c.logger.Warn("connection refused", LogFields{LogFieldReturnCode: byte(connack.ReturnCode)})
		c.teardown(err)
		return false, err
	}

	c.connected = true
	if c.options.cleanSession {
		c.discardSession()
	}
	c.metrics.connected()

	fields := LogFields{"session_present": connack.SessionPresent}
	if ra, ok := conn.(interface{ RemoteAddr() net.Addr }); ok {
		fields[LogFieldRemoteAddr] = ra.RemoteAddr().String()
	}
	c.logger.Info("connected", fields)

	return connack.SessionPresent, nil
}

// handshake sends CONNECT and reads the broker's first packet, which must be CONNACK.
func (c *Client) handshake(frame *Frame, d deadline) (*ConnackPacket, error) {
	if err := c.send(frame, d); err != nil {
		return nil, err
	}

	pkt, err := c.readPacket(d)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.metrics.timeout("connect")
		}
		return nil, err
	}

	connack, ok := pkt.(*ConnackPacket)
	if !ok {
		return nil, fmt.Errorf("%w: %s before CONNACK", ErrUnexpectedPacket, pkt.Type())
	}
	return connack, nil
}

// Publish sends msg. QoS 0 returns once the packet is written. QoS 1 waits
// for PUBACK and QoS 2 for the PUBREC, PUBREL, PUBCOMP exchange. A QoS 1/2
// message is pending from the moment it is encoded until its final
// acknowledgment; a timeout leaves it pending.
func (c *Client) Publish(budget time.Duration, msg *Message) error {
	if !c.connected {
		return ErrNotConnected
	}
	if msg == nil {
		return ErrInvalidParameter
	}

	d := newDeadline(c.clock, budget)
	if err := c.throttle(d); err != nil {
		return err
	}

	pkt := &PublishPacket{}
	pkt.FromMessage(msg)

	frame, err := c.serializer.Serialize(pkt)
	if err != nil {
		return err
	}

	if pkt.QoS == QoS0 {
		return c.sendOp("publish", frame, d)
	}

	entry := c.track(pkt, AwaitingAck)
	if pkt.QoS == QoS2 {
		entry.State = AwaitingPubrec
	}

	if err := c.sendOp("publish", frame, d); err != nil {
		return err
	}

	if pkt.QoS == QoS1 {
		if _, err := c.awaitOp("publish", d, PacketPUBACK, pkt.PacketID); err != nil {
			return err
		}
		c.complete(pkt.PacketID)
		return nil
	}

	if _, err := c.awaitOp("publish", d, PacketPUBREC, pkt.PacketID); err != nil {
		return err
	}
	if err := c.release(entry, d); err != nil {
		return err
	}
	if _, err := c.awaitOp("publish", d, PacketPUBCOMP, pkt.PacketID); err != nil {
		return err
	}
	c.complete(pkt.PacketID)
	return nil
}

// Subscribe requests subs and waits for SUBACK. It returns the return code
// granted for each filter. Refused filters are reported with a *SubscribeError
// alongside the codes.
func (c *Client) Subscribe(budget time.Duration, subs ...Subscription) ([]byte, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	d := newDeadline(c.clock, budget)

	pkt := &SubscribePacket{Subscriptions: subs}
	frame, err := c.serializer.Serialize(pkt)
	if err != nil {
		return nil, err
	}

	c.track(pkt, AwaitingAck)
	if err := c.sendOp("subscribe", frame, d); err != nil {
		return nil, err
	}

	resp, err := c.awaitOp("subscribe", d, PacketSUBACK, pkt.PacketID)
	if err != nil {
		return nil, err
	}
	c.complete(pkt.PacketID)

	suback := resp.(*SubackPacket)
	if len(suback.ReturnCodes) != len(subs) {
		err := fmt.Errorf("%w: SUBACK has %d return codes for %d filters", ErrMalformedPacket, len(suback.ReturnCodes), len(subs))
		c.teardown(err)
		return nil, err
	}

	return suback.ReturnCodes, c.recordSubscriptions(subs, suback.ReturnCodes)
}

// Unsubscribe removes filters and waits for UNSUBACK.
func (c *Client) Unsubscribe(budget time.Duration, filters ...string) error {
	if !c.connected {
		return ErrNotConnected
	}

	d := newDeadline(c.clock, budget)

	pkt := &UnsubscribePacket{TopicFilters: filters}
	frame, err := c.serializer.Serialize(pkt)
	if err != nil {
		return err
	}

	c.track(pkt, AwaitingAck)
	if err := c.sendOp("unsubscribe", frame, d); err != nil {
		return err
	}

	if _, err := c.awaitOp("unsubscribe", d, PacketUNSUBACK, pkt.PacketID); err != nil {
		return err
	}
	c.complete(pkt.PacketID)

	for _, f := range filters {
		delete(c.subscriptions, f)
	}
	return nil
}

// Ping sends PINGREQ and waits for PINGRESP.
func (c *Client) Ping(budget time.Duration) error {
	if !c.connected {
		return ErrNotConnected
	}

	d := newDeadline(c.clock, budget)
	if err := c.sendPing(d); err != nil {
		return err
	}

	if _, err := c.awaitOp("ping", d, PacketPINGRESP, 0); err != nil {
		return err
	}
	c.pingOutstanding = false
	return nil
}

// Disconnect sends DISCONNECT and closes the connection. No response is expected.
func (c *Client) Disconnect(budget time.Duration) error {
	if !c.connected {
		return ErrNotConnected
	}

	d := newDeadline(c.clock, budget)

	frame, err := Marshal(&DisconnectPacket{}, 0)
	if err == nil {
		err = c.sendOp("disconnect", frame, d)
	}

	c.logger.Info("disconnected", nil)
	c.teardown(nil)
	return err
}

// Close drops the connection without sending DISCONNECT, so the broker
// publishes the will message. Pending packets are kept until the next
// Connect with a clean session.
func (c *Client) Close() error {
	c.teardown(nil)
	return nil
}

// Receive returns the next inbound application message. Acknowledgments for
// inbound QoS 1/2 messages are sent before it returns. While waiting it
// answers the keep-alive by sending PINGREQ when due, and processes late
// acknowledgments of earlier operations.
//
// With a MessageHandler configured the message is passed to the handler and
// also returned.
func (c *Client) Receive(budget time.Duration) (*Message, error) {
	if len(c.inbox) > 0 {
		msg := c.inbox[0]
		c.inbox[0] = nil
		c.inbox = c.inbox[1:]
		return msg, nil
	}
	if !c.connected {
		return nil, ErrNotConnected
	}

	d := newDeadline(c.clock, budget)

	for {
		if err := c.keepAlive(d); err != nil {
			return nil, err
		}

		// Wake up for the next keep-alive deadline.
		wait := d.remaining()
		if ka := c.KeepAlive(); ka > 0 {
			wait = min(wait, c.keepAliveWait(ka))
		}

		pkt, err := c.readPacketWithin(d, wait)
		if err != nil {
			if errors.Is(err, ErrTimeout) && !d.expired() {
				continue
			}
			if errors.Is(err, ErrTimeout) {
				c.metrics.timeout("receive")
			}
			return nil, err
		}

		msg, err := c.dispatch(pkt, d)
		if err != nil || msg != nil {
			return msg, err
		}
	}
}

// ResendPending sends every pending packet older than the retry interval
// again, oldest first: PUBLISH with the DUP flag and its original
// identifier, PUBREL for QoS 2 messages already acknowledged with PUBREC,
// and SUBSCRIBE or UNSUBSCRIBE unchanged. It does not wait for the
// acknowledgments; they are processed by later calls. Returns the number of
// packets sent.
func (c *Client) ResendPending(budget time.Duration) (int, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}

	d := newDeadline(c.clock, budget)
	now := c.clock.Now()

	var due []*PendingEntry
	c.pending.Each(func(e *PendingEntry) bool {
		if now.Sub(e.SentAt) >= c.options.retryInterval {
			due = append(due, e)
		}
		return true
	})

	sent := 0
	for _, e := range due {
		var pkt Packet = e.Packet
		switch p := e.Packet.(type) {
		case *PublishPacket:
			if e.State == AwaitingPubcomp {
				pkt = &PubrelPacket{PacketID: e.PacketID}
			} else {
				p.DUP = true
			}
		}

		frame, err := Marshal(pkt, c.serializer.capacity)
		if err != nil {
			return sent, err
		}
		if err := c.sendOp("resend", frame, d); err != nil {
			return sent, err
		}

		e.SentAt = c.clock.Now()
		sent++
		c.logger.Debug("packet resent", LogFields{
			LogFieldPacketType: pkt.Type().String(),
			LogFieldPacketID:   e.PacketID,
		})
	}

	return sent, nil
}

// track appends pkt to the pending list.
func (c *Client) track(pkt PacketWithID, state PendingState) *PendingEntry {
	e := &PendingEntry{
		PacketID: pkt.GetPacketID(),
		Packet:   pkt,
		State:    state,
		SentAt:   c.clock.Now(),
	}
	c.pending.PushBack(e)
	c.metrics.pending(c.pending.Len())
	return e
}

// complete removes the entry for id after its final acknowledgment.
func (c *Client) complete(id uint16) {
	e, err := c.pending.Get(id)
	if err != nil {
		return
	}
	c.metrics.pending(c.pending.Len())
	c.metrics.acknowledged(e.Packet.Type(), c.clock.Now().Sub(e.SentAt))
}

// release moves a QoS 2 entry past PUBREC and sends PUBREL.
func (c *Client) release(e *PendingEntry, d deadline) error {
	e.State = AwaitingPubcomp
	frame, err := Marshal(&PubrelPacket{PacketID: e.PacketID}, 0)
	if err != nil {
		return err
	}
	return c.sendOp("pubrel", frame, d)
}

// throttle waits for a publish token from the rate limiter within the budget.
func (c *Client) throttle(d deadline) error {
	if c.limiter == nil {
		return nil
	}

	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("%w: publish rate limit burst is 0", ErrInvalidParameter)
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if delay > d.remaining() {
		r.CancelAt(now)
		c.metrics.timeout("publish")
		return ErrTimeout
	}

	c.clock.Sleep(delay)
	return nil
}

// keepAlive sends PINGREQ when the interval has elapsed and fails the
// session when an earlier PINGREQ went unanswered for a whole interval.
func (c *Client) keepAlive(d deadline) error {
	ka := c.KeepAlive()
	if ka == 0 {
		return nil
	}

	if c.pingOutstanding && c.clock.Now().Sub(c.pingSentAt) >= ka {
		err := &TransportError{Op: "keepalive", Cause: ErrKeepAliveTimeout}
		c.teardown(err)
		return err
	}

	if c.KeepAliveDue() {
		return c.sendPing(d)
	}
	return nil
}

// keepAliveWait returns how long until the next keep-alive action.
func (c *Client) keepAliveWait(ka time.Duration) time.Duration {
	since := c.lastSent
	if c.pingOutstanding {
		since = c.pingSentAt
	}
	wait := saturatingSub(ka, c.clock.Now().Sub(since))
	return max(wait, time.Millisecond)
}

func (c *Client) sendPing(d deadline) error {
	frame, err := Marshal(&PingreqPacket{}, 0)
	if err != nil {
		return err
	}
	if err := c.sendOp("ping", frame, d); err != nil {
		return err
	}
	c.pingOutstanding = true
	c.pingSentAt = c.clock.Now()
	return nil
}

// sendOp sends frame and records timeouts under op.
func (c *Client) sendOp(op string, frame *Frame, d deadline) error {
	err := c.send(frame, d)
	if errors.Is(err, ErrTimeout) {
		c.metrics.timeout(op)
	}
	return err
}

// send drains any earlier outbound frame, then writes frame. On timeout the
// framer keeps the unsent bytes and the next send continues with them.
func (c *Client) send(frame *Frame, d deadline) error {
	if c.framer == nil {
		frame.Release()
		return ErrNotConnected
	}

	if c.framer.Busy() {
		if _, _, err := c.framer.Exchange(nil, false, d.remaining()); err != nil {
			frame.Release()
			return c.check(err)
		}
	}

	// A stopped framer refuses the frame without taking it.
	if err := c.framer.Err(); err != nil {
		frame.Release()
		return c.check(err)
	}

	t, n := frame.Type(), frame.Len()
	if _, _, err := c.framer.Exchange(frame, false, d.remaining()); err != nil {
		if errors.Is(err, ErrFramerBusy) {
			frame.Release()
		}
		return c.check(err)
	}

	c.lastSent = c.clock.Now()
	c.metrics.packetSent(t, n)
	c.logger.Debug("packet sent", LogFields{LogFieldPacketType: t.String(), LogFieldBytes: n})
	return nil
}

// awaitOp waits for the packet of type t with identifier id (ignored for
// types without one), dispatching everything else that arrives first.
func (c *Client) awaitOp(op string, d deadline, t PacketType, id uint16) (Packet, error) {
	for {
		pkt, err := c.readPacket(d)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.metrics.timeout(op)
			}
			return nil, err
		}

		if pkt.Type() == t {
			withID, ok := pkt.(PacketWithID)
			if !ok || withID.GetPacketID() == id {
				return pkt, nil
			}
		}

		msg, err := c.dispatch(pkt, d)
		if msg != nil && c.options.handler == nil {
			c.inbox = append(c.inbox, msg)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *Client) readPacket(d deadline) (Packet, error) {
	return c.readPacketWithin(d, d.remaining())
}

// readPacketWithin reads one packet, spending at most wait of the budget.
func (c *Client) readPacketWithin(d deadline, wait time.Duration) (Packet, error) {
	if c.framer == nil {
		return nil, ErrNotConnected
	}

	frame, _, err := c.framer.Exchange(nil, true, min(wait, d.remaining()))
	if err != nil {
		return nil, c.check(err)
	}
	defer frame.Release()

	c.metrics.packetReceived(frame.Type(), frame.Len())

	pkt, err := Unmarshal(frame.Bytes())
	if err != nil {
		c.logger.Error("malformed packet", LogFields{
			LogFieldPacketType: frame.Type().String(),
			LogFieldError:      err.Error(),
		})
		return nil, c.check(err)
	}

	c.logger.Debug("packet received", LogFields{LogFieldPacketType: pkt.Type().String(), LogFieldBytes: frame.Len()})
	return pkt, nil
}

// dispatch handles a packet nobody is waiting for. It returns the
// application message when pkt is a PUBLISH delivered for the first time.
func (c *Client) dispatch(pkt Packet, d deadline) (*Message, error) {
	switch p := pkt.(type) {
	case *PublishPacket:
		return c.handlePublish(p, d)

	case *PubrelPacket:
		delete(c.inboundQoS2, p.PacketID)
		return nil, c.reply(&PubcompPacket{PacketID: p.PacketID}, d)

	case *PubrecPacket:
		e := c.late(p)
		if e == nil {
			return nil, nil
		}
		return nil, c.release(e, d)

	case *PubackPacket, *PubcompPacket, *SubackPacket, *UnsubackPacket:
		if e := c.late(p.(PacketWithID)); e != nil {
			c.acknowledge(e, pkt)
		}
		return nil, nil

	case *PingrespPacket:
		c.pingOutstanding = false
		return nil, nil

	default:
		// CONNECT, CONNACK, SUBSCRIBE, UNSUBSCRIBE, PINGREQ and DISCONNECT never flow to a client.
		err := fmt.Errorf("%w: %s", ErrUnexpectedPacket, pkt.Type())
		c.logger.Error("unexpected packet", LogFields{LogFieldPacketType: pkt.Type().String()})
		c.teardown(err)
		return nil, err
	}
}

// late returns the pending entry an acknowledgment nobody waits for
// belongs to, or nil when there is none or the entry expects another
// acknowledgment. Mismatches leave the entry pending.
func (c *Client) late(ack PacketWithID) *PendingEntry {
	t, id := ack.Type(), ack.GetPacketID()

	e, err := c.pending.Peek(id)
	if err != nil {
		c.logger.Warn("unknown packet identifier", LogFields{LogFieldPacketType: t.String(), LogFieldPacketID: id})
		return nil
	}
	if !acknowledges(t, e) {
		c.logger.Warn("acknowledgment does not match pending packet", LogFields{
			LogFieldPacketType: t.String(),
			LogFieldPacketID:   id,
			"pending_type":     e.Packet.Type().String(),
			"pending_state":    e.State.String(),
		})
		return nil
	}

	c.logger.Debug("late acknowledgment", LogFields{LogFieldPacketType: t.String(), LogFieldPacketID: id})
	return e
}

// acknowledges reports whether an acknowledgment of type t advances e.
func acknowledges(t PacketType, e *PendingEntry) bool {
	switch p := e.Packet.(type) {
	case *PublishPacket:
		switch t {
		case PacketPUBACK:
			return p.QoS == QoS1
		case PacketPUBREC:
			// A repeated PUBREC is answered with PUBREL again.
			return p.QoS == QoS2 && (e.State == AwaitingPubrec || e.State == AwaitingPubcomp)
		case PacketPUBCOMP:
			return p.QoS == QoS2 && e.State == AwaitingPubcomp
		}
	case *SubscribePacket:
		return t == PacketSUBACK
	case *UnsubscribePacket:
		return t == PacketUNSUBACK
	}
	return false
}

// acknowledge applies the final acknowledgment resp to e and removes it.
func (c *Client) acknowledge(e *PendingEntry, resp Packet) {
	switch req := e.Packet.(type) {
	case *SubscribePacket:
		suback := resp.(*SubackPacket)
		if len(suback.ReturnCodes) == len(req.Subscriptions) {
			c.recordSubscriptions(req.Subscriptions, suback.ReturnCodes)
		}
	case *UnsubscribePacket:
		for _, f := range req.TopicFilters {
			delete(c.subscriptions, f)
		}
	}
	c.complete(e.PacketID)
}

// recordSubscriptions stores the filters the broker granted and returns a
// *SubscribeError for the first refused one.
func (c *Client) recordSubscriptions(subs []Subscription, codes []byte) error {
	var refused error
	for i, code := range codes {
		if code == SubackFailure {
			if refused == nil {
				refused = &SubscribeError{TopicFilter: subs[i].TopicFilter}
			}
			c.logger.Warn("subscription refused", LogFields{LogFieldTopic: subs[i].TopicFilter})
			continue
		}
		c.subscriptions[subs[i].TopicFilter] = code
	}
	return refused
}

// handlePublish acknowledges an inbound PUBLISH and delivers it. A QoS 2
// message is delivered once; redeliveries before PUBREL are only acknowledged.
func (c *Client) handlePublish(p *PublishPacket, d deadline) (*Message, error) {
	var msg *Message

	switch p.QoS {
	case QoS0:
		msg = c.deliver(p)
	case QoS1:
		msg = c.deliver(p)
		if err := c.reply(&PubackPacket{PacketID: p.PacketID}, d); err != nil {
			return msg, err
		}
	case QoS2:
		if _, seen := c.inboundQoS2[p.PacketID]; !seen {
			c.inboundQoS2[p.PacketID] = struct{}{}
			msg = c.deliver(p)
		}
		if err := c.reply(&PubrecPacket{PacketID: p.PacketID}, d); err != nil {
			return msg, err
		}
	}

	return msg, nil
}

func (c *Client) deliver(p *PublishPacket) *Message {
	msg := p.ToMessage()

	matched := false
	for filter := range c.subscriptions {
		if TopicMatch(filter, msg.Topic) {
			matched = true
			break
		}
	}
	if !matched {
		c.logger.Warn("message matches no subscription", LogFields{LogFieldTopic: msg.Topic})
	}

	if c.options.handler != nil {
		c.options.handler(msg)
	}
	return msg
}

func (c *Client) reply(pkt Packet, d deadline) error {
	frame, err := Marshal(pkt, 0)
	if err != nil {
		return err
	}
	return c.sendOp("ack", frame, d)
}

// check tears the session down on fatal errors and passes err through.
func (c *Client) check(err error) error {
	if err != nil && IsFatal(err) {
		c.teardown(err)
	}
	return err
}

// teardown closes the connection. A nil cause is a local close.
func (c *Client) teardown(cause error) {
	if c.conn == nil {
		return
	}

	if cause != nil {
		c.logger.Error("connection lost", LogFields{LogFieldError: cause.Error()})
	}

	c.framer.Close()
	c.conn.Close()
	c.framer = nil
	c.conn = nil
	c.connected = false
	c.pingOutstanding = false
}

// discardSession drops state the broker no longer remembers.
func (c *Client) discardSession() {
	c.pending = PendingList{}
	c.inboundQoS2 = make(map[uint16]struct{})
	c.metrics.pending(0)
}
