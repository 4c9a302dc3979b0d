package mqtt

import (
	"time"

	"golang.org/x/time/rate"
)

// Message size presets for WithMaxMessageSize.
const (
	// MaxMessageSizeDefault is a typical broker limit (256KB).
	MaxMessageSizeDefault uint32 = 256 * 1024
	// MaxMessageSizeMinimal suits constrained devices (16KB).
	MaxMessageSizeMinimal uint32 = 16 * 1024
	// MaxMessageSizeProtocol is the largest remaining length MQTT can express.
	MaxMessageSizeProtocol uint32 = maxRemainingLength
)

// MessageHandler receives inbound application messages.
type MessageHandler func(msg *Message)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Connection settings
	clientID           string
	username           string
	password           []byte
	keepAlive          uint16
	cleanSession       bool
	allowEmptyClientID bool

	// Will message
	willTopic   string
	willMessage []byte
	willRetain  bool
	willQoS     byte

	// Limits
	maxMessageSize uint32
	retryInterval  time.Duration
	publishLimit   rate.Limit
	publishBurst   int

	// Collaborators
	dialer  Dialer
	proxy   *ProxyConfig
	clock   Clock
	logger  Logger
	metrics Metrics
	handler MessageHandler
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:      60,
		cleanSession:   true,
		maxMessageSize: MaxMessageSizeDefault,
		retryInterval:  20 * time.Second,
		publishLimit:   rate.Inf,
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier.
// When unset a unique identifier is generated, unless WithAllowEmptyClientID is used.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = []byte(password)
	}
}

// WithUsername sets a username without a password.
func WithUsername(username string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = nil
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. 0 disables keep-alive.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession sets whether the broker should discard previous session state.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithAllowEmptyClientID sends an empty client identifier and lets the broker assign one.
func WithAllowEmptyClientID(allow bool) Option {
	return func(o *clientOptions) {
		o.allowEmptyClientID = allow
	}
}

// WithWill sets the will message the broker publishes if the client disconnects unexpectedly.
func WithWill(topic string, message []byte, retain bool, qos byte) Option {
	return func(o *clientOptions) {
		o.willTopic = topic
		o.willMessage = message
		if o.willMessage == nil {
			o.willMessage = []byte{}
		}
		o.willRetain = retain
		o.willQoS = qos
	}
}

// WithMaxMessageSize limits the remaining length of packets in both directions.
// Values exceeding MaxMessageSizeProtocol are clamped to the protocol maximum.
//
// Default: MaxMessageSizeDefault (256KB)
func WithMaxMessageSize(size uint32) Option {
	return func(o *clientOptions) {
		if size == 0 || size > MaxMessageSizeProtocol {
			size = MaxMessageSizeProtocol
		}
		o.maxMessageSize = size
	}
}

// WithRetryInterval sets how long a packet stays unacknowledged before
// ResendPending sends it again.
func WithRetryInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		o.retryInterval = d
	}
}

// WithPublishRateLimit limits outbound PUBLISH packets to limit per second
// with the given burst. Publish waits for a token within its budget.
func WithPublishRateLimit(limit rate.Limit, burst int) Option {
	return func(o *clientOptions) {
		o.publishLimit = limit
		o.publishBurst = burst
	}
}

// WithDialer sets the transport used by Connect. Default: NetDialer.
func WithDialer(d Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

// WithProxy routes TCP and WebSocket connections of the default dialer through a SOCKS5 or HTTP CONNECT proxy.
func WithProxy(cfg ProxyConfig) Option {
	return func(o *clientOptions) {
		o.proxy = &cfg
	}
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(o *clientOptions) {
		o.clock = c
	}
}

// WithLogger sets the logger. Default: NoOpLogger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. Default: NoOpMetrics.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithMessageHandler sets the handler for inbound application messages.
// Without a handler messages are queued for Receive.
func WithMessageHandler(h MessageHandler) Option {
	return func(o *clientOptions) {
		o.handler = h
	}
}

// applyOptions builds options from defaults and opts and fills in collaborators.
func applyOptions(opts ...Option) *clientOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.logger == nil {
		o.logger = NewNoOpLogger()
	}
	if o.metrics == nil {
		o.metrics = &NoOpMetrics{}
	}
	if o.dialer == nil {
		o.dialer = &NetDialer{Proxy: o.proxy}
	}

	return o
}
