package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultPort is the IANA port for MQTT over TCP.
const DefaultPort = "1883"

// Conn is a byte-stream connection whose blocking calls are bounded by a budget.
// A call that runs out of budget returns the bytes transferred so far together
// with ErrTimeout. Any other failure is a *TransportError.
type Conn interface {
	// Read reads up to len(p) bytes.
	Read(p []byte, budget time.Duration) (int, error)

	// Write writes up to len(p) bytes.
	Write(p []byte, budget time.Duration) (int, error)

	// Close closes the connection.
	Close() error
}

// Dialer establishes broker connections.
type Dialer interface {
	// Dial connects to the broker at uri within budget.
	Dial(uri string, budget time.Duration) (Conn, error)
}

// netConn adapts a net.Conn by turning budgets into deadlines.
type netConn struct {
	conn net.Conn
}

// NewConn wraps a net.Conn as a Conn.
func NewConn(conn net.Conn) Conn {
	return &netConn{conn: conn}
}

// Read reads data from the connection.
func (c *netConn) Read(p []byte, budget time.Duration) (int, error) {
	if budget <= 0 {
		return 0, ErrTimeout
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
		return 0, &TransportError{Op: "read", Cause: err}
	}
	n, err := c.conn.Read(p)
	return n, classifyError("read", err)
}

// Write writes data to the connection.
func (c *netConn) Write(p []byte, budget time.Duration) (int, error) {
	if budget <= 0 {
		return 0, ErrTimeout
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(budget)); err != nil {
		return 0, &TransportError{Op: "write", Cause: err}
	}
	n, err := c.conn.Write(p)
	return n, classifyError("write", err)
}

// Close closes the connection.
func (c *netConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *netConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// classifyError maps deadline expiry to ErrTimeout and everything else to a TransportError.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return &TransportError{Op: op, Cause: err}
}

// NetDialer connects over TCP ("tcp://", "mqtt://" or a bare "host:port"),
// Unix domain sockets ("unix://") and WebSocket ("ws://").
type NetDialer struct {
	// Proxy, if set, is used for TCP and WebSocket connections.
	Proxy *ProxyConfig
}

// Dial connects to the broker at uri.
func (d *NetDialer) Dial(uri string, budget time.Duration) (Conn, error) {
	if budget <= 0 {
		return nil, ErrTimeout
	}

	u, err := parseBrokerURI(uri)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	switch u.Scheme {
	case "tcp", "mqtt":
		conn, err := d.dialContext(ctx, "tcp", hostPort(u))
		if err != nil {
			return nil, dialError(ctx, err)
		}
		return NewConn(conn), nil

	case "unix":
		var nd net.Dialer
		conn, err := nd.DialContext(ctx, "unix", u.Path)
		if err != nil {
			return nil, dialError(ctx, err)
		}
		return NewConn(conn), nil

	case "ws":
		conn, err := dialWebSocket(ctx, u, d.dialContext)
		if err != nil {
			return nil, dialError(ctx, err)
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidParameter, u.Scheme)
	}
}

func (d *NetDialer) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.Proxy != nil {
		return d.Proxy.dialContext(ctx, network, addr)
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

func parseBrokerURI(uri string) (*url.URL, error) {
	if !strings.Contains(uri, "://") {
		uri = "tcp://" + uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if u.Scheme != "unix" && u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidParameter, uri)
	}
	return u, nil
}

func hostPort(u *url.URL) string {
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), DefaultPort)
	}
	return u.Host
}

func dialError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrTimeout
	}
	return classifyError("dial", err)
}
