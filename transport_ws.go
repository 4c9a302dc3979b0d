package mqtt

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the MQTT WebSocket subprotocol.
const WebSocketSubprotocol = "mqtt"

// wsConn carries the MQTT byte stream in binary WebSocket messages.
// A message may hold any part of one or more packets; unread bytes of the
// current message are kept for the next Read.
//
// A read deadline that fires inside the websocket library leaves the
// connection unusable, so a single reader goroutine pulls messages and Read
// waits on it with a timer instead. Write deadlines have the same effect and
// are reported as transport errors.
type wsConn struct {
	conn *websocket.Conn
	msgs chan wsMessage
	done chan struct{}
	once sync.Once

	buf []byte
	err error
}

// wsMessage is one inbound message or the error that ended the reader.
type wsMessage struct {
	data []byte
	err  error
}

// newWSConn wraps conn and starts its reader.
func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn: conn,
		msgs: make(chan wsMessage, 1),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *wsConn) readLoop() {
	for {
		messageType, r, err := c.conn.NextReader()
		if err != nil {
			c.deliver(wsMessage{err: &TransportError{Op: "read", Cause: err}})
			return
		}
		if messageType != websocket.BinaryMessage {
			c.deliver(wsMessage{err: fmt.Errorf("%w: websocket message is not binary", ErrProtocolViolation)})
			return
		}

		data, err := io.ReadAll(r)
		if err != nil {
			c.deliver(wsMessage{err: &TransportError{Op: "read", Cause: err}})
			return
		}
		if !c.deliver(wsMessage{data: data}) {
			return
		}
	}
}

// deliver hands m to Read. It reports false once the conn is closed.
func (c *wsConn) deliver(m wsMessage) bool {
	select {
	case c.msgs <- m:
		return true
	case <-c.done:
		return false
	}
}

func dialWebSocket(ctx context.Context, u *url.URL, dial func(ctx context.Context, network, addr string) (net.Conn, error)) (Conn, error) {
	target := *u
	if target.Path == "" {
		target.Path = "/mqtt"
	}
	if target.Port() == "" {
		target.Host = net.JoinHostPort(target.Hostname(), "80")
	}

	d := websocket.Dialer{
		NetDialContext: dial,
		Subprotocols:   []string{WebSocketSubprotocol},
	}

	conn, resp, err := d.DialContext(ctx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return newWSConn(conn), nil
}

// Read reads data from the current message, waiting for the next one when it is drained.
func (c *wsConn) Read(p []byte, budget time.Duration) (int, error) {
	if len(c.buf) > 0 {
		n := copy(p, c.buf)
		c.buf = c.buf[n:]
		return n, nil
	}
	if c.err != nil {
		return 0, c.err
	}
	if budget <= 0 {
		return 0, ErrTimeout
	}

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case m := <-c.msgs:
		if m.err != nil {
			c.err = m.err
			return 0, m.err
		}
		n := copy(p, m.data)
		c.buf = m.data[n:]
		return n, nil
	case <-timer.C:
		return 0, ErrTimeout
	}
}

// Write sends p as one binary message.
func (c *wsConn) Write(p []byte, budget time.Duration) (int, error) {
	if budget <= 0 {
		return 0, ErrTimeout
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(budget)); err != nil {
		return 0, &TransportError{Op: "write", Cause: err}
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, &TransportError{Op: "write", Cause: err}
	}
	return len(p), nil
}

// Close closes the connection and stops the reader.
func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
