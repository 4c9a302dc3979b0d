package mqtt

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyConfig holds proxy settings for outbound connections.
type ProxyConfig struct {
	// URL is the proxy URL in format socks5://host:port or http://host:port.
	URL string `yaml:"url" json:"url"`
	// Username for proxy authentication (optional).
	Username string `yaml:"username" json:"username"`
	// Password for proxy authentication (optional).
	Password string `yaml:"password" json:"password"`
}

// dialer builds a dialer for the proxy: SOCKS5 for socks5 and socks5h,
// HTTP CONNECT for http. Credentials embedded in the URL are used unless
// Username is set.
func (c *ProxyConfig) dialer() (proxy.ContextDialer, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid proxy URL: %v", ErrInvalidParameter, err)
	}

	username, password := c.Username, c.Password
	if username == "" && u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}

	var auth *proxy.Auth
	if username != "" {
		auth = &proxy.Auth{User: username, Password: password}
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		d, err := proxy.SOCKS5("tcp", proxyAddr(u, "1080"), auth, &net.Dialer{})
		if err != nil {
			return nil, err
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: SOCKS5 dialer without context support", ErrInvalidParameter)
		}
		return cd, nil

	case "http":
		return &httpConnectDialer{addr: proxyAddr(u, "8080"), auth: auth}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidParameter, u.Scheme)
	}
}

// dialContext connects to addr through the proxy.
func (c *ProxyConfig) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d, err := c.dialer()
	if err != nil {
		return nil, err
	}
	return d.DialContext(ctx, network, addr)
}

func proxyAddr(u *url.URL, defaultPort string) string {
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), defaultPort)
	}
	return u.Host
}

// httpConnectDialer tunnels TCP connections through an HTTP proxy with CONNECT.
type httpConnectDialer struct {
	addr    string
	auth    *proxy.Auth
	forward net.Dialer
}

// DialContext connects to the proxy and asks it to open a tunnel to addr.
func (d *httpConnectDialer) DialContext(ctx context.Context, _, addr string) (net.Conn, error) {
	conn, err := d.forward.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.auth != nil {
		creds := base64.StdEncoding.EncodeToString([]byte(d.auth.User + ":" + d.auth.Password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	// The broker never speaks first, so nothing follows the response yet.
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", resp.Status)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
