package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/scopelink-core/internal/device"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsPingInterval  = 20 * time.Second
	wsPongTimeout   = 45 * time.Second
	wsMaxFrameBytes = 1 << 20
)

// WebSocketDialer connects directly to the device's control endpoint at
// ws://host:port/path.
type WebSocketDialer struct {
	// Path is the endpoint path, e.g. /control.
	Path string
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// Header is sent with the handshake (auth tokens, etc).
	Header http.Header
	// PingInterval overrides the keep-alive period; zero uses the default.
	PingInterval time.Duration
}

// URL returns the endpoint for d.
func (w WebSocketDialer) URL(d device.Device) string {
	path := w.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "ws", Host: d.Address(), Path: path}
	return u.String()
}

// Dial opens the WebSocket and starts its read and keep-alive loops.
func (w WebSocketDialer) Dial(ctx context.Context, d device.Device) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: w.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	ws, resp, err := dialer.DialContext(ctx, w.URL(d), w.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake body is unused
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, w.URL(d), err)
	}

	ping := w.PingInterval
	if ping <= 0 {
		ping = wsPingInterval
	}

	c := &wsConn{ws: ws, lifecycle: newLifecycle()}
	go c.readLoop()
	go c.pingLoop(ping)
	return c, nil
}

type wsConn struct {
	*lifecycle
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	if c.closed() {
		return ErrClosed
	}

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(deadline) //nolint:errcheck // error surfaces on write
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	if !c.finish(nil) {
		return nil
	}
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage, //nolint:errcheck // best effort close frame
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *wsConn) readLoop() {
	c.ws.SetReadLimit(wsMaxFrameBytes)
	c.ws.SetReadDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck // deadline errors surface on read
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.finish(fmt.Errorf("websocket read: %w", err)) {
				c.ws.Close() //nolint:errcheck // already failed
			}
			return
		}
		// Any traffic proves liveness.
		c.ws.SetReadDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck // deadline errors surface on read
		c.deliver(data)
	}
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				if c.finish(fmt.Errorf("websocket ping: %w", err)) {
					c.ws.Close() //nolint:errcheck // already failed
				}
				return
			}
		}
	}
}
