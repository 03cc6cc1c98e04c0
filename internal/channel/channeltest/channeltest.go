// Package channeltest provides in-memory control channels for tests.
package channeltest

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/device"
)

// ErrWriteFailed is returned by Send while a Conn is set to fail writes.
var ErrWriteFailed = errors.New("channeltest: write failed")

// Conn is an in-memory channel.Conn. Frames sent by the core are recorded
// and optionally answered by Responder.
type Conn struct {
	Device device.Device

	mu         sync.Mutex
	sent       [][]byte
	failWrites int
	responder  func(frame []byte) [][]byte

	inbound chan []byte
	done    chan struct{}
	once    sync.Once
	err     error
}

// NewConn creates an open Conn for d.
func NewConn(d device.Device) *Conn {
	return &Conn{
		Device:  d,
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

// Send records the frame and delivers any responder replies.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return channel.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.failWrites > 0 {
		c.failWrites--
		c.mu.Unlock()
		return ErrWriteFailed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	responder := c.responder
	c.mu.Unlock()

	if responder != nil {
		for _, reply := range responder(data) {
			c.Push(reply)
		}
	}
	return nil
}

// Inbound implements channel.Conn.
func (c *Conn) Inbound() <-chan []byte { return c.inbound }

// Done implements channel.Conn.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err implements channel.Conn.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close implements channel.Conn.
func (c *Conn) Close() error {
	c.finish(nil)
	return nil
}

// Drop simulates a transport loss.
func (c *Conn) Drop(err error) {
	c.finish(err)
}

func (c *Conn) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Closed reports whether the connection is finished.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Push delivers an inbound frame as if the device sent it.
func (c *Conn) Push(frame []byte) {
	select {
	case c.inbound <- frame:
	case <-c.done:
	}
}

// Sent returns a copy of every frame sent so far.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// FailWrites makes the next n sends fail.
func (c *Conn) FailWrites(n int) {
	c.mu.Lock()
	c.failWrites = n
	c.mu.Unlock()
}

// SetResponder installs a function that answers sent frames.
func (c *Conn) SetResponder(fn func(frame []byte) [][]byte) {
	c.mu.Lock()
	c.responder = fn
	c.mu.Unlock()
}

// Dialer hands out Conns and records every dial.
type Dialer struct {
	mu      sync.Mutex
	conns   []*Conn
	fail    error
	block   chan struct{}
	onDial  func(*Conn)
	dialled []string
}

// Dial implements channel.Dialer.
func (d *Dialer) Dial(ctx context.Context, dev device.Device) (channel.Conn, error) {
	d.mu.Lock()
	d.dialled = append(d.dialled, dev.Key())
	fail := d.fail
	block := d.block
	onDial := d.onDial
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	c := NewConn(dev)
	if onDial != nil {
		onDial(c)
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// SetFail makes subsequent dials fail with err (nil restores success).
func (d *Dialer) SetFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// Block makes dials wait until the returned release function is called.
func (d *Dialer) Block() (release func()) {
	ch := make(chan struct{})
	d.mu.Lock()
	d.block = ch
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.block == ch {
				d.block = nil
			}
			d.mu.Unlock()
			close(ch)
		})
	}
}

// OnDial runs fn on every new Conn before it is returned.
func (d *Dialer) OnDial(fn func(*Conn)) {
	d.mu.Lock()
	d.onDial = fn
	d.mu.Unlock()
}

// Conns returns every Conn handed out, in dial order.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Conn, len(d.conns))
	copy(out, d.conns)
	return out
}

// Last returns the most recent Conn or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Dialled returns the device keys of every dial attempt.
func (d *Dialer) Dialled() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialled...)
}
