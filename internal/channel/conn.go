package channel

import (
	"context"
	"sync"

	"github.com/nerrad567/scopelink-core/internal/device"
)

// inboundBuffer is the depth of a connection's inbound queue.
const inboundBuffer = 64

// Conn is one live control channel to a device.
type Conn interface {
	// Send writes one frame. Writes are serialised per connection.
	Send(ctx context.Context, data []byte) error

	// Inbound delivers received frames in arrival order.
	Inbound() <-chan []byte

	// Done is closed when the transport is lost or closed.
	Done() <-chan struct{}

	// Err reports why Done was closed; nil after a local Close.
	Err() error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens control channels.
type Dialer interface {
	Dial(ctx context.Context, d device.Device) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, d device.Device) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, d device.Device) (Conn, error) {
	return f(ctx, d)
}

// lifecycle is the shared done/error bookkeeping for transports.
type lifecycle struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	err     error
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		inbound: make(chan []byte, inboundBuffer),
		done:    make(chan struct{}),
	}
}

// finish records err (nil for a local close) and closes done once.
// Reports whether this call did the closing.
func (l *lifecycle) finish(err error) bool {
	closed := false
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
		closed = true
	})
	return closed
}

// deliver queues a frame, dropping it if the connection is finished.
func (l *lifecycle) deliver(data []byte) {
	select {
	case l.inbound <- data:
	case <-l.done:
	}
}

func (l *lifecycle) Inbound() <-chan []byte { return l.inbound }
func (l *lifecycle) Done() <-chan struct{}   { return l.done }

func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *lifecycle) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
