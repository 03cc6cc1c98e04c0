package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/mqtt"
)

type fakeBroker struct {
	mu           sync.Mutex
	connected    bool
	published    map[string][][]byte
	handlers     map[string]mqtt.MessageHandler
	onDisconnect func(error)
	removed      bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		connected: true,
		published: map[string][][]byte{},
		handlers:  map[string]mqtt.MessageHandler{},
	}
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if retained {
		return errors.New("commands must not be retained")
	}
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = h
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) QoS() byte { return 1 }

func (b *fakeBroker) AddConnectionListener(_ func(), onDisconnect func(error)) func() {
	b.mu.Lock()
	b.onDisconnect = onDisconnect
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.removed = true
		b.mu.Unlock()
	}
}

func (b *fakeBroker) inject(topic string, payload []byte) {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	if h != nil {
		h(topic, payload) //nolint:errcheck // fake
	}
}

func TestMQTTConn(t *testing.T) {
	broker := newFakeBroker()
	d := device.Device{SerialNumber: "ZWO1", Host: "10.0.0.2", Port: 4700}
	ctx := context.Background()

	conn, err := MQTTDialer{Broker: broker}.Dial(ctx, d)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := conn.Send(ctx, []byte(`{"type":"command"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := broker.published["scopelink/device/sn-ZWO1/command"]; len(got) != 1 {
		t.Errorf("published = %v", broker.published)
	}

	broker.inject("scopelink/device/sn-ZWO1/inbound", []byte(`{"type":"status","payload":{}}`))
	select {
	case got := <-conn.Inbound():
		if string(got) != `{"type":"status","payload":{}}` {
			t.Errorf("inbound = %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("inbound frame not delivered")
	}

	broker.onDisconnect(errors.New("broker restarted"))
	select {
	case <-conn.Done():
	default:
		t.Fatal("broker loss should finish the connection")
	}
	if conn.Err() == nil {
		t.Error("Err() should report the broker loss")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !broker.removed {
		t.Error("connection listener not removed")
	}
	if _, ok := broker.handlers["scopelink/device/sn-ZWO1/inbound"]; ok {
		t.Error("inbound subscription not released")
	}
}

func TestMQTTDialer_BrokerDown(t *testing.T) {
	broker := newFakeBroker()
	broker.connected = false

	_, err := MQTTDialer{Broker: broker}.Dial(context.Background(), device.Device{Name: "x", Host: "h", Port: 1})
	if !errors.Is(err, ErrDial) {
		t.Errorf("Dial() error = %v, want ErrDial", err)
	}
}
