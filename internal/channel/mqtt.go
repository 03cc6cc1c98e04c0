package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client the relay transport needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	QoS() byte
	AddConnectionListener(onConnect func(), onDisconnect func(err error)) (remove func())
}

// MQTTDialer relays the control channel through a broker. Commands go to
// scopelink/device/{key}/command and the device answers on
// scopelink/device/{key}/inbound.
type MQTTDialer struct {
	Broker Broker
}

// Dial subscribes to the device's inbound topic.
func (m MQTTDialer) Dial(ctx context.Context, d device.Device) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Broker == nil || !m.Broker.IsConnected() {
		return nil, fmt.Errorf("%w: mqtt broker not connected", ErrDial)
	}

	topics := mqtt.Topics{}
	c := &mqttConn{
		lifecycle:    newLifecycle(),
		broker:       m.Broker,
		commandTopic: topics.DeviceCommand(d.Key()),
		inboundTopic: topics.DeviceInbound(d.Key()),
	}

	c.removeListener = m.Broker.AddConnectionListener(nil, func(err error) {
		c.finish(fmt.Errorf("mqtt connection lost: %w", err))
	})

	err := m.Broker.Subscribe(c.inboundTopic, m.Broker.QoS(), func(_ string, payload []byte) error {
		c.deliver(append([]byte(nil), payload...))
		return nil
	})
	if err != nil {
		c.removeListener()
		return nil, fmt.Errorf("%w: subscribing %s: %w", ErrDial, c.inboundTopic, err)
	}
	return c, nil
}

type mqttConn struct {
	*lifecycle
	broker         Broker
	commandTopic   string
	inboundTopic   string
	removeListener func()
	cleanup        sync.Once
}

func (c *mqttConn) Send(ctx context.Context, data []byte) error {
	if c.closed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.broker.Publish(c.commandTopic, data, c.broker.QoS(), false)
}

// Close also runs after a broker loss so the subscription is released.
func (c *mqttConn) Close() error {
	c.finish(nil)
	var err error
	c.cleanup.Do(func() {
		c.removeListener()
		err = c.broker.Unsubscribe(c.inboundTopic)
	})
	return err
}
