// Package mqtt provides MQTT broker connectivity for ScopeLink Core.
//
// Some telescope installations expose their control channel through a
// broker instead of a direct WebSocket. This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) so devices see the client go away
//
// # Topics
//
//	scopelink/device/{key}/command   core → device (command envelopes)
//	scopelink/device/{key}/inbound   device → core (responses, status pushes)
//	scopelink/client/{id}/status     retained online/offline presence
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.DeviceInbound("sn-ZWO123"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
//
//	client.Publish(topics.DeviceCommand("sn-ZWO123"), envelope, 1, false)
package mqtt
