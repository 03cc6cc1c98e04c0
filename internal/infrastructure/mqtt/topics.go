package mqtt

import "fmt"

// TopicPrefix is the root of every ScopeLink topic.
const TopicPrefix = "scopelink"

// Topics provides builders for ScopeLink MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("sn-ZWO123")
//	// Returns: "scopelink/device/sn-ZWO123/command"
type Topics struct{}

// DeviceCommand returns the topic commands for a device are published on.
func (Topics) DeviceCommand(deviceKey string) string {
	return fmt.Sprintf("%s/device/%s/command", TopicPrefix, deviceKey)
}

// DeviceInbound returns the topic a device publishes responses and status on.
func (Topics) DeviceInbound(deviceKey string) string {
	return fmt.Sprintf("%s/device/%s/inbound", TopicPrefix, deviceKey)
}

// ClientStatus returns the retained presence topic for a core instance.
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/client/%s/status", TopicPrefix, clientID)
}

// AllDeviceInbound matches inbound traffic from every device.
//
// Pattern: scopelink/device/+/inbound
func (Topics) AllDeviceInbound() string {
	return fmt.Sprintf("%s/device/+/inbound", TopicPrefix)
}
