package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementTelemetry is the measurement device status pushes are written to.
const MeasurementTelemetry = "device_telemetry"

// WriteDeviceTelemetry writes one status push as a device_telemetry point.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Points with no fields are skipped.
//
// Parameters:
//   - deviceKey: Device identity key (e.g., "sn-S50-1")
//   - fields: Reported values (e.g., "battery", "temperature", "ra")
//   - ts: Time the device reported the values
func (c *Client) WriteDeviceTelemetry(deviceKey string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		MeasurementTelemetry,
		map[string]string{"device_key": deviceKey},
		fields,
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// WriteDeviceEvent records a discrete device event such as a connection
// state change or a plate-solve outcome.
//
// Parameters:
//   - deviceKey: Device identity key
//   - event: Event name (e.g., "connected", "plate_solved")
//   - ts: Time of the event
func (c *Client) WriteDeviceEvent(deviceKey, event string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_events",
		map[string]string{"device_key": deviceKey, "event": event},
		map[string]any{"count": 1},
		ts,
	)
	c.writeAPI.WritePoint(point)
}
