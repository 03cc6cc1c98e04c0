// Package influxdb exports device telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceTelemetry("sn-S50-1",
//	    map[string]any{"battery": 81.0, "temperature": 12.5}, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// influxdb.batch_size and influxdb.flush_interval; write failures are
// delivered asynchronously through SetOnError.
package influxdb
