// Package influxdb records Somfy device state history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The event bridge
// writes every numeric value of a DeviceStateChangedEvent to the
// device_states measurement, tagged by device URL and state name, and
// every execution state transition to the executions measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history is optional
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("io://1234-5678-9012/4218932", "core:ClosureState", 42, time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// failures are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb
