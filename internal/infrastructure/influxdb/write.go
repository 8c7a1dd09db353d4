package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementDeviceState = "device_states"
	MeasurementExecution   = "executions"
)

// WriteDeviceState records one numeric device state value.
//
// Tags are the device URL and the state name; the value goes into the
// "value" field. The write is non-blocking.
//
// Example:
//
//	client.WriteDeviceState("io://1234-5678-9012/4218932", "core:ClosureState", 42, time.Now())
func (c *Client) WriteDeviceState(deviceURL, stateName string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(deviceStatePoint(deviceURL, stateName, value, at))
}

// WriteExecutionState records an execution state transition.
func (c *Client) WriteExecutionState(execID, oldState, newState string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(executionPoint(execID, oldState, newState, at))
}

func deviceStatePoint(deviceURL, stateName string, value float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_url": deviceURL,
			"state":      stateName,
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}

func executionPoint(execID, oldState, newState string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementExecution,
		map[string]string{
			"state": newState,
		},
		map[string]any{
			"exec_id":   execID,
			"old_state": oldState,
		},
		at,
	)
}
