// Package bridge connects a Somfy TaHoma gateway to MQTT.
//
// The bridge keeps one event listener registered on the gateway and polls it
// on a fixed interval. Every fetched event is republished on
// graylogic/event/somfy/<name>; device state changes are merged into a
// per-device cache and published retained on graylogic/state/somfy/<device>.
// Numeric state values and execution transitions are optionally recorded as
// time series.
//
// In the other direction, action groups published on
// graylogic/command/somfy/<target> are executed on the gateway, subject to a
// token-bucket rate limit, and acknowledged on graylogic/ack/somfy/<request>.
//
// Lifecycle:
//
//	b, err := bridge.New(bridge.Options{Gateway: client, Publisher: mq})
//	err = b.Run(ctx) // blocks until ctx is cancelled
//
// A StatusServer exposes /health and Prometheus /metrics for the running
// bridge.
package bridge
