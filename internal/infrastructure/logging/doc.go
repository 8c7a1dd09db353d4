// Package logging provides structured logging for the Somfy gateway tools.
//
// This package wraps Go's standard log/slog package so the CLI, the event
// bridge and the gateway client share one handler.
//
// # Features
//
//   - JSON output for the long-running bridge (machine-parsable)
//   - Text output for interactive use (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	client := somfy.NewClient(gw, somfy.WithLogger(logger.Logger))
//
// # Security
//
// Never log the gateway API key, the MQTT password or the InfluxDB token.
package logging
