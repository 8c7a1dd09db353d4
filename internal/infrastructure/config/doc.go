// Package config handles loading and validating the Somfy gateway tool
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Deriving the gateway host from its PIN
//   - Validation of required fields
//
// Security Considerations:
//   - The gateway API key, MQTT password and InfluxDB token should be set via
//     environment variables (SOMFY_API_KEY, SOMFY_MQTT_PASSWORD,
//     SOMFY_INFLUXDB_TOKEN)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("somfy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.Host)
package config
