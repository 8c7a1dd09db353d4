package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Somfy gateway tools.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Bridge   BridgeConfig   `yaml:"bridge"`
}

// GatewayConfig describes how to reach the TaHoma gateway's local API.
type GatewayConfig struct {
	// ID is the gateway PIN, e.g. "1234-5678-9012". When Host is empty the
	// host is derived from it as gateway-<id>.local.
	ID string `yaml:"id"`

	// Host overrides the mDNS name derived from ID.
	Host string `yaml:"host"`

	// Port is the local API port. Default: 8443
	Port int `yaml:"port"`

	// Scheme is "https" (default) or "http". Plain HTTP is only useful
	// against local test doubles.
	Scheme string `yaml:"scheme"`

	// APIKey is the bearer token generated in the vendor's app.
	// Prefer SOMFY_API_KEY over storing it in the file.
	APIKey string `yaml:"api_key"`

	// CertFile is a PEM root certificate to trust. When empty the vendor
	// root is downloaded into CertCacheDir on first use.
	CertFile string `yaml:"cert_file"`

	// CertCacheDir overrides the default ~/.somfy_sdk cache directory.
	CertCacheDir string `yaml:"cert_cache_dir"`

	// CertURL overrides where the vendor root is downloaded from.
	CertURL string `yaml:"cert_url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// BridgeConfig contains event bridge settings.
type BridgeConfig struct {
	// PollInterval is the delay between event fetches.
	// Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`

	// CommandRate is the sustained number of action groups per second the
	// bridge forwards to the gateway.
	// Default: 1
	CommandRate float64 `yaml:"command_rate"`

	// CommandBurst is the number of action groups allowed above CommandRate.
	// Default: 5
	CommandBurst int `yaml:"command_burst"`

	// StatusAddr is the listen address of the health and metrics server.
	// Empty disables it.
	// Default: "127.0.0.1:9464"
	StatusAddr string `yaml:"status_addr"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//  4. Derived values (gateway host from gateway id)
//
// Environment variables follow the pattern: SOMFY_SECTION_KEY
// For example: SOMFY_API_KEY, SOMFY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults and environment only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:   8443,
			Scheme: "https",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "somfy-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket: "somfy",
		},
		Bridge: BridgeConfig{
			PollInterval: 2 * time.Second,
			CommandRate:  1,
			CommandBurst: 5,
			StatusAddr:   "127.0.0.1:9464",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SOMFY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("SOMFY_GATEWAY_ID"); v != "" {
		cfg.Gateway.ID = v
	}
	if v := os.Getenv("SOMFY_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("SOMFY_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SOMFY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("SOMFY_CERT_FILE"); v != "" {
		cfg.Gateway.CertFile = v
	}

	// Logging
	if v := os.Getenv("SOMFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("SOMFY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SOMFY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SOMFY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SOMFY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyDerived fills values computed from other settings.
func (c *Config) applyDerived() {
	if c.Gateway.Host == "" && c.Gateway.ID != "" {
		c.Gateway.Host = "gateway-" + c.Gateway.ID + ".local"
	}
	c.Gateway.Scheme = strings.ToLower(c.Gateway.Scheme)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.APIKey == "" {
		errs = append(errs, "gateway.api_key is required (set SOMFY_API_KEY environment variable)")
	}
	if c.Gateway.ID == "" && c.Gateway.Host == "" {
		errs = append(errs, "gateway.id or gateway.host is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.Scheme != "https" && c.Gateway.Scheme != "http" {
		errs = append(errs, "gateway.scheme must be http or https")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Bridge validation
	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, "bridge.poll_interval must be positive")
	}
	if c.Bridge.CommandRate <= 0 {
		errs = append(errs, "bridge.command_rate must be positive")
	}
	if c.Bridge.CommandBurst < 1 {
		errs = append(errs, "bridge.command_burst must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
