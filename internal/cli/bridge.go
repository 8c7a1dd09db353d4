package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/internal/bridge"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/mqtt"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay gateway events and commands over MQTT",
	Long: `Run the event bridge until interrupted.

The bridge polls gateway events and publishes them under
graylogic/event/somfy/..., keeps retained device state under
graylogic/state/somfy/..., and executes action groups published on
graylogic/command/somfy/<target>. With influxdb.enabled, numeric device
states are recorded as time series. bridge.status_addr serves /health and
/metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBridge(cmd.Context(), cfg, logging.New(cfg.Logging, version))
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

// runBridge wires the infrastructure clients into a bridge and blocks until
// ctx is cancelled.
func runBridge(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting somfy bridge",
		"version", version,
		"gateway", cfg.Gateway.Host,
		"port", cfg.Gateway.Port,
	)

	opts := bridge.Options{
		Gateway:      NewGatewayClient(cfg.Gateway, log.Logger),
		Logger:       log,
		PollInterval: cfg.Bridge.PollInterval,
		CommandRate:  cfg.Bridge.CommandRate,
		CommandBurst: cfg.Bridge.CommandBurst,
	}
	checks := make(map[string]bridge.HealthChecker)

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		opts.Publisher = mqttClient
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled, events will only be logged and recorded")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		opts.Recorder = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	b, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if cfg.Bridge.StatusAddr != "" {
		status, err := bridge.NewStatusServer(bridge.ServerDeps{
			Addr:    cfg.Bridge.StatusAddr,
			Bridge:  b,
			Checks:  checks,
			Logger:  log,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := status.Start(); err != nil {
			return err
		}
		defer func() {
			if closeErr := status.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	log.Info("somfy bridge stopped")
	return nil
}
