package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy/certstore"
)

// loadConfig reads --config, falling back to $SOMFY_CONFIG. With neither,
// only defaults and environment variables apply.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("SOMFY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// CertStore returns the certificate cache described by cfg.
func CertStore(cfg config.GatewayConfig, logger *slog.Logger) *certstore.Store {
	store := certstore.Default()
	if cfg.CertCacheDir != "" {
		store.Dir = cfg.CertCacheDir
	}
	if cfg.CertURL != "" {
		store.RemoteURL = cfg.CertURL
	}
	store.Logger = logger
	return store
}

// NewGatewayClient builds a gateway client from the gateway section. An
// explicit cert_file wins over the cached vendor root.
func NewGatewayClient(cfg config.GatewayConfig, logger *slog.Logger) *somfy.Client {
	scheme := somfy.SchemeHTTPS
	if cfg.Scheme == "http" {
		scheme = somfy.SchemeHTTP
	}

	cert := somfy.DefaultCert(CertStore(cfg, logger))
	if cfg.CertFile != "" {
		cert = somfy.ProvidedCert(cfg.CertFile)
	}

	return somfy.NewClient(somfy.Config{
		Scheme: scheme,
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		Cert:   cert,
	}, somfy.WithLogger(logger))
}

// gatewayClient loads the configuration and builds a client and logger.
func gatewayClient() (*somfy.Client, *logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.Logging, version)
	return NewGatewayClient(cfg.Gateway, log.Logger), log, nil
}

// withGateway loads the configuration and runs fn with a client and a
// context bounded by --timeout.
func withGateway(cmd *cobra.Command, fn func(ctx context.Context, client *somfy.Client) error) error {
	client, _, err := gatewayClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, client)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output writes v as JSON with --json, otherwise calls text.
func output(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, v)
	}
	text(w)
	return nil
}
