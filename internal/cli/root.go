package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Persistent flags shared by every subcommand.
var (
	configPath string
	jsonOutput bool
	timeout    time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "somfyctl",
	Short: "Control a Somfy TaHoma gateway over its local API",
	Long: `somfyctl talks to a TaHoma gateway on the local network using the
developer-mode API key.

Connection settings come from a YAML file (--config or $SOMFY_CONFIG) and
SOMFY_* environment variables, e.g.:

  SOMFY_GATEWAY_ID=1234-5678-9012 SOMFY_API_KEY=... somfyctl devices

Get started:
  somfyctl cert        Download and cache the gateway root certificate
  somfyctl devices     List paired devices
  somfyctl exec -f     Run an action group
  somfyctl events      Watch gateway events
  somfyctl bridge      Relay events and commands over MQTT`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx, which cancels long-running
// subcommands such as events and bridge.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file (default $SOMFY_CONFIG)")
	flags.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for each gateway request")
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
