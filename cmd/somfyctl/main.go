// somfyctl talks to a Somfy TaHoma gateway over its local API.
//
// It lists the gateway setup, executes and cancels action groups, streams
// events, and runs an MQTT bridge that relays events and commands between
// the gateway and the rest of a Gray Logic site.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-somfy/internal/cli"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.date=2026-01-01"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command line, separated from main for testability.
func run(ctx context.Context) error {
	cli.SetVersion(version+"+"+commit, date)
	return cli.Execute(ctx)
}
