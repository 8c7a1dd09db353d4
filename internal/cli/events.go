package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

var (
	eventsCount    int
	eventsInterval time.Duration
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Watch gateway events",
	Long: `Register an event listener and print events as they arrive.

The listener is unregistered on exit (Ctrl+C or after --count events).
With --json every event is printed as one JSON line.

Examples:
  somfyctl events
  somfyctl events --count 10 --json`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsCount, "count", "n", 0, "Stop after this many events (0 = until interrupted)")
	eventsCmd.Flags().DurationVar(&eventsInterval, "interval", 2*time.Second, "Polling interval")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	if eventsInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	client, _, err := gatewayClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	listener, err := client.RegisterEventListener(reqCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("registering event listener: %w", err)
	}
	defer func() {
		unregCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		_ = client.UnregisterEventListener(unregCtx, listener.ID)
	}()

	w := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Listening with"), DimStyle.Render(listener.ID))
	}

	seen := 0
	ticker := time.NewTicker(eventsInterval)
	defer ticker.Stop()

	for {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		events, err := client.FetchEvents(reqCtx, listener.ID)
		cancel()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("fetching events: %w", err)
		}

		for _, ev := range events {
			if err := printEvent(w, ev); err != nil {
				return err
			}
			seen++
			if eventsCount > 0 && seen >= eventsCount {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printEvent(w io.Writer, ev somfy.Event) error {
	if jsonOutput {
		raw := ev.Raw
		if len(raw) == 0 {
			return printJSON(w, ev)
		}
		_, err := fmt.Fprintf(w, "%s\n", raw)
		return err
	}

	at := time.Now()
	if ev.Timestamp > 0 {
		at = time.UnixMilli(ev.Timestamp)
	}
	line := fmt.Sprintf("%s %s", DimStyle.Render(at.Format("15:04:05")), ValueStyle.Render(ev.Name))
	switch {
	case ev.DeviceURL != "":
		line += " " + LabelStyle.Render(ev.DeviceURL)
	case ev.ExecID != "":
		line += " " + LabelStyle.Render(ev.ExecID) + " " + WarningStyle.Render(ev.OldState+" → "+ev.NewState)
	}
	_, err := fmt.Fprintln(w, line)
	for _, st := range ev.DeviceStates {
		fmt.Fprintf(w, "    %s = %s\n", st.Name, st.Value.Raw())
	}
	return err
}
