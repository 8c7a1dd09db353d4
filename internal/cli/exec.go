package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

var (
	execFile  string
	execLabel string
	cancelAll bool
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run an action group",
	Long: `Run an action group read from a JSON file ("-" for stdin).

The file holds a label and a list of actions:

  {
    "label": "close living room",
    "actions": [
      {"deviceURL": "io://1234-5678-9012/4218932",
       "commands": [{"name": "close", "parameters": []}]}
    ]
  }

Examples:
  somfyctl exec -f close.json
  echo '{"actions":[...]}' | somfyctl exec -f -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		group, err := readActionGroup(cmd.InOrStdin(), execFile)
		if err != nil {
			return err
		}
		if execLabel != "" {
			group.Label = execLabel
		}

		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			id, err := client.ExecuteActionGroup(ctx, group)
			if err != nil {
				return err
			}
			return output(cmd, id, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s %s\n",
					SuccessStyle.Render(CheckMark),
					LabelStyle.Render("Execution started:"),
					ValueStyle.Render(id.ExecID))
			})
		})
	},
}

var executionsCmd = &cobra.Command{
	Use:   "executions [EXEC_ID]",
	Short: "List running executions, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			if len(args) == 1 {
				exec, err := client.GetExecution(ctx, args[0])
				if errors.Is(err, somfy.ErrNotFound) {
					return fmt.Errorf("execution %s is not running", args[0])
				}
				if err != nil {
					return err
				}
				return output(cmd, exec, func(w io.Writer) { printExecutions(w, []somfy.Execution{exec}) })
			}

			execs, err := client.GetCurrentExecutions(ctx)
			if err != nil {
				return err
			}
			return output(cmd, execs, func(w io.Writer) { printExecutions(w, execs) })
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [EXEC_ID | --all]",
	Short: "Cancel one running execution, or all of them",
	Args: func(cmd *cobra.Command, args []string) error {
		if cancelAll && len(args) > 0 {
			return fmt.Errorf("--all takes no execution id")
		}
		if !cancelAll && len(args) != 1 {
			return fmt.Errorf("expected an execution id or --all")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			target := "all executions"
			var err error
			if cancelAll {
				err = client.CancelAllExecutions(ctx)
			} else {
				target = args[0]
				err = client.CancelExecution(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return output(cmd, map[string]string{"cancelled": target}, func(w io.Writer) {
				fmt.Fprintf(w, "%s Cancelled %s\n", SuccessStyle.Render(CheckMark), ValueStyle.Render(target))
			})
		})
	},
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Action group JSON file, - for stdin (required)")
	execCmd.Flags().StringVar(&execLabel, "label", "", "Override the action group label")
	_ = execCmd.MarkFlagRequired("file")

	cancelCmd.Flags().BoolVar(&cancelAll, "all", false, "Cancel every running execution")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(cancelCmd)
}

// readActionGroup decodes an action group from path, or from stdin when
// path is "-".
func readActionGroup(stdin io.Reader, path string) (somfy.ActionGroup, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return somfy.ActionGroup{}, fmt.Errorf("opening action group: %w", err)
		}
		defer f.Close()
		r = f
	}

	var group somfy.ActionGroup
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&group); err != nil {
		return somfy.ActionGroup{}, fmt.Errorf("decoding action group: %w", err)
	}
	if len(group.Actions) == 0 {
		return somfy.ActionGroup{}, fmt.Errorf("action group has no actions")
	}
	for i, a := range group.Actions {
		if a.DeviceURL == "" {
			return somfy.ActionGroup{}, fmt.Errorf("action %d: deviceURL is required", i)
		}
	}
	return group, nil
}

func printExecutions(w io.Writer, execs []somfy.Execution) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("EXECUTIONS (%d)", len(execs))))
	for _, e := range execs {
		started := "-"
		if e.StartTime > 0 {
			started = time.UnixMilli(e.StartTime).Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %s  %s  %s\n",
			ValueStyle.Render(e.ID),
			WarningStyle.Render(e.State),
			DimStyle.Render(started))
		if e.ActionGroup.Label != "" {
			fmt.Fprintf(w, "    %s\n", LabelStyle.Render(e.ActionGroup.Label))
		}
	}
}
