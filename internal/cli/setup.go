package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

var devicesControllable string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the gateway API protocol version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			v, err := client.GetVersion(ctx)
			if err != nil {
				return err
			}
			return output(cmd, v, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Protocol version:"), ValueStyle.Render(v.ProtocolVersion))
				fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("somfyctl:"), DimStyle.Render(version))
			})
		})
	},
}

var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "List gateways",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			gateways, err := client.GetGateways(ctx)
			if err != nil {
				return err
			}
			return output(cmd, gateways, func(w io.Writer) { printGateways(w, gateways) })
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Show gateways and devices of the installation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			setup, err := client.GetSetup(ctx)
			if err != nil {
				return err
			}
			return output(cmd, setup, func(w io.Writer) {
				printGateways(w, setup.Gateways)
				fmt.Fprintln(w)
				printDevices(w, setup.Devices)
			})
		})
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices",
	Long: `List the devices paired with the gateway.

Examples:
  somfyctl devices
  somfyctl devices --controllable io:RollerShutterGenericIOComponent
  somfyctl devices --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			if devicesControllable != "" {
				urls, err := client.GetDevicesByControllable(ctx, devicesControllable)
				if err != nil {
					return err
				}
				return output(cmd, urls, func(w io.Writer) {
					for _, u := range urls {
						fmt.Fprintf(w, "  %s %s\n", Bullet, u)
					}
				})
			}

			devices, err := client.GetDevices(ctx)
			if err != nil {
				return err
			}
			return output(cmd, devices, func(w io.Writer) { printDevices(w, devices) })
		})
	},
}

var deviceCmd = &cobra.Command{
	Use:   "device DEVICE_URL",
	Short: "Show one device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			device, err := client.GetDevice(ctx, args[0])
			if err != nil {
				return err
			}
			return output(cmd, device, func(w io.Writer) {
				printDevices(w, []somfy.Device{device})
				fmt.Fprintln(w)
				printStates(w, device.States)
			})
		})
	},
}

var statesCmd = &cobra.Command{
	Use:   "states DEVICE_URL [STATE_NAME]",
	Short: "Show the states of a device",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(ctx context.Context, client *somfy.Client) error {
			if len(args) == 2 {
				state, err := client.GetDeviceState(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return output(cmd, state, func(w io.Writer) { printStates(w, []somfy.DeviceState{state}) })
			}

			states, err := client.GetDeviceStates(ctx, args[0])
			if err != nil {
				return err
			}
			return output(cmd, states, func(w io.Writer) { printStates(w, states) })
		})
	},
}

func init() {
	devicesCmd.Flags().StringVar(&devicesControllable, "controllable", "", "Only list URLs of devices with this controllable name")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gatewaysCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(statesCmd)
}

func printGateways(w io.Writer, gateways []somfy.Gateway) {
	fmt.Fprintln(w, TitleStyle.Render("GATEWAYS"))
	for _, g := range gateways {
		status := g.Connectivity.Status
		style := SuccessStyle
		if !strings.EqualFold(status, "OK") {
			style = WarningStyle
		}
		fmt.Fprintf(w, "  %s  %s  %s\n",
			ValueStyle.Render(g.GatewayID),
			style.Render(status),
			DimStyle.Render("protocol "+g.Connectivity.ProtocolVersion))
	}
}

func printDevices(w io.Writer, devices []somfy.Device) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("DEVICES (%d)", len(devices))))
	for _, d := range devices {
		fmt.Fprintf(w, "  %s %s\n", availability(d.Available), ValueStyle.Render(d.Label))
		fmt.Fprintf(w, "    %s\n", DimStyle.Render(d.DeviceURL))
		if d.ControllableName != "" {
			fmt.Fprintf(w, "    %s\n", LabelStyle.Render(d.ControllableName))
		}
	}
}

func printStates(w io.Writer, states []somfy.DeviceState) {
	fmt.Fprintln(w, TitleStyle.Render("STATES"))
	for _, s := range states {
		fmt.Fprintf(w, "  %s = %s\n", LabelStyle.Render(s.Name), ValueStyle.Render(string(s.Value.Raw())))
	}
}
