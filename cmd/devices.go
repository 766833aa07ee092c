package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/smazurov/loopcam/internal/events"
	"github.com/smazurov/loopcam/internal/logging"
	"github.com/smazurov/loopcam/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var showFormats bool
	var watch bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video output devices",
		Long: `Lists V4L2 video devices with their card name, driver, and capability
flags. With --watch, keeps running and prints device add and remove
events as they happen.`,
		Run: func(_ *cobra.Command, _ []string) {
			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("devices")

			infos, err := v4l2.FindDevices()
			if err != nil {
				logger.Error("Failed to enumerate devices", "error", err)
				os.Exit(1)
			}

			if len(infos) == 0 {
				fmt.Println("No video devices found. Load the loopback module first:")
				fmt.Println("  modprobe v4l2loopback devices=1")
			} else {
				printDevices(infos)
			}

			if showFormats {
				printFormats(infos, logger)
			}

			if watch {
				watchDevices(logger)
			}
		},
	}

	cmd.Flags().BoolVar(&showFormats, "formats", false, "Show supported output formats per device")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and print device hotplug events")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

func printDevices(infos []v4l2.DeviceInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tCARD\tDRIVER\tOUTPUT\tLOOPBACK")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Path,
			info.Capability.Card,
			info.Capability.Driver,
			yesNo(info.Capability.OutputCapable()),
			yesNo(info.Capability.IsLoopback()))
	}
	_ = w.Flush()
}

func printFormats(infos []v4l2.DeviceInfo, logger *slog.Logger) {
	for _, info := range infos {
		formats, err := v4l2.OutputFormats(info.Path)
		if err != nil {
			logger.Warn("Failed to enumerate formats", "path", info.Path, "error", err)
			continue
		}

		fmt.Printf("\n%s output formats:\n", info.Path)
		for _, f := range formats {
			marker := ""
			if f.Emulated {
				marker = " (emulated)"
			}
			fmt.Printf("  %s  %s%s\n", v4l2.FormatFourCC(f.PixelFormat), f.FormatName, marker)
		}
	}
}

// watchDevices blocks printing hotplug events until interrupted.
func watchDevices(logger *slog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.New()
	if err := publishHotplugEvents(ctx, bus, logger); err != nil {
		logger.Error("Hotplug monitoring unavailable", "error", err)
		os.Exit(1)
	}

	ch := make(chan any, 16)
	unsubscribe := events.SubscribeToChannel[events.DeviceHotplugEvent](bus, ch)
	defer unsubscribe()

	fmt.Println("\nWatching for device changes, Ctrl-C to stop...")
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			ev, ok := e.(events.DeviceHotplugEvent)
			if !ok {
				continue
			}
			fmt.Printf("%s  %-7s %s\n", ev.Timestamp, ev.Action, ev.DevicePath)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
