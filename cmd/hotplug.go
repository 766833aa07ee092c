package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smazurov/loopcam/internal/events"
	"github.com/smazurov/loopcam/pkg/linuxav/hotplug"
)

// publishHotplugEvents starts the netlink uevent monitor and republishes
// video device changes on the bus until ctx is canceled. Returns an error
// only when the monitor cannot be started.
func publishHotplugEvents(ctx context.Context, bus *events.Bus, logger *slog.Logger) error {
	monitor, err := hotplug.NewMonitor()
	if err != nil {
		return err
	}

	ch := make(chan hotplug.Event, 16)

	go func() {
		defer monitor.Close()
		if runErr := monitor.Run(ctx, ch); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Warn("Hotplug monitor stopped", "error", runErr)
		}
	}()

	go func() {
		for ev := range ch {
			bus.Publish(events.DeviceHotplugEvent{
				Action:     ev.Action,
				DevicePath: ev.Path,
				Timestamp:  time.Now().Format(time.RFC3339),
			})
		}
	}()

	return nil
}
