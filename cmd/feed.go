package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/loopcam/internal/config"
	"github.com/smazurov/loopcam/internal/events"
	"github.com/smazurov/loopcam/internal/feed"
	"github.com/smazurov/loopcam/internal/logging"
	"github.com/smazurov/loopcam/internal/metrics"
	"github.com/spf13/cobra"
)

// feedOptions is filled from CLI flags, environment variables, and the
// TOML config file, in that order of precedence.
type feedOptions struct {
	Config        string
	Width         int      `toml:"feed.width" env:"FEED_WIDTH"`
	Height        int      `toml:"feed.height" env:"FEED_HEIGHT"`
	Fps           float64  `toml:"feed.fps" env:"FEED_FPS"`
	Format        string   `toml:"feed.format" env:"FEED_FORMAT"`
	Devices       []string `toml:"feed.devices" env:"FEED_DEVICES"`
	Pattern       string   `toml:"feed.pattern" env:"FEED_PATTERN"`
	MetricsListen string   `toml:"metrics.listen" env:"METRICS_LISTEN"`
}

func (o feedOptions) settings() feed.Settings {
	return feed.Settings{
		Width:   o.Width,
		Height:  o.Height,
		FPS:     o.Fps,
		Format:  o.Format,
		Devices: o.Devices,
		Pattern: o.Pattern,
	}
}

// defaultFeedOptions returns the built-in feed defaults applied before
// config file and environment values.
func defaultFeedOptions(configFile string) feedOptions {
	return feedOptions{
		Config:  configFile,
		Width:   1280,
		Height:  720,
		Fps:     30,
		Format:  "rgb24",
		Pattern: "hue",
	}
}

// LoadFeedSettings resolves feed settings from the config file and
// environment on top of the built-in defaults. The root service uses it
// both at startup and on config file reloads.
func LoadFeedSettings(configFile string) (feed.Settings, error) {
	opts := defaultFeedOptions(configFile)
	if err := config.LoadConfig(&opts, nil); err != nil {
		return feed.Settings{}, err
	}
	return opts.settings(), nil
}

// CreateFeedCmd creates the feed command.
func CreateFeedCmd() *cobra.Command {
	var configFile string
	var width, height int
	var fps float64
	var format string
	var devices []string
	var patternName string
	var metricsListen string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Feed generated test frames into loopback devices",
		Long: `Claims one or more v4l2loopback output devices and writes generated
test pattern frames at the configured rate. Watches the config file and
restarts the session when feed settings change.`,
		Run: func(c *cobra.Command, _ []string) {
			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("feed")

			flagOptions := func() feedOptions {
				return feedOptions{
					Config:        configFile,
					Width:         width,
					Height:        height,
					Fps:           fps,
					Format:        format,
					Devices:       devices,
					Pattern:       patternName,
					MetricsListen: metricsListen,
				}
			}

			opts := flagOptions()
			if err := config.LoadConfig(&opts, c); err != nil {
				logger.Error("Failed to load configuration", "error", err, "config", configFile)
				os.Exit(1)
			}

			// Fresh options on every reload so CLI-set flags stay sticky
			loadSettings := func(path string) (feed.Settings, error) {
				fresh := flagOptions()
				fresh.Config = path
				if err := config.LoadConfig(&fresh, c); err != nil {
					return feed.Settings{}, err
				}
				return fresh.settings(), nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := RunFeeder(ctx, logger, FeederParams{
				Settings:      opts.settings(),
				ConfigFile:    configFile,
				MetricsListen: opts.MetricsListen,
				LoadSettings:  loadSettings,
			})
			if err != nil {
				logger.Error("Feed failed", "error", err)
				os.Exit(1)
			}

			logger.Info("Feed command exiting")
		},
	}

	defaults := defaultFeedOptions("loopcam.toml")
	cmd.Flags().StringVar(&configFile, "config", defaults.Config, "Path to configuration file")
	cmd.Flags().IntVar(&width, "width", defaults.Width, "Frame width in pixels")
	cmd.Flags().IntVar(&height, "height", defaults.Height, "Frame height in pixels")
	cmd.Flags().Float64Var(&fps, "fps", defaults.Fps, "Frame rate in frames per second")
	cmd.Flags().StringVar(&format, "format", defaults.Format,
		"Input pixel format (rgb24, bgr24, gray, i420, nv12, yuy2, uyvy)")
	cmd.Flags().StringSliceVar(&devices, "devices", nil,
		"Loopback devices to feed (default: first free loopback device)")
	cmd.Flags().StringVar(&patternName, "pattern", defaults.Pattern, "Test pattern (hue, bars)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "",
		"Address for the Prometheus metrics endpoint (e.g. :9115)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// FeederParams collects everything needed to run the feed loop.
type FeederParams struct {
	Settings      feed.Settings
	ConfigFile    string
	MetricsListen string

	// LoadSettings reloads settings when the config file changes.
	// nil disables hot reload.
	LoadSettings func(path string) (feed.Settings, error)
}

// RunFeeder wires the event bus, hotplug monitor, metrics endpoint, and
// config watcher around a feeder and blocks until ctx is canceled or the
// session fails.
func RunFeeder(ctx context.Context, logger *slog.Logger, params FeederParams) error {
	bus := events.New()
	feeder := feed.New(bus, logging.GetLogger("feed"))

	if err := publishHotplugEvents(ctx, bus, logger); err != nil {
		logger.Warn("Hotplug monitoring unavailable", "error", err)
	}

	if params.MetricsListen != "" {
		srv, err := metrics.StartServer(params.MetricsListen, logging.GetLogger("metrics"))
		if err != nil {
			logger.Warn("Metrics endpoint unavailable", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if params.LoadSettings != nil {
		watcher := config.NewConfigWatcher(
			params.ConfigFile,
			params.LoadSettings,
			logging.GetLogger("config"),
			config.WithDebounce[feed.Settings](1500*time.Millisecond),
		)
		watcher.OnReload(feeder.Reload)

		// Start config watcher (non-fatal if it fails)
		if err := watcher.Start(); err != nil {
			logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	return feeder.Run(ctx, params.Settings)
}
