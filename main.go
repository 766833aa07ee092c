package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/loopcam/cmd"
	"github.com/smazurov/loopcam/internal/config"
	"github.com/smazurov/loopcam/internal/logging"
)

// Options for the CLI - flat structure with toml mapping. Feed settings
// themselves live under [feed] in the config file; the service reloads
// them on file changes, so they are not flags here.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"loopcam.toml"`

	// Metrics settings
	MetricsListen string `help:"Address for the Prometheus metrics endpoint (empty disables it)" default:"" toml:"metrics.listen" env:"METRICS_LISTEN"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFeed    string `help:"Feed loop logging level" default:"info" toml:"logging.feed" env:"LOGGING_FEED"`
	LoggingConfig  string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingMetrics string `help:"Metrics endpoint logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system. Module levels without a flag of
		// their own can still be set in the [logging] config table.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		loggingConfig.Modules["feed"] = opts.LoggingFeed
		loggingConfig.Modules["config"] = opts.LoggingConfig
		loggingConfig.Modules["metrics"] = opts.LoggingMetrics
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)

			settings, err := cmd.LoadFeedSettings(opts.Config)
			if err != nil {
				logger.Error("Failed to load feed settings", "error", err, "config", opts.Config)
				os.Exit(1)
			}

			logger.Info("Starting virtual camera feeder",
				"config", opts.Config,
				"width", settings.Width,
				"height", settings.Height,
				"fps", settings.FPS,
				"format", settings.Format,
				"pattern", settings.Pattern)

			runErr := cmd.RunFeeder(ctx, logger, cmd.FeederParams{
				Settings:      settings,
				ConfigFile:    opts.Config,
				MetricsListen: opts.MetricsListen,
				LoadSettings:  cmd.LoadFeedSettings,
			})
			if runErr != nil {
				logger.Error("Feeder stopped", "error", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down feeder")
			cancel()
			<-done
		})
	})

	// Add feed command
	cli.Root().AddCommand(cmd.CreateFeedCmd())

	// Add devices command
	cli.Root().AddCommand(cmd.CreateDevicesCmd())

	// Add version command
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
