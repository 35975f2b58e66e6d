package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-alarm-central/internal/config"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/service/central"
	"github.com/oshokin/home-alarm-central/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides where the snapshot is persisted.
	stateFile string
	// logLevel is the minimum level written.
	logLevel string
	// logFormat is console or json.
	logFormat string
	// skipInstanceCheck allows a second process, e.g. against the memory driver.
	skipInstanceCheck bool

	// rootCmd runs the alarm central daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-central",
		Short: "Run the home alarm central.",
		Long: `Runs the home alarm central: receives sensor frames from the radio bridge,
drives the siren and LEDs, publishes status and heartbeats to the MQTT broker
and accepts commands from the broker and from alarmctl.

The central always boots DISARMED. The state persisted by the previous run is
only reported in status messages.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Setup(logLevel, logFormat)
		},
		RunE: func(*cobra.Command, []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &central.Options{
				ConfigPath:        configPath,
				StateFile:         stateFile,
				SkipInstanceCheck: skipInstanceCheck,
			}

			return central.Run(ctx, options)
		},
	}

	// checkConfigCmd validates the configuration file.
	checkConfigCmd = &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and print the effective settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := central.CheckConfig(configPath)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"configuration OK: device %s, %d sensors, broker %s:%d, gpio driver %s\n",
				cfg.DeviceID, len(cfg.Sensors), cfg.MQTT.Broker, cfg.MQTT.Port, cfg.GPIO.Driver)

			return err
		},
	}
)

// Execute runs the alarm-central CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "override the snapshot file from the configuration")
	rootCmd.Flags().BoolVar(&skipInstanceCheck, "skip-instance-check", false, "do not refuse to start next to another instance")

	rootCmd.AddCommand(checkConfigCmd)
}
