package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-alarm-central/internal/config"
	"github.com/oshokin/home-alarm-central/internal/logger"
	"github.com/oshokin/home-alarm-central/internal/service/control"
	"github.com/oshokin/home-alarm-central/internal/version"
)

var (
	// address of the control API.
	address string
	// timeout for each call.
	timeout time.Duration
	// logLevel is the minimum level written.
	logLevel string
	// radioAddr is the bridge listener targeted by simulate.
	radioAddr string
	// seq is the sequence number of a simulated frame.
	seq uint32

	// rootCmd is the control client of a running central.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Control a running home alarm central.",
		Long: `Talks to the local control API of alarm-central.

Commands are queued into the central like broker commands, so the reply shows
whether the state machine accepted them and the resulting state.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Setup(logLevel, string(logger.FormatConsole))
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current state, siren and sensors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return control.Status(ctx, options(cmd))
		},
	}

	sirenCmd = &cobra.Command{
		Use:       "siren on|off",
		Short:     "Sound or stop the siren manually without changing the state.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			value, err := parseSwitch(args[0])
			if err != nil {
				return err
			}

			return control.Send(ctx, options(cmd), "siren", &value)
		},
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate <mac> triggered|heartbeat|tamper|tamper-restored",
		Short: "Send a fake sensor frame to the radio bridge listener.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // MAC and kind.
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return control.Simulate(ctx, &control.SimulateOptions{
				RadioAddr: radioAddr,
				MAC:       args[0],
				Kind:      args[1],
				Seq:       seq,
			})
		},
	}
)

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// actionCommand builds a subcommand that sends one action.
func actionCommand(use, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return control.Send(ctx, options(cmd), action, nil)
		},
	}
}

func options(cmd *cobra.Command) *control.Options {
	return &control.Options{
		Address: address,
		Timeout: timeout,
		Output:  cmd.OutOrStdout(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return strconv.ParseBool(s)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&address, "address", "a", config.DefaultControlAddr, "control API address of the central")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "timeout for each call")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	simulateCmd.Flags().StringVar(&radioAddr, "radio-addr", "127.0.0.1"+config.DefaultRadioAddr, "radio bridge listener")
	simulateCmd.Flags().Uint32Var(&seq, "seq", uint32(time.Now().Unix()), "frame sequence number") //nolint:gosec // Wraps harmlessly.

	rootCmd.AddCommand(
		statusCmd,
		actionCommand("arm", "arm", "Arm the central."),
		actionCommand("disarm", "disarm", "Disarm the central and silence an alert."),
		actionCommand("ack", "ack", "Acknowledge an alert, silencing the siren."),
		actionCommand("clear-fault", "clear_fault", "Leave FAULT after checking the silent sensors."),
		sirenCmd,
		simulateCmd,
	)
}
