package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/service/client"
	"github.com/oshokin/wake-alarm/internal/version"
)

var (
	// options is shared by every subcommand.
	options = &client.Options{}

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Control the wake alarm daemon.",
		Long: `Schedule, snooze and dismiss alarms kept by alarmd.

The daemon address and request timeout come from the configuration file;
--server overrides the address.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}

	// logLevel is the verbosity of diagnostics written to stderr.
	logLevel string
)

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Keep stdout for command output.
	logger.SetLogger(logger.NewWithOutput(zapcore.Lock(os.Stderr), logger.AtomicLevel()))

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&options.ServerAddress, "server", "", "override the daemon address")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "warn", "diagnostics level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newScheduleCommand(),
		newCancelCommand(),
		newSnoozeCommand(),
		newDismissCommand(),
		newStatusCommand(),
		newListCommand(),
		newSessionCommand(),
		newHistoryCommand(),
		newWatchCommand(),
		newConfigCommand(),
	)
}
