package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/service/server"
	"github.com/oshokin/wake-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the metrics and status HTTP address.
	httpAddress string
	// storePath overrides where alarms are persisted.
	storePath string
	// hostKind overrides the host collaborators.
	hostKind string

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarmd [listen-address]",
		Short: "Run the wake alarm daemon.",
		Long: `Starts the daemon that keeps alarms armed and makes them ring.

Alarms are persisted and re-armed on start, stale ones are discarded.
A ringing alarm plays through layered sound sources with vibration and a
desktop notification until it is snoozed, dismissed or expires.

The gRPC API listens on the address from the configuration file unless one
is given as argument (e.g., 127.0.0.1:50051). Status and Prometheus metrics
are served over HTTP when http_address is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
				StorePath:     storePath,
				HostKind:      hostKind,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alarmd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&httpAddress, "http-address", "", "override the HTTP status and metrics address")
	rootCmd.Flags().StringVarP(&storePath, "store", "s", "", "override the path alarms are persisted to")
	rootCmd.Flags().StringVar(&hostKind, "host", "", "override the host kind (desktop or simulated)")
}
