package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/service/common"
)

// Options controls the watcher connection and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// RetryInterval is the pause before re-opening a broken stream.
	RetryInterval time.Duration
	// Output receives rendered events, os.Stdout when nil.
	Output io.Writer
}

// DefaultRetryInterval is the pause between reconnect attempts.
const DefaultRetryInterval = 5 * time.Second

// Run streams lifecycle events from the daemon and prints them until ctx is
// cancelled. Broken streams are re-opened after RetryInterval; every new
// stream starts with a snapshot of the live sessions.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarmctl-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching alarm sessions", "server_address", serverAddress)

	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		err = watchOnce(ctx, client, out)

		switch {
		case ctx.Err() != nil:
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case status.Code(err) == codes.Unimplemented:
			return fmt.Errorf("daemon does not support watching: %w", err)
		case err != nil:
			logger.WarnKV(ctx, "Event stream broken, reconnecting", "error", err, "retry_in", opts.RetryInterval.String())
		}

		ticker.Reset(opts.RetryInterval)

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}

// watchOnce consumes one stream until it ends.
func watchOnce(ctx context.Context, client *common.Client, out io.Writer) error {
	stream, err := client.WatchSurface(ctx)
	if err != nil {
		return err
	}

	return consume(stream, out)
}

func consume(stream grpc.ServerStreamingClient[api.SurfaceEvent], out io.Writer) error {
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		printEvent(out, event)
	}
}

// printEvent renders one event as a single line.
func printEvent(out io.Writer, event *api.SurfaceEvent) {
	kind := event.Type
	if event.Snapshot {
		kind = "current"
	}

	fmt.Fprintf(out, "%s  ", event.OccurredAt.Local().Format(time.TimeOnly))
	eventColor(event).Fprintf(out, "%-12s", kind)
	fmt.Fprintf(out, "  %s  %s", event.AlarmID, event.State)

	if event.Label != "" {
		fmt.Fprintf(out, "  %q", event.Label)
	}

	if !event.TriggerAt.IsZero() {
		fmt.Fprintf(out, "  at %s", event.TriggerAt.Local().Format(time.DateTime))
	}

	if event.Degraded {
		color.New(color.FgYellow).Fprint(out, "  degraded")
	}

	fmt.Fprintln(out)
}

func eventColor(event *api.SurfaceEvent) *color.Color {
	switch {
	case event.Snapshot:
		return color.New(color.FgCyan)
	case event.Degraded:
		return color.New(color.FgYellow, color.Bold)
	case event.State == "playing" || event.State == "firing":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgGreen)
	}
}
