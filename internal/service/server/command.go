package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/wake-alarm/internal/api/rest"
	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/version"
)

// Options controls the alarmd process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC listen address from settings.
	ListenAddress string
	// HTTPAddress overrides the HTTP address from settings.
	HTTPAddress string
	// StorePath overrides the file or bolt store location from settings.
	StorePath string
	// HostKind overrides the host collaborators ("desktop" or "simulated").
	HostKind string
}

const (
	// readHeaderTimeout bounds slow HTTP clients.
	readHeaderTimeout = 5 * time.Second
	// shutdownTimeout bounds graceful shutdown of each listener.
	shutdownTimeout = 5 * time.Second
)

// Run loads settings, recovers persisted alarms and serves gRPC and HTTP until
// ctx is cancelled.
//
// Recovery finishes before the listeners open, so no command races a
// half-restored schedule. systemd is told READY once both listeners are bound
// and is pinged for the watchdog while the daemon runs.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarmd")

	source := config.NewSource(opts.ConfigPath)

	settings, err := source.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyOverrides(settings, opts); err != nil {
		return err
	}

	if format, _ := logger.ParseFormat(settings.LogFormat); format == logger.FormatJSON {
		logger.SetLogger(logger.NewFormat(format, zapcore.Lock(os.Stdout), logger.AtomicLevel()))
		ctx = logger.WithName(logger.ToContext(ctx, logger.Logger()), "alarmd")
	}

	applyLogLevel(ctx, settings.LogLevel)
	source.Watch(ctx, func(changed *config.Config) {
		applyLogLevel(ctx, changed.LogLevel)
	})

	e, err := newEngine(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}

	defer func() {
		if closeErr := e.close(); closeErr != nil {
			logger.ErrorKV(ctx, "Engine shutdown finished with errors", "error", closeErr)
		}
	}()

	report, err := e.recovery.Resync(ctx)
	if err != nil && report == nil {
		return fmt.Errorf("recover alarms: %w", err)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Some alarms could not be re-armed and will not ring", "error", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor(ctx)))
	api.RegisterAlarmServiceServer(grpcServer, api.NewServer(e.manager, e.bus, e.wake))

	var (
		httpServer *http.Server
		httpLis    net.Listener
	)

	if settings.HTTPAddress != "" {
		httpLis, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
		if err != nil {
			_ = lis.Close()

			return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
		}

		httpServer = &http.Server{
			Handler:           rest.NewRouter(ctx, e.manager),
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	logger.InfoKV(ctx, "Alarm daemon listening",
		"version", version.Short(),
		"listen_address", lis.Addr().String(),
		"http_address", settings.HTTPAddress,
		"storage", settings.Storage.Type,
		"host", settings.Host.Kind,
		"policy", settings.Sessions.ConcurrencyPolicy)

	notifySystemd(ctx, daemon.SdNotifyReady)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	if httpServer != nil {
		group.Go(func() error {
			if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve HTTP: %w", err)
			}

			return nil
		})
	}

	group.Go(func() error {
		return e.bus.Run(groupCtx)
	})

	group.Go(func() error {
		watchdog(groupCtx)

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		notifySystemd(ctx, daemon.SdNotifyStopping)
		logger.Info(ctx, "Shutting down")

		stopGRPC(ctx, grpcServer)

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			_ = httpServer.Shutdown(shutdownCtx)
		}

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Alarm daemon stopped")

	return err
}

func applyOverrides(settings *config.Config, opts *Options) error {
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.StorePath != "" {
		settings.Storage.Path = opts.StorePath
	}

	if opts.HostKind != "" {
		settings.Host.Kind = opts.HostKind
	}

	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	return nil
}

func applyLogLevel(ctx context.Context, value string) {
	level, ok := logger.ParseLogLevel(value)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping the current one", "log_level", value)

		return
	}

	if level != logger.Level() {
		logger.SetLevel(level)
		logger.InfoKV(ctx, "Log level set", "log_level", level.String())
	}
}

// stopGRPC drains in-flight calls. Open watch streams never finish on their
// own, so the server is stopped hard after shutdownTimeout.
func stopGRPC(ctx context.Context, srv *grpc.Server) {
	stopped := make(chan struct{})

	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopped:
	case <-timer.C:
		logger.Warn(ctx, "Graceful stop timed out, closing remaining streams")
		srv.Stop()
		<-stopped
	}
}

// watchdog pings systemd at half the configured watchdog interval.
func watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read the systemd watchdog settings", "error", err)

		return
	}

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notifySystemd(ctx, daemon.SdNotifyWatchdog)
		}
	}
}

func notifySystemd(ctx context.Context, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.WarnKV(ctx, "Unable to notify systemd", "state", state, "error", err)

		return
	}

	if sent {
		logger.DebugKV(ctx, "Notified systemd", "state", state)
	}
}
