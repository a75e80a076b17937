package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/events"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/host/desktop"
	"github.com/oshokin/wake-alarm/internal/host/fake"
	"github.com/oshokin/wake-alarm/internal/lock"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/repository/alarms"
	"github.com/oshokin/wake-alarm/internal/service/playback"
	"github.com/oshokin/wake-alarm/internal/service/power"
	"github.com/oshokin/wake-alarm/internal/service/recovery"
	"github.com/oshokin/wake-alarm/internal/service/scheduler"
	"github.com/oshokin/wake-alarm/internal/service/session"
	"github.com/oshokin/wake-alarm/internal/storage"
	boltstore "github.com/oshokin/wake-alarm/internal/storage/bolt"
	redisstore "github.com/oshokin/wake-alarm/internal/storage/redis"
)

// appName identifies the daemon to logind and the notification server.
const appName = "wake-alarm"

// collaborators is one implementation of every host interface.
type collaborators struct {
	scheduler host.Scheduler
	audio     host.Audio
	volume    host.Volume
	vibrator  host.Vibrator
	power     host.PowerHold
	presenter host.Presenter
	close     func()
}

// engine is the fully wired alarm engine of one daemon run.
type engine struct {
	backend   storage.Backend
	host      *collaborators
	wake      *scheduler.WakeScheduler
	manager   *session.Manager
	recovery  *recovery.Coordinator
	bus       *events.Bus
	publisher *events.AMQPPublisher
}

// newEngine opens the store, builds the host collaborators and wires the
// session manager to them. Nothing is armed until recovery runs.
func newEngine(ctx context.Context, settings *config.Config) (*engine, error) {
	backend, err := openBackend(ctx, settings.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", settings.Storage.Type, err)
	}

	e := &engine{
		backend: backend,
		host:    newCollaborators(ctx, settings),
	}

	var sinks []events.Sink

	if settings.Events.AMQPURL != "" {
		e.publisher, err = events.DialAMQP(settings.Events.AMQPURL, settings.Events.Exchange, settings.Events.Source)
		if err != nil {
			logger.WarnKV(ctx, "Lifecycle events will not be published", "error", err)
		} else {
			sinks = append(sinks, e.publisher)
		}
	}

	e.bus = events.NewBus(sinks...)

	policy, err := session.ParsePolicy(settings.Sessions.ConcurrencyPolicy)
	if err != nil {
		_ = e.close()

		return nil, err
	}

	store := alarms.NewRepository(backend)
	locks := lock.NewMutexMap()

	e.wake = scheduler.New(e.host.scheduler, settings.Scheduler.ArmTimeout)

	player := playback.NewOrchestrator(playback.Config{
		BackupDelay:           settings.Playback.BackupDelay,
		FallbackDelay:         settings.Playback.FallbackDelay,
		HoldCeiling:           settings.Playback.HoldCeiling,
		DegradedRetryInterval: settings.Playback.DegradedRetryInterval,
		VibrationPattern:      host.Pattern(settings.Playback.VibrationPattern),
		OverrideVolume:        settings.Playback.OverrideVolume,
		VolumePercent:         settings.Playback.VolumePercent,
	}, playback.Devices{
		Audio:    e.host.audio,
		Volume:   e.host.volume,
		Vibrator: e.host.vibrator,
		Power:    e.host.power,
	})

	e.manager, err = session.NewManager(ctx, session.Config{
		Policy:        policy,
		FiringTimeout: settings.Playback.FiringTimeout,
		HistorySize:   settings.Sessions.HistorySize,
	}, session.Dependencies{
		Store:     store,
		Scheduler: e.wake,
		Player:    player,
		Presenter: e.host.presenter,
		Observer:  e.bus,
		Locks:     locks,
	})
	if err != nil {
		_ = e.close()

		return nil, err
	}

	e.wake.OnFire(e.manager.OnFire)
	e.recovery = recovery.NewCoordinator(store, e.wake, e.manager, locks)

	return e, nil
}

// close stops ringing sessions and releases the store and host resources.
// Persisted alarms stay in the store for the next start.
func (e *engine) close() error {
	var errs []error

	if e.manager != nil {
		errs = append(errs, e.manager.Close())
	}

	if e.host != nil && e.host.close != nil {
		e.host.close()
	}

	if e.publisher != nil {
		errs = append(errs, e.publisher.Close())
	}

	if e.backend != nil {
		errs = append(errs, e.backend.Close())
	}

	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)

	switch cfg.Type {
	case config.StorageFile:
		backend, err = storage.NewFile(cfg.Path)
	case config.StorageBolt:
		backend, err = boltstore.Open(cfg.Path)
	case config.StorageRedis:
		backend, err = redisstore.Open(ctx, redisstore.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
	case config.StorageMemory:
		logger.Warn(ctx, "Using the memory store, alarms will not survive a restart")

		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	return backend, nil
}

func newCollaborators(ctx context.Context, settings *config.Config) *collaborators {
	if settings.Host.Kind == config.HostSimulated {
		logger.Info(ctx, "Using the simulated host, alarms will fire but not sound")

		simulated := fake.NewSimulated()

		return &collaborators{
			scheduler: simulated.Scheduler,
			audio:     simulated.Audio,
			volume:    simulated.Volume,
			vibrator:  simulated.Vibrator,
			power:     simulated.Power,
			presenter: simulated.Presenter,
			close:     simulated.Scheduler.Reset,
		}
	}

	h := desktop.New(ctx, desktop.Config{
		Reliability:       host.Reliability(settings.Scheduler.Reliability),
		MaxCheckInterval:  settings.Scheduler.MaxCheckInterval,
		SoundCommands:     settings.Playback.SoundCommands,
		SystemToneCommand: settings.Playback.SystemToneCommand,
		AppName:           appName,
	})

	if err := h.Audio.ReapOrphans(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to clean up orphaned players", "error", err)
	}

	return &collaborators{
		scheduler: h.Scheduler,
		audio:     h.Audio,
		volume:    h.Volume,
		vibrator:  h.Vibrator,
		power:     power.NewHold(appName),
		presenter: h.Presenter,
		close:     h.Close,
	}
}
