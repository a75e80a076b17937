// Package recovery rebuilds the alarm schedule after a process or host restart.
//
// Host timer registrations do not survive a reboot, the persisted records do.
// Resync re-reads every record, discards the ones whose trigger time already
// passed and re-arms the rest, one id at a time under the same per-id lock the
// session manager uses, so it can run while new commands arrive.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/lock"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
	"github.com/oshokin/wake-alarm/internal/repository/alarms"
)

// Scheduler arms host wake registrations.
type Scheduler interface {
	Arm(ctx context.Context, id string, at time.Time) error
}

// Tracker learns about alarms re-armed by recovery.
type Tracker interface {
	Track(def *domain.Definition)
}

// Report summarizes one Resync run.
type Report struct {
	// Rearmed lists ids armed again with the host.
	Rearmed []string
	// Discarded lists stale ids deleted from the store.
	Discarded []string
	// Failed maps ids that could not be re-armed to the cause; their records are kept.
	Failed map[string]error
}

// Coordinator runs recovery.
type Coordinator struct {
	store     alarms.Store
	scheduler Scheduler
	tracker   Tracker
	locks     *lock.MutexMap
}

// NewCoordinator creates a coordinator sharing locks with the session manager.
func NewCoordinator(store alarms.Store, scheduler Scheduler, tracker Tracker, locks *lock.MutexMap) *Coordinator {
	return &Coordinator{
		store:     store,
		scheduler: scheduler,
		tracker:   tracker,
		locks:     locks,
	}
}

// Resync reloads the store, deletes stale alarms and re-arms future ones.
// It returns a joined error of every alarm that could not be re-armed.
func (c *Coordinator) Resync(ctx context.Context) (*Report, error) {
	ctx = logger.WithName(ctx, "recovery")

	defs, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alarms: %w", err)
	}

	ids := lo.Map(defs, func(def *domain.Definition, _ int) string {
		return def.ID
	})

	report := &Report{
		Failed: make(map[string]error),
	}

	for _, id := range ids {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		c.resyncOne(ctx, id, report)
	}

	logger.InfoKV(ctx, "Recovery finished",
		"rearmed", len(report.Rearmed),
		"discarded", len(report.Discarded),
		"failed", len(report.Failed))

	if len(report.Failed) == 0 {
		return report, nil
	}

	errs := lo.MapToSlice(report.Failed, func(id string, cause error) error {
		return fmt.Errorf("re-arm %s: %w", id, cause)
	})

	return report, errors.Join(errs...)
}

// resyncOne handles one id under its lock, re-reading the record so that a
// concurrent schedule, cancel or dismiss wins.
func (c *Coordinator) resyncOne(ctx context.Context, id string, report *Report) {
	ctx = logger.WithKV(ctx, "alarm_id", id)

	unlock := c.locks.Lock(id)
	defer unlock()

	def, err := c.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrAlarmNotFound) {
			report.Failed[id] = err
			metrics.ResyncResults.WithLabelValues("failed").Inc()
		}

		return
	}

	if !def.TriggerAt.After(time.Now()) {
		if err = c.store.Delete(ctx, id); err != nil {
			report.Failed[id] = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
			metrics.ResyncResults.WithLabelValues("failed").Inc()

			return
		}

		report.Discarded = append(report.Discarded, id)
		metrics.ResyncResults.WithLabelValues("discarded").Inc()
		logger.InfoKV(ctx, "Discarded stale alarm", "trigger_at", def.TriggerAt)

		return
	}

	if err = c.scheduler.Arm(ctx, id, def.TriggerAt); err != nil {
		report.Failed[id] = err
		metrics.ResyncResults.WithLabelValues("failed").Inc()
		logger.ErrorKV(ctx, "Failed to re-arm alarm, keeping its record", "error", err)

		return
	}

	if c.tracker != nil {
		c.tracker.Track(def)
	}

	report.Rearmed = append(report.Rearmed, id)
	metrics.ResyncResults.WithLabelValues("rearmed").Inc()
	logger.DebugKV(ctx, "Re-armed alarm", "trigger_at", def.TriggerAt)
}
