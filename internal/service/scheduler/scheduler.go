package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
)

// DefaultArmTimeout bounds a host arm call when no timeout is configured.
const DefaultArmTimeout = 2 * time.Second

// errArmTimeout is returned when the host does not answer in time.
var errArmTimeout = errors.New("host did not answer the arm request in time")

// WakeScheduler is the engine-facing precise timer.
type WakeScheduler struct {
	// host is the platform scheduling collaborator.
	host host.Scheduler
	// armTimeout bounds ArmWake calls.
	armTimeout time.Duration

	mu sync.Mutex
	// reduced holds ids armed with a lower-reliability timer class.
	reduced map[string]struct{}
}

// New creates a WakeScheduler over the host collaborator.
func New(h host.Scheduler, armTimeout time.Duration) *WakeScheduler {
	if armTimeout <= 0 {
		armTimeout = DefaultArmTimeout
	}

	return &WakeScheduler{
		host:       h,
		armTimeout: armTimeout,
		reduced:    make(map[string]struct{}),
	}
}

type armResult struct {
	reliability host.Reliability
	err         error
}

// Arm registers (or replaces) the wake callback for id at the absolute time at.
// Failures wrap domain.ErrSchedulingFailed together with the cause:
// domain.ErrPermissionDenied, domain.ErrUnsupported or the host error.
func (s *WakeScheduler) Arm(ctx context.Context, id string, at time.Time) error {
	ctx = logger.WithKV(ctx, "alarm_id", id)

	armCtx, cancel := context.WithTimeout(ctx, s.armTimeout)
	defer cancel()

	done := make(chan armResult, 1)

	go func() {
		reliability, err := s.host.ArmWake(armCtx, id, at)
		done <- armResult{reliability: reliability, err: err}
	}()

	var result armResult

	select {
	case result = <-done:
	case <-armCtx.Done():
		result.err = errArmTimeout
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.err = ctxErr
		}
	}

	if result.err != nil {
		metrics.ArmAttempts.WithLabelValues("failed", "").Inc()
		logger.WarnKV(ctx, "Host refused wake registration", "error", result.err)

		return mapHostError(result.err)
	}

	metrics.ArmAttempts.WithLabelValues("armed", string(result.reliability)).Inc()
	s.recordReliability(ctx, id, result.reliability)

	logger.DebugKV(ctx, "Wake registration armed",
		"trigger_at", at,
		"reliability", result.reliability)

	return nil
}

// Disarm removes any pending registration for id; a missing one is not an error.
func (s *WakeScheduler) Disarm(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.reduced, id)
	reducedCount := len(s.reduced)
	s.mu.Unlock()

	metrics.ReducedReliability.Set(boolGauge(reducedCount > 0))

	if err := s.host.DisarmWake(ctx, id); err != nil {
		return fmt.Errorf("disarm %s: %w", id, err)
	}

	return nil
}

// OnFire forwards host fire callbacks to handler.
func (s *WakeScheduler) OnFire(handler func(id string)) {
	s.host.SetFireHandler(func(id string) {
		s.mu.Lock()
		delete(s.reduced, id)
		s.mu.Unlock()

		handler(id)
	})
}

// ReducedReliability reports whether id was armed with an inexact timer.
func (s *WakeScheduler) ReducedReliability(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.reduced[id]

	return ok
}

func (s *WakeScheduler) recordReliability(ctx context.Context, id string, reliability host.Reliability) {
	s.mu.Lock()

	if reliability == host.ReliabilityPrecise {
		delete(s.reduced, id)
	} else {
		s.reduced[id] = struct{}{}
	}

	reducedCount := len(s.reduced)
	s.mu.Unlock()

	metrics.ReducedReliability.Set(boolGauge(reducedCount > 0))

	if reliability != host.ReliabilityPrecise {
		logger.WarnKV(ctx, "Alarm armed in reduced-reliability mode",
			"reliability", reliability)
	}
}

// mapHostError converts a host failure into the engine taxonomy.
func mapHostError(err error) error {
	switch {
	case errors.Is(err, host.ErrDenied):
		return fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, domain.ErrPermissionDenied)
	case errors.Is(err, host.ErrUnsupported):
		return fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, domain.ErrUnsupported)
	default:
		return fmt.Errorf("%w: %w", domain.ErrSchedulingFailed, err)
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}

	return 0
}
