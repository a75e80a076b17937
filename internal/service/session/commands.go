package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
)

// Schedule validates, persists and arms a definition and returns its id.
// An empty id is assigned by the engine.
//
// The definition is written to the store before the host timer is armed. If
// arming fails the record is deleted again and the scheduling error is
// returned. If only persisting fails the alarm is still armed for the life of
// the process and the id is returned together with domain.ErrPersistence.
func (m *Manager) Schedule(ctx context.Context, def *domain.Definition) (string, error) {
	if def == nil {
		return "", fmt.Errorf("%w: definition is required", domain.ErrInvalidAlarmDefinition)
	}

	def = def.Clone()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	def.ApplyDefaults()

	now := time.Now()
	if err := def.Validate(now); err != nil {
		return "", err
	}

	def.CreatedAt = now

	ctx = logger.WithKV(logger.WithName(ctx, "session-manager"), "alarm_id", def.ID)

	unlock := m.locks.Lock(def.ID)
	defer unlock()

	m.mu.RLock()
	_, ringing := m.sessions[def.ID]
	_, armed := m.armed[def.ID]
	m.mu.RUnlock()

	switch {
	case ringing:
		return "", fmt.Errorf("%w: alarm %s is ringing, snooze or dismiss it first",
			domain.ErrInvalidTransition, def.ID)
	case armed:
		return "", fmt.Errorf("%w: alarm %s is already armed", domain.ErrInvalidAlarmDefinition, def.ID)
	}

	persistErr := m.store.Save(ctx, def)
	if persistErr != nil {
		metrics.PersistenceErrors.WithLabelValues("save").Inc()
		logger.ErrorKV(ctx, "Failed to persist alarm, keeping it in memory only", "error", persistErr)
	}

	if err := m.scheduler.Arm(ctx, def.ID, def.TriggerAt); err != nil {
		if persistErr == nil {
			m.deleteDefinition(ctx, def.ID)
		}

		return "", err
	}

	m.mu.Lock()
	m.armed[def.ID] = def

	if persistErr != nil {
		m.volatile[def.ID] = struct{}{}
	} else {
		delete(m.volatile, def.ID)
	}

	m.updateGaugesLocked()
	m.mu.Unlock()

	metrics.AlarmsScheduled.Inc()
	logger.InfoKV(ctx, "Alarm scheduled", "trigger_at", def.TriggerAt, "label", def.Label)

	m.emit(ctx, domain.Event{
		Type:      domain.EventScheduled,
		AlarmID:   def.ID,
		Label:     def.Label,
		State:     domain.StateArmed,
		TriggerAt: def.TriggerAt,
	})

	if persistErr != nil {
		return def.ID, fmt.Errorf("%w: alarm %s will not survive a restart: %w",
			domain.ErrPersistence, def.ID, persistErr)
	}

	return def.ID, nil
}

// Cancel disarms an armed alarm and deletes it. It is a no-op for alarms that
// are not armed.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	ctx = logger.WithKV(logger.WithName(ctx, "session-manager"), "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	def, armed := m.armed[id]
	_, ringing := m.sessions[id]
	m.mu.RUnlock()

	if ringing {
		return nil
	}

	if !armed {
		// Known to the store but not tracked yet, e.g. during recovery.
		stored, err := m.store.Load(ctx, id)
		if err != nil {
			return nil //nolint:nilerr // Not armed: nothing to cancel.
		}

		def = stored
	}

	if err := m.scheduler.Disarm(ctx, id); err != nil {
		logger.WarnKV(ctx, "Failed to disarm host registration", "error", err)
	}

	m.deleteDefinition(ctx, id)

	m.mu.Lock()
	delete(m.armed, id)
	delete(m.volatile, id)
	m.updateGaugesLocked()
	m.mu.Unlock()

	logger.InfoKV(ctx, "Alarm cancelled")

	m.emit(ctx, domain.Event{
		Type:    domain.EventCancelled,
		AlarmID: id,
		Label:   def.Label,
		State:   domain.StateIdle,
	})

	return nil
}

// Snooze stops a ringing alarm and re-arms it minutesOverride minutes from now,
// or after the definition's snooze duration when minutesOverride is zero.
// If re-arming fails the alarm is dismissed and the scheduling error returned.
func (m *Manager) Snooze(ctx context.Context, id string, minutesOverride int) error {
	if minutesOverride < 0 {
		return fmt.Errorf("%w: snooze minutes must not be negative", domain.ErrInvalidAlarmDefinition)
	}

	ctx = logger.WithKV(logger.WithName(ctx, "session-manager"), "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	e, ringing := m.sessions[id]
	_, armed := m.armed[id]
	m.mu.RUnlock()

	if !ringing {
		if armed {
			return fmt.Errorf("%w: alarm %s is armed, not ringing", domain.ErrInvalidTransition, id)
		}

		return domain.ErrAlarmNotFound
	}

	m.stopSession(ctx, id, e, domain.StateSnoozed)

	def := e.def.Clone()
	def.TriggerAt = time.Now().Add(def.SnoozeDuration(minutesOverride))

	persistErr := m.store.Save(ctx, def)
	if persistErr != nil {
		metrics.PersistenceErrors.WithLabelValues("save").Inc()
		logger.ErrorKV(ctx, "Failed to persist snoozed alarm, keeping it in memory only", "error", persistErr)
	}

	if err := m.scheduler.Arm(ctx, id, def.TriggerAt); err != nil {
		logger.ErrorKV(ctx, "Failed to re-arm snoozed alarm, dismissing it", "error", err)

		m.deleteDefinition(ctx, id)
		m.finishOutcome(ctx, e, domain.StateDismissed)

		return err
	}

	m.mu.Lock()
	m.armed[id] = def

	if persistErr != nil {
		m.volatile[id] = struct{}{}
	}

	m.updateGaugesLocked()
	m.mu.Unlock()

	m.finishOutcome(ctx, e, domain.StateSnoozed)

	logger.InfoKV(ctx, "Alarm snoozed", "trigger_at", def.TriggerAt)

	m.emit(ctx, domain.Event{
		Type:      domain.EventSnoozed,
		AlarmID:   id,
		Label:     def.Label,
		State:     domain.StateArmed,
		TriggerAt: def.TriggerAt,
	})

	if persistErr != nil {
		return fmt.Errorf("%w: snoozed alarm %s will not survive a restart: %w",
			domain.ErrPersistence, id, persistErr)
	}

	return nil
}

// Dismiss stops a ringing alarm and deletes its definition. Dismissing an
// alarm that is not ringing, or twice, succeeds without side effects.
func (m *Manager) Dismiss(ctx context.Context, id string) error {
	ctx = logger.WithKV(logger.WithName(ctx, "session-manager"), "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	e, ringing := m.sessions[id]
	m.mu.RUnlock()

	if !ringing {
		return nil
	}

	m.finishLocked(ctx, id, e, domain.StateDismissed)

	return nil
}

// deleteDefinition removes the durable record; failures are logged because a
// leftover record is discarded as stale by the next recovery.
func (m *Manager) deleteDefinition(ctx context.Context, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		metrics.PersistenceErrors.WithLabelValues("delete").Inc()
		logger.ErrorKV(ctx, "Failed to delete alarm record",
			"error", fmt.Errorf("%w: %w", domain.ErrPersistence, err))
	}
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
