package session

import (
	"context"
	"slices"
	"time"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
	"github.com/oshokin/wake-alarm/internal/service/playback"
)

// OnFire handles a host fire callback. Delivery is at-least-once, so
// callbacks for ringing, finished or unknown alarms are ignored. A callback
// that arrives before the trigger time re-arms the alarm.
func (m *Manager) OnFire(id string) {
	ctx := logger.WithKV(m.ctx, "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	now := time.Now()

	m.mu.RLock()
	_, ringing := m.sessions[id]
	def, armed := m.armed[id]
	m.mu.RUnlock()

	if ringing {
		metrics.FiresReceived.WithLabelValues("duplicate").Inc()
		logger.DebugKV(ctx, "Ignoring duplicate fire callback")

		return
	}

	if !armed {
		stored, err := m.store.Load(ctx, id)
		if err != nil {
			metrics.FiresReceived.WithLabelValues("unknown").Inc()
			logger.DebugKV(ctx, "Ignoring fire callback for an alarm that is not armed", "error", err)

			return
		}

		def = stored
	}

	if now.Before(def.TriggerAt) {
		metrics.FiresReceived.WithLabelValues("early").Inc()
		logger.WarnKV(ctx, "Fire callback before the trigger time, re-arming",
			"trigger_at", def.TriggerAt)

		m.rearmEarly(ctx, id, def.TriggerAt)

		return
	}

	e := &entry{
		def:     def.Clone(),
		session: domain.NewSession(def, now),
	}

	m.mu.Lock()
	delete(m.armed, id)
	delete(m.volatile, id)
	m.sessions[id] = e
	start, victim := m.claimSlotLocked(id, e)
	m.updateGaugesLocked()
	m.mu.Unlock()

	metrics.FiresReceived.WithLabelValues("accepted").Inc()
	logger.InfoKV(ctx, "Alarm fired", "late_by", now.Sub(def.TriggerAt))

	m.emit(ctx, domain.Event{
		Type:    domain.EventFired,
		AlarmID: id,
		Label:   def.Label,
		State:   domain.StateFiring,
	})

	m.present(ctx, e.session, false)

	// The victim restores volume and cancels vibration on teardown, so it has
	// to be gone before the new playback reads or sets either. Lock order is
	// always the newer id first: a victim is never waiting on a newer fire.
	if victim != "" {
		m.suspend(victim)
	}

	if start {
		m.startPlaybackLocked(ctx, id, e)
	} else {
		logger.InfoKV(ctx, "Another alarm is playing, queueing")

		m.emit(ctx, domain.Event{
			Type:    domain.EventQueued,
			AlarmID: id,
			Label:   def.Label,
			State:   domain.StateQueued,
		})
	}
}

// rearmEarly restores the host registration an early callback consumed. When
// the host refuses, an in-process timer delivers the fire instead.
func (m *Manager) rearmEarly(ctx context.Context, id string, at time.Time) {
	err := m.scheduler.Arm(ctx, id, at)
	if err == nil {
		return
	}

	logger.ErrorKV(ctx, "Failed to re-arm after an early fire, using an in-process timer",
		"trigger_at", at,
		"error", err)

	time.AfterFunc(time.Until(at), func() {
		m.OnFire(id)
	})
}

// claimSlotLocked decides whether the new session may play now. Under the
// preempt policy it also returns the session that has to give the slot up.
func (m *Manager) claimSlotLocked(id string, e *entry) (bool, string) {
	switch {
	case m.playing == "" && len(m.queue) == 0:
		m.playing = id

		return true, ""
	case m.cfg.Policy == PolicyPreempt && m.playing != "":
		victim := m.playing
		m.playing = id
		m.queue = slices.Insert(m.queue, 0, victim)

		return true, victim
	default:
		m.queue = append(m.queue, id)
		e.session.State = domain.StateQueued

		return false, ""
	}
}

// startPlaybackLocked starts playback for a session that owns the slot.
// The caller holds the id lock.
func (m *Manager) startPlaybackLocked(ctx context.Context, id string, e *entry) {
	now := time.Now()

	m.mu.Lock()
	e.session.State = domain.StateFiring

	armExpiry := e.session.StartedAt.IsZero()
	if armExpiry {
		e.session.StartedAt = now
		e.session.DeadlineAt = now.Add(e.def.MaxRingDuration)
	}

	deadline := e.session.DeadlineAt
	m.mu.Unlock()

	if armExpiry {
		e.expiryTimer = time.AfterFunc(time.Until(deadline), func() {
			m.expire(id, e)
		})
	}

	e.playback = m.player.Start(m.ctx, playback.Request{
		AlarmID: id,
		Profile: e.def.SoundProfile,
		Vibrate: e.def.VibrationEnabled,
	}, m)

	e.firingTimer = time.AfterFunc(m.cfg.FiringTimeout, func() {
		m.firingTimedOut(id, e)
	})

	m.refreshLocked(ctx, id, e)
}

// PlaybackChanged implements playback.Listener.
func (m *Manager) PlaybackChanged(alarmID string) {
	go func() {
		unlock := m.locks.Lock(alarmID)
		defer unlock()

		m.mu.RLock()
		e, ok := m.sessions[alarmID]
		m.mu.RUnlock()

		if ok {
			m.refreshLocked(logger.WithKV(m.ctx, "alarm_id", alarmID), alarmID, e)
		}
	}()
}

// PlaybackDegraded implements playback.Listener.
func (m *Manager) PlaybackDegraded(alarmID string, err error) {
	go func() {
		ctx := logger.WithKV(m.ctx, "alarm_id", alarmID)

		unlock := m.locks.Lock(alarmID)
		defer unlock()

		m.mu.Lock()

		e, ok := m.sessions[alarmID]
		if ok {
			e.session.Degraded = true
		}

		var snapshot *domain.Session
		if ok {
			snapshot = e.session.Clone()
		}

		m.mu.Unlock()

		if !ok {
			return
		}

		logger.ErrorKV(ctx, "Session entered degraded-signal mode", "error", err)

		m.emit(ctx, domain.Event{
			Type:     domain.EventDegraded,
			AlarmID:  alarmID,
			Label:    snapshot.Label,
			State:    snapshot.State,
			Degraded: true,
		})

		m.present(ctx, snapshot, true)
	}()
}

// refreshLocked copies the playback snapshot into the session and advances
// Firing to Playing once a layer is active. The caller holds the id lock.
func (m *Manager) refreshLocked(ctx context.Context, id string, e *entry) {
	if e.playback == nil {
		return
	}

	snapshot := e.playback.Snapshot()

	m.mu.Lock()

	if m.sessions[id] != e {
		m.mu.Unlock()

		return
	}

	e.session.LayerStatus = snapshot.LayerStatus
	e.session.FocusHeld = snapshot.FocusHeld
	e.session.WakeLockHeld = snapshot.WakeLockHeld
	e.session.Degraded = e.session.Degraded || snapshot.Degraded

	advance := e.session.State == domain.StateFiring && snapshot.AnyLayerActive()
	if advance {
		e.session.State = domain.StatePlaying
	}

	label := e.session.Label
	m.mu.Unlock()

	if advance {
		m.markPlaying(ctx, e, label)
	}
}

// firingTimedOut forces Firing to Playing when no layer confirmed in time.
func (m *Manager) firingTimedOut(id string, e *entry) {
	ctx := logger.WithKV(m.ctx, "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.Lock()

	if m.sessions[id] != e || e.session.State != domain.StateFiring {
		m.mu.Unlock()

		return
	}

	e.session.State = domain.StatePlaying
	label := e.session.Label
	m.mu.Unlock()

	logger.WarnKV(ctx, "No playback layer confirmed in time, session considered playing",
		"firing_timeout", m.cfg.FiringTimeout)

	m.markPlaying(ctx, e, label)
}

func (m *Manager) markPlaying(ctx context.Context, e *entry, label string) {
	if e.firingTimer != nil {
		e.firingTimer.Stop()
	}

	logger.InfoKV(ctx, "Alarm playing")

	m.emit(ctx, domain.Event{
		Type:    domain.EventPlaying,
		AlarmID: e.def.ID,
		Label:   label,
		State:   domain.StatePlaying,
	})
}

// expire is the ring-deadline watchdog: it ends the session as dismiss would.
func (m *Manager) expire(id string, e *entry) {
	ctx := logger.WithKV(m.ctx, "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	current := m.sessions[id]
	m.mu.RUnlock()

	if current != e {
		return
	}

	logger.WarnKV(ctx, "Ring deadline reached, expiring alarm",
		"max_ring_duration", e.def.MaxRingDuration)

	m.finishLocked(ctx, id, e, domain.StateExpired)
}

// suspend stops the playback of a pre-empted session and leaves it queued.
func (m *Manager) suspend(id string) {
	ctx := logger.WithKV(m.ctx, "alarm_id", id)

	unlock := m.locks.Lock(id)
	defer unlock()

	m.mu.RLock()
	e, ok := m.sessions[id]
	owner := m.playing == id
	m.mu.RUnlock()

	if !ok || owner {
		return
	}

	if e.firingTimer != nil {
		e.firingTimer.Stop()
	}

	if e.playback != nil {
		if err := e.playback.Stop(); err != nil {
			logger.WarnKV(ctx, "Pre-empted playback stopped with errors", "error", err)
		}

		e.playback = nil
	}

	m.mu.Lock()
	e.session.State = domain.StateQueued
	e.session.FocusHeld = false
	e.session.WakeLockHeld = false

	for name := range e.session.LayerStatus {
		e.session.LayerStatus[name] = domain.LayerNotStarted
	}

	label := e.session.Label
	m.mu.Unlock()

	logger.InfoKV(ctx, "Alarm pre-empted by a newer one, queued")

	m.emit(ctx, domain.Event{
		Type:    domain.EventQueued,
		AlarmID: id,
		Label:   label,
		State:   domain.StateQueued,
	})
}

// rebalance hands the free playback slot to the next queued session.
// It is always started on its own goroutine; id-lock holders never wait for it.
func (m *Manager) rebalance() {
	m.rebalanceMu.Lock()
	defer m.rebalanceMu.Unlock()

	for {
		m.mu.Lock()

		if m.closed || m.playing != "" || len(m.queue) == 0 {
			m.mu.Unlock()

			return
		}

		next := m.queue[0]
		m.queue = m.queue[1:]

		e, ok := m.sessions[next]
		if ok {
			m.playing = next
		}

		m.mu.Unlock()

		if !ok {
			continue
		}

		unlock := m.locks.Lock(next)

		m.mu.RLock()
		valid := !m.closed && m.sessions[next] == e && m.playing == next
		m.mu.RUnlock()

		if valid {
			m.startPlaybackLocked(logger.WithKV(m.ctx, "alarm_id", next), next, e)
		}

		unlock()

		if valid {
			return
		}
	}
}

// stopSession tears down the runtime side of a session and frees its slot.
// Every step runs regardless of earlier failures.
func (m *Manager) stopSession(ctx context.Context, id string, e *entry, final domain.State) {
	stopTimers(e)

	if e.playback != nil {
		if err := e.playback.Stop(); err != nil {
			logger.WarnKV(ctx, "Playback teardown reported errors", "error", err)
		}
	}

	if m.presenter != nil {
		if err := m.presenter.Withdraw(ctx, id); err != nil {
			logger.WarnKV(ctx, "Failed to withdraw alarm surface", "error", err)
		}
	}

	m.mu.Lock()

	if m.sessions[id] == e {
		delete(m.sessions, id)
	}

	e.session.State = final
	e.session.FocusHeld = false
	e.session.WakeLockHeld = false
	m.queue = slices.DeleteFunc(m.queue, func(queued string) bool { return queued == id })

	released := m.playing == id
	if released {
		m.playing = ""
	}

	m.updateGaugesLocked()
	m.mu.Unlock()

	if released {
		go m.rebalance()
	}
}

// finishLocked ends a session for good: dismissed or expired.
func (m *Manager) finishLocked(ctx context.Context, id string, e *entry, final domain.State) {
	m.stopSession(ctx, id, e, final)
	m.deleteDefinition(ctx, id)
	m.finishOutcome(ctx, e, final)

	logger.InfoKV(ctx, "Alarm session finished", "outcome", final)
}

// finishOutcome records the outcome of a stopped session.
func (m *Manager) finishOutcome(ctx context.Context, e *entry, final domain.State) {
	now := time.Now()

	m.mu.RLock()
	startedAt := e.session.StartedAt
	degraded := e.session.Degraded
	label := e.session.Label
	m.mu.RUnlock()

	m.recordOutcome(domain.Outcome{
		AlarmID:  e.def.ID,
		State:    final,
		EndedAt:  now,
		Degraded: degraded,
	})

	metrics.SessionOutcomes.WithLabelValues(string(final)).Inc()

	if !startedAt.IsZero() {
		metrics.RingDuration.Observe(now.Sub(startedAt).Seconds())
	}

	var eventType domain.EventType

	switch final {
	case domain.StateDismissed:
		eventType = domain.EventDismissed
	case domain.StateExpired:
		eventType = domain.EventExpired
	default:
		return
	}

	m.emit(ctx, domain.Event{
		Type:     eventType,
		AlarmID:  e.def.ID,
		Label:    label,
		State:    domain.StateIdle,
		Degraded: degraded,
	})
}

func (m *Manager) present(ctx context.Context, session *domain.Session, degraded bool) {
	if m.presenter == nil {
		return
	}

	err := m.presenter.Present(ctx, host.Surface{
		AlarmID:  session.AlarmID,
		Label:    session.Label,
		Degraded: degraded,
	})
	if err != nil {
		logger.WarnKV(ctx, "Failed to present alarm surface", "error", err)
	}
}

func (m *Manager) updateGaugesLocked() {
	metrics.ArmedAlarms.Set(float64(len(m.armed)))
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

func stopTimers(e *entry) {
	if e.firingTimer != nil {
		e.firingTimer.Stop()
	}

	if e.expiryTimer != nil {
		e.expiryTimer.Stop()
	}
}
