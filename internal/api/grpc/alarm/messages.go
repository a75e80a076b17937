package alarm

import (
	"time"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

// Alarm is the wire form of an alarm definition.
type Alarm struct {
	ID                    string    `json:"id,omitempty"`
	TriggerAt             time.Time `json:"trigger_at"`
	Label                 string    `json:"label,omitempty"`
	SoundProfile          string    `json:"sound_profile,omitempty"`
	VibrationEnabled      bool      `json:"vibration_enabled"`
	SnoozeDurationMinutes int       `json:"snooze_duration_minutes,omitempty"`
	// MaxRingDurationMs is the auto-expiry bound in milliseconds.
	MaxRingDurationMs int64 `json:"max_ring_duration_ms,omitempty"`
	// Volatile is set on alarms that failed to persist and will not survive a restart.
	Volatile bool `json:"volatile,omitempty"`
}

// Session is the wire form of a ringing session.
type Session struct {
	AlarmID      string            `json:"alarm_id"`
	Label        string            `json:"label,omitempty"`
	State        string            `json:"state"`
	FiredAt      time.Time         `json:"fired_at"`
	StartedAt    time.Time         `json:"started_at,omitzero"`
	DeadlineAt   time.Time         `json:"deadline_at,omitzero"`
	LayerStatus  map[string]string `json:"layer_status"`
	FocusHeld    bool              `json:"focus_held"`
	WakeLockHeld bool              `json:"wake_lock_held"`
	Degraded     bool              `json:"degraded"`
}

// Outcome is a finished session.
type Outcome struct {
	AlarmID  string    `json:"alarm_id"`
	State    string    `json:"state"`
	EndedAt  time.Time `json:"ended_at"`
	Degraded bool      `json:"degraded"`
}

type ScheduleRequest struct {
	Alarm Alarm `json:"alarm"`
}

type ScheduleResponse struct {
	ID        string    `json:"id"`
	TriggerAt time.Time `json:"trigger_at"`
	// Volatile reports that the alarm is armed but could not be persisted.
	Volatile bool `json:"volatile,omitempty"`
	// ReducedReliability reports that the host only granted an inexact timer.
	ReducedReliability bool `json:"reduced_reliability,omitempty"`
}

type CancelRequest struct {
	ID string `json:"id"`
}

type CancelResponse struct{}

type SnoozeRequest struct {
	ID string `json:"id"`
	// Minutes overrides the alarm's snooze duration when positive.
	Minutes int `json:"minutes,omitempty"`
}

type SnoozeResponse struct {
	ID        string    `json:"id"`
	TriggerAt time.Time `json:"trigger_at"`
	Volatile  bool      `json:"volatile,omitempty"`
}

type DismissRequest struct {
	ID string `json:"id"`
}

type DismissResponse struct{}

type GetStatusRequest struct {
	ID string `json:"id"`
}

type GetStatusResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type GetActiveSessionRequest struct{}

type GetActiveSessionResponse struct {
	// Session is nil when nothing is ringing.
	Session *Session `json:"session,omitempty"`
	// Waiting lists every other live session in fire order.
	Waiting []Session `json:"waiting,omitempty"`
}

type ListRequest struct{}

type ListResponse struct {
	Alarms []Alarm `json:"alarms"`
}

type HistoryRequest struct{}

type HistoryResponse struct {
	Outcomes []Outcome `json:"outcomes"`
}

type WatchSurfaceRequest struct{}

// SurfaceEvent is one lifecycle event pushed to presentation clients.
type SurfaceEvent struct {
	Type       string    `json:"type"`
	AlarmID    string    `json:"alarm_id"`
	Label      string    `json:"label,omitempty"`
	State      string    `json:"state"`
	TriggerAt  time.Time `json:"trigger_at,omitzero"`
	Degraded   bool      `json:"degraded,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	// Snapshot marks the events describing sessions that were live when the watch started.
	Snapshot bool `json:"snapshot,omitempty"`
}

// ToDefinition converts the wire form into a domain definition.
func (a Alarm) ToDefinition() (*domain.Definition, error) {
	profile, err := domain.ParseSoundProfile(a.SoundProfile)
	if err != nil {
		return nil, err
	}

	return &domain.Definition{
		ID:                    a.ID,
		TriggerAt:             a.TriggerAt,
		Label:                 a.Label,
		SoundProfile:          profile,
		VibrationEnabled:      a.VibrationEnabled,
		SnoozeDurationMinutes: a.SnoozeDurationMinutes,
		MaxRingDuration:       time.Duration(a.MaxRingDurationMs) * time.Millisecond,
	}, nil
}

// FromDefinition converts a domain definition into its wire form.
func FromDefinition(def *domain.Definition) Alarm {
	return Alarm{
		ID:                    def.ID,
		TriggerAt:             def.TriggerAt,
		Label:                 def.Label,
		SoundProfile:          string(def.SoundProfile),
		VibrationEnabled:      def.VibrationEnabled,
		SnoozeDurationMinutes: def.SnoozeDurationMinutes,
		MaxRingDurationMs:     def.MaxRingDuration.Milliseconds(),
	}
}

// FromSession converts a domain session into its wire form.
func FromSession(session *domain.Session) Session {
	layers := make(map[string]string, len(session.LayerStatus))
	for name, status := range session.LayerStatus {
		layers[string(name)] = string(status)
	}

	return Session{
		AlarmID:      session.AlarmID,
		Label:        session.Label,
		State:        string(session.State),
		FiredAt:      session.FiredAt,
		StartedAt:    session.StartedAt,
		DeadlineAt:   session.DeadlineAt,
		LayerStatus:  layers,
		FocusHeld:    session.FocusHeld,
		WakeLockHeld: session.WakeLockHeld,
		Degraded:     session.Degraded,
	}
}

// FromEvent converts a lifecycle event into a surface event.
func FromEvent(event domain.Event) *SurfaceEvent {
	return &SurfaceEvent{
		Type:       string(event.Type),
		AlarmID:    event.AlarmID,
		Label:      event.Label,
		State:      string(event.State),
		TriggerAt:  event.TriggerAt,
		Degraded:   event.Degraded,
		OccurredAt: event.OccurredAt,
	}
}
