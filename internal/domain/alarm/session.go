package alarm

import (
	"maps"
	"time"
)

// LayerStatus is the observed outcome of one playback layer.
type LayerStatus string

const (
	// LayerNotStarted means the layer has not been attempted yet.
	LayerNotStarted LayerStatus = "not_started"
	// LayerActive means the layer is producing sound.
	LayerActive LayerStatus = "active"
	// LayerFailed means the layer could not start or stopped on its own.
	LayerFailed LayerStatus = "failed"
)

// Session is the runtime record of a firing or playing alarm.
type Session struct {
	// AlarmID links the session to its definition.
	AlarmID string `json:"alarm_id"`
	// Label is copied from the definition for the visible surface.
	Label string `json:"label,omitempty"`
	// FiredAt is when the fire callback was accepted.
	FiredAt time.Time `json:"fired_at"`
	// StartedAt is when playback began; zero while queued.
	StartedAt time.Time `json:"started_at"`
	// DeadlineAt is StartedAt plus the definition's max ring duration.
	DeadlineAt time.Time `json:"deadline_at"`
	// State is the current state machine node.
	State State `json:"state"`
	// LayerStatus tracks each playback layer by name.
	LayerStatus map[LayerName]LayerStatus `json:"layer_status"`
	// FocusHeld reports whether the exclusive alarm channel is owned.
	FocusHeld bool `json:"focus_held"`
	// WakeLockHeld reports whether the CPU hold is owned.
	WakeLockHeld bool `json:"wake_lock_held"`
	// Degraded is set once every layer failed and the primitive signal took over.
	Degraded bool `json:"degraded"`
}

// NewSession creates a session in StateFiring with every layer not started.
func NewSession(def *Definition, firedAt time.Time) *Session {
	status := make(map[LayerName]LayerStatus, len(LayerNames))
	for _, name := range LayerNames {
		status[name] = LayerNotStarted
	}

	return &Session{
		AlarmID:     def.ID,
		Label:       def.Label,
		FiredAt:     firedAt,
		State:       StateFiring,
		LayerStatus: status,
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.LayerStatus = maps.Clone(s.LayerStatus)

	return &cloned
}

// Outcome records how a finished session ended.
type Outcome struct {
	// AlarmID identifies the finished alarm.
	AlarmID string `json:"alarm_id"`
	// State is the terminal (or snoozed) state the session left through.
	State State `json:"state"`
	// EndedAt is when the session was torn down.
	EndedAt time.Time `json:"ended_at"`
	// Degraded reports whether the session ran on the primitive signal.
	Degraded bool `json:"degraded"`
}
