package alarm

import "time"

// EventType names a lifecycle transition.
type EventType string

const (
	EventScheduled EventType = "scheduled"
	EventCancelled EventType = "cancelled"
	EventFired     EventType = "fired"
	EventQueued    EventType = "queued"
	EventPlaying   EventType = "playing"
	EventDegraded  EventType = "degraded"
	EventSnoozed   EventType = "snoozed"
	EventDismissed EventType = "dismissed"
	EventExpired   EventType = "expired"
)

// Event is emitted by the session manager after each transition.
type Event struct {
	// Type is the transition that happened.
	Type EventType `json:"type"`
	// AlarmID identifies the alarm.
	AlarmID string `json:"alarm_id"`
	// Label is the alarm's display string.
	Label string `json:"label,omitempty"`
	// State is the alarm state after the transition.
	State State `json:"state"`
	// TriggerAt is the next wake time for scheduled and snoozed events.
	TriggerAt time.Time `json:"trigger_at,omitzero"`
	// Degraded reports that the session runs on the primitive signal.
	Degraded bool `json:"degraded,omitempty"`
	// OccurredAt is when the transition happened.
	OccurredAt time.Time `json:"occurred_at"`
}
