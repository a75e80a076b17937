package alarm

// State is a node of the per-alarm state machine.
type State string

const (
	// StateIdle means no alarm is armed or ringing for the id.
	StateIdle State = "idle"
	// StateArmed means the alarm is persisted and a host wake registration exists.
	StateArmed State = "armed"
	// StateFiring means the fire callback arrived and playback is starting.
	StateFiring State = "firing"
	// StateQueued means the alarm fired while another session holds the exclusive channel.
	StateQueued State = "queued"
	// StatePlaying means at least one playback layer is active (or the firing timeout elapsed).
	StatePlaying State = "playing"
	// StateSnoozed is transient and immediately re-enters StateArmed.
	StateSnoozed State = "snoozed"
	// StateDismissed is terminal and collapses to StateIdle.
	StateDismissed State = "dismissed"
	// StateExpired is terminal, reached when the ring deadline passes, and collapses to StateIdle.
	StateExpired State = "expired"
)

// IsRinging reports whether the state belongs to a live session.
func (s State) IsRinging() bool {
	switch s {
	case StateFiring, StateQueued, StatePlaying:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state ends a session.
func (s State) IsTerminal() bool {
	return s == StateDismissed || s == StateExpired
}

func (s State) String() string {
	return string(s)
}
