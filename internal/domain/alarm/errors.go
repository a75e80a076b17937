package alarm

import "errors"

var (
	// ErrInvalidAlarmDefinition is returned for bad input, before any side effect.
	ErrInvalidAlarmDefinition = errors.New("invalid alarm definition")
	// ErrPermissionDenied means the host scheduling capability is unavailable.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupported means the host cannot provide a wake registration at all.
	ErrUnsupported = errors.New("scheduling unsupported")
	// ErrSchedulingFailed means the host refused or failed to arm a wake registration.
	ErrSchedulingFailed = errors.New("scheduling failed")
	// ErrPlaybackLayerFailed marks a recoverable failure of a single layer.
	ErrPlaybackLayerFailed = errors.New("playback layer failed")
	// ErrAllLayersFailed means every layer failed and the degraded signal took over.
	ErrAllLayersFailed = errors.New("all playback layers failed")
	// ErrFocusLost means the exclusive alarm channel was revoked or denied.
	ErrFocusLost = errors.New("alarm channel lost")
	// ErrPersistence means the durable store could not record a change;
	// the alarm lives in memory only until the process restarts.
	ErrPersistence = errors.New("persistence error")
	// ErrAlarmNotFound is returned when no alarm with the id is known.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrInvalidTransition is returned when a command does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)
