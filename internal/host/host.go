package host

import (
	"context"
	"errors"
	"time"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

var (
	// ErrDenied is returned by a collaborator that refuses the request (missing permission).
	ErrDenied = errors.New("host denied request")
	// ErrUnsupported is returned when the capability does not exist on this host.
	ErrUnsupported = errors.New("host capability unsupported")
)

// Reliability is the timer class a wake registration landed in.
type Reliability string

const (
	// ReliabilityPrecise survives idle and power-save suspension.
	ReliabilityPrecise Reliability = "precise"
	// ReliabilityInexact may be deferred by the host's power policy.
	ReliabilityInexact Reliability = "inexact"
)

// FireHandler receives wake callbacks. Delivery is at-least-once and may be late.
type FireHandler func(id string)

// Scheduler registers absolute-time wake callbacks with the host.
type Scheduler interface {
	// ArmWake registers or replaces the registration for id.
	ArmWake(ctx context.Context, id string, at time.Time) (Reliability, error)
	// DisarmWake removes any pending registration; missing ones are not an error.
	DisarmWake(ctx context.Context, id string) error
	// SetFireHandler installs the callback for fired registrations.
	SetFireHandler(handler FireHandler)
}

// Channel is exclusive ownership of the audio output reserved for alarms.
type Channel interface {
	// Revoked is closed when the host takes the channel away.
	Revoked() <-chan struct{}
	// Release gives the channel back; releasing twice is not an error.
	Release() error
}

// Handle controls one looping playback.
type Handle interface {
	// Failed delivers an error if playback stops on its own.
	Failed() <-chan error
	// Stop halts playback; stopping twice is not an error.
	Stop() error
}

// Audio is the host audio collaborator.
type Audio interface {
	AcquireAlarmChannel(ctx context.Context) (Channel, error)
	PlayLooping(ctx context.Context, source domain.Source) (Handle, error)
}

// VolumeSettings is the host state the orchestrator overrides while ringing.
type VolumeSettings struct {
	// Percent is the alarm stream volume, 0 to 100.
	Percent int
	// Muted reports whether output is muted.
	Muted bool
}

// Volume reads and writes host volume settings.
type Volume interface {
	Current(ctx context.Context) (VolumeSettings, error)
	Apply(ctx context.Context, settings VolumeSettings) error
}

// Pattern is an alternating on/off vibration timing sequence.
type Pattern []time.Duration

// Vibrator drives the tactile signal.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern Pattern, repeat bool) error
	CancelVibration() error
}

// Lock is a held CPU wake lock.
type Lock interface {
	Release() error
}

// PowerHold keeps the device from suspending execution.
type PowerHold interface {
	AcquireHold(ctx context.Context, timeout time.Duration) (Lock, error)
}

// Surface is the request to bring a full-attention visible surface forward.
type Surface struct {
	// AlarmID identifies the ringing alarm.
	AlarmID string `json:"alarm_id"`
	// Label is the text to show.
	Label string `json:"label,omitempty"`
	// Degraded asks the surface to explain that sound playback failed.
	Degraded bool `json:"degraded,omitempty"`
}

// Presenter shows and hides the visible surface.
type Presenter interface {
	Present(ctx context.Context, surface Surface) error
	Withdraw(ctx context.Context, alarmID string) error
}
