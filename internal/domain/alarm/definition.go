package alarm

import (
	"fmt"
	"strings"
	"time"
)

// SoundProfile selects the preferred sound asset for the primary layer.
type SoundProfile string

const (
	// SoundProfileDefault is the stock wake-up tone.
	SoundProfileDefault SoundProfile = "default"
	// SoundProfileAlert is a louder, harsher tone.
	SoundProfileAlert SoundProfile = "alert"
	// SoundProfileCustom refers to a user supplied asset.
	SoundProfileCustom SoundProfile = "custom"
)

const (
	// DefaultSnoozeDurationMinutes is used when a definition omits the snooze duration.
	DefaultSnoozeDurationMinutes = 5
	// DefaultMaxRingDuration bounds ringing when a definition omits it.
	DefaultMaxRingDuration = 10 * time.Minute
)

// ParseSoundProfile converts user input into a SoundProfile.
func ParseSoundProfile(s string) (SoundProfile, error) {
	switch profile := SoundProfile(strings.ToLower(strings.TrimSpace(s))); profile {
	case "":
		return SoundProfileDefault, nil
	case SoundProfileDefault, SoundProfileAlert, SoundProfileCustom:
		return profile, nil
	default:
		return "", fmt.Errorf("%w: unknown sound profile %q", ErrInvalidAlarmDefinition, s)
	}
}

// Definition is the user's intent to be woken at a precise time.
type Definition struct {
	// ID is the stable identifier, caller-assigned or engine-assigned at creation.
	ID string `json:"id"`
	// TriggerAt is the absolute wake time.
	TriggerAt time.Time `json:"trigger_at"`
	// Label is shown on the visible surface and may be empty.
	Label string `json:"label,omitempty"`
	// SoundProfile picks the primary layer asset.
	SoundProfile SoundProfile `json:"sound_profile"`
	// VibrationEnabled starts a repeating pulse pattern while ringing.
	VibrationEnabled bool `json:"vibration_enabled"`
	// SnoozeDurationMinutes is the default snooze length.
	SnoozeDurationMinutes int `json:"snooze_duration_minutes"`
	// MaxRingDuration is the upper bound after which a ringing session expires.
	MaxRingDuration time.Duration `json:"max_ring_duration"`
	// CreatedAt is when the definition was first accepted.
	CreatedAt time.Time `json:"created_at"`
}

// ApplyDefaults fills optional fields with their defaults.
func (d *Definition) ApplyDefaults() {
	d.Label = strings.TrimSpace(d.Label)

	if d.SoundProfile == "" {
		d.SoundProfile = SoundProfileDefault
	}

	if d.SnoozeDurationMinutes == 0 {
		d.SnoozeDurationMinutes = DefaultSnoozeDurationMinutes
	}

	if d.MaxRingDuration == 0 {
		d.MaxRingDuration = DefaultMaxRingDuration
	}
}

// Validate checks the definition against the acceptance rules at the given instant.
func (d *Definition) Validate(now time.Time) error {
	if d == nil {
		return fmt.Errorf("%w: definition is required", ErrInvalidAlarmDefinition)
	}

	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAlarmDefinition)
	}

	if d.TriggerAt.IsZero() || !d.TriggerAt.After(now) {
		return fmt.Errorf("%w: trigger time %s is not in the future",
			ErrInvalidAlarmDefinition, d.TriggerAt.Format(time.RFC3339))
	}

	if _, err := ParseSoundProfile(string(d.SoundProfile)); err != nil {
		return err
	}

	if d.SnoozeDurationMinutes <= 0 {
		return fmt.Errorf("%w: snooze duration must be positive", ErrInvalidAlarmDefinition)
	}

	if d.MaxRingDuration <= 0 {
		return fmt.Errorf("%w: max ring duration must be positive", ErrInvalidAlarmDefinition)
	}

	return nil
}

// Clone returns a copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	cloned := *d

	return &cloned
}

// SnoozeDuration returns the snooze length, honoring an optional override in minutes.
func (d *Definition) SnoozeDuration(minutesOverride int) time.Duration {
	minutes := d.SnoozeDurationMinutes
	if minutesOverride > 0 {
		minutes = minutesOverride
	}

	return time.Duration(minutes) * time.Minute
}
