package playback

import (
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// Default timing used when configuration leaves a value unset.
const (
	DefaultBackupDelay           = 750 * time.Millisecond
	DefaultFallbackDelay         = 1500 * time.Millisecond
	DefaultHoldCeiling           = 10 * time.Minute
	DefaultDegradedRetryInterval = 5 * time.Second
	DefaultChannelRetryInterval  = 250 * time.Millisecond
	DefaultVolumePercent         = 100
)

// DefaultVibrationPattern pulses 800ms on and 400ms off.
//
//nolint:gochecknoglobals // Read-only default shared by config and tests.
var DefaultVibrationPattern = host.Pattern{800 * time.Millisecond, 400 * time.Millisecond}

// Config tunes the orchestrator.
type Config struct {
	// BackupDelay staggers the backup layer after the primary.
	BackupDelay time.Duration
	// FallbackDelay staggers the system-fallback layer after the primary.
	FallbackDelay time.Duration
	// HoldCeiling bounds how long the CPU hold may be kept.
	HoldCeiling time.Duration
	// DegradedRetryInterval is the pause between fallback retries once all layers failed.
	DegradedRetryInterval time.Duration
	// ChannelRetryInterval is the pause between failed channel re-acquisitions.
	ChannelRetryInterval time.Duration
	// VibrationPattern is the repeating pulse pattern.
	VibrationPattern host.Pattern
	// OverrideVolume raises and unmutes the host volume while ringing.
	OverrideVolume bool
	// VolumePercent is the volume applied when OverrideVolume is set.
	VolumePercent int
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.BackupDelay <= 0 {
		c.BackupDelay = DefaultBackupDelay
	}

	if c.FallbackDelay <= 0 {
		c.FallbackDelay = DefaultFallbackDelay
	}

	if c.HoldCeiling <= 0 {
		c.HoldCeiling = DefaultHoldCeiling
	}

	if c.DegradedRetryInterval <= 0 {
		c.DegradedRetryInterval = DefaultDegradedRetryInterval
	}

	if c.ChannelRetryInterval <= 0 {
		c.ChannelRetryInterval = DefaultChannelRetryInterval
	}

	if len(c.VibrationPattern) == 0 {
		c.VibrationPattern = DefaultVibrationPattern
	}

	if c.VolumePercent <= 0 || c.VolumePercent > 100 {
		c.VolumePercent = DefaultVolumePercent
	}

	return c
}
