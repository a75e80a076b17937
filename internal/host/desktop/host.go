package desktop

import (
	"context"
	"io"
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// Config selects the desktop collaborators' behavior.
type Config struct {
	// Reliability is the timer class of wake registrations.
	Reliability host.Reliability
	// MaxCheckInterval bounds the wall-clock re-check period of precise registrations.
	MaxCheckInterval time.Duration
	// SoundCommands maps sound profiles to player argv.
	SoundCommands map[string][]string
	// SystemToneCommand plays the host alert tone; empty rings the terminal bell.
	SystemToneCommand []string
	// AppName is shown on notifications.
	AppName string
	// Bell receives bell characters; os.Stdout when nil.
	Bell io.Writer
}

// Host bundles the desktop collaborators. The CPU hold lives in the power service.
type Host struct {
	Scheduler *Scheduler
	Audio     *Audio
	Volume    *Volume
	Vibrator  *Vibrator
	Presenter *Presenter
}

// New creates the desktop host.
func New(ctx context.Context, cfg Config) *Host {
	return &Host{
		Scheduler: NewScheduler(cfg.Reliability, cfg.MaxCheckInterval),
		Audio: NewAudio(AudioConfig{
			SoundCommands:     cfg.SoundCommands,
			SystemToneCommand: cfg.SystemToneCommand,
			Bell:              cfg.Bell,
		}),
		Volume:    NewVolume(),
		Vibrator:  NewVibrator(cfg.Bell),
		Presenter: NewPresenter(ctx, cfg.AppName),
	}
}

// Close drops pending wake registrations.
func (h *Host) Close() {
	h.Scheduler.Close()
}
