package desktop

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// Vibrator substitutes terminal bell pulses for vibration: one bell at the
// start of every "on" segment of the pattern.
type Vibrator struct {
	out io.Writer

	mu     sync.Mutex
	cancel chan struct{}
}

// NewVibrator creates a bell-pulse vibrator writing to out, os.Stdout when nil.
func NewVibrator(out io.Writer) *Vibrator {
	if out == nil {
		out = os.Stdout
	}

	return &Vibrator{out: out}
}

// Vibrate implements host.Vibrator. A new pattern replaces the running one.
func (v *Vibrator) Vibrate(_ context.Context, pattern host.Pattern, repeat bool) error {
	if len(pattern) == 0 {
		return nil
	}

	cancel := make(chan struct{})

	v.mu.Lock()

	if v.cancel != nil {
		close(v.cancel)
	}

	v.cancel = cancel
	v.mu.Unlock()

	go v.pulse(pattern, repeat, cancel)

	return nil
}

// CancelVibration implements host.Vibrator.
func (v *Vibrator) CancelVibration() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		close(v.cancel)
		v.cancel = nil
	}

	return nil
}

func (v *Vibrator) pulse(pattern host.Pattern, repeat bool, cancel <-chan struct{}) {
	for {
		for i, segment := range pattern {
			if i%2 == 0 {
				_, _ = io.WriteString(v.out, "\a")
			}

			timer := time.NewTimer(segment)

			select {
			case <-cancel:
				timer.Stop()

				return
			case <-timer.C:
			}
		}

		if !repeat {
			return
		}
	}
}
