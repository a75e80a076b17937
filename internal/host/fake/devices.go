package fake

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/wake-alarm/internal/host"
)

// Volume is a host.Volume double.
type Volume struct {
	mu       sync.Mutex
	settings host.VolumeSettings
	applied  []host.VolumeSettings
}

// NewVolume creates a volume double with the given initial settings.
func NewVolume(initial host.VolumeSettings) *Volume {
	return &Volume{settings: initial}
}

// Current returns the settings.
func (v *Volume) Current(context.Context) (host.VolumeSettings, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.settings, nil
}

// Apply replaces the settings.
func (v *Volume) Apply(_ context.Context, settings host.VolumeSettings) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.settings = settings
	v.applied = append(v.applied, settings)

	return nil
}

// Settings returns the current settings without a context.
func (v *Volume) Settings() host.VolumeSettings {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.settings
}

// Applied returns every Apply call.
func (v *Volume) Applied() []host.VolumeSettings {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.applied)
}

// Vibrator is a host.Vibrator double.
type Vibrator struct {
	mu         sync.Mutex
	vibrating  bool
	calls      int
	cancels    int
	lastRepeat bool
}

// NewVibrator creates a vibrator double.
func NewVibrator() *Vibrator {
	return &Vibrator{}
}

// Vibrate starts the pattern.
func (v *Vibrator) Vibrate(_ context.Context, _ host.Pattern, repeat bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.vibrating = true
	v.calls++
	v.lastRepeat = repeat

	return nil
}

// CancelVibration stops the pattern.
func (v *Vibrator) CancelVibration() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.vibrating = false
	v.cancels++

	return nil
}

// Vibrating reports whether a pattern is running.
func (v *Vibrator) Vibrating() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.vibrating
}

// Calls returns how many times Vibrate was called.
func (v *Vibrator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.calls
}

// Cancels returns how many times CancelVibration was called.
func (v *Vibrator) Cancels() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.cancels
}

// LastRepeat reports the repeat flag of the latest Vibrate call.
func (v *Vibrator) LastRepeat() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.lastRepeat
}

// PowerHold is a host.PowerHold double.
type PowerHold struct {
	mu       sync.Mutex
	acquired int
	held     int
	timeouts []time.Duration
	err      error
}

// NewPowerHold creates a power hold double.
func NewPowerHold() *PowerHold {
	return &PowerHold{}
}

// AcquireHold hands out a lock unless denied.
func (p *PowerHold) AcquireHold(_ context.Context, timeout time.Duration) (host.Lock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	p.acquired++
	p.held++
	p.timeouts = append(p.timeouts, timeout)

	return &powerLock{owner: p}, nil
}

// Deny makes AcquireHold fail with err; nil restores success.
func (p *PowerHold) Deny(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// Held returns how many locks are currently held.
func (p *PowerHold) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.held
}

// Timeouts returns the timeout passed to every AcquireHold call.
func (p *PowerHold) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.timeouts)
}

// Acquired returns how many locks were handed out.
func (p *PowerHold) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.acquired
}

type powerLock struct {
	owner *PowerHold
	once  sync.Once
}

func (l *powerLock) Release() error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		l.owner.held--
		l.owner.mu.Unlock()
	})

	return nil
}

// Presenter is a host.Presenter double.
type Presenter struct {
	mu        sync.Mutex
	presented []host.Surface
	withdrawn []string
}

// NewPresenter creates a presenter double.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Present records the surface.
func (p *Presenter) Present(_ context.Context, surface host.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.presented = append(p.presented, surface)

	return nil
}

// Withdraw records the id.
func (p *Presenter) Withdraw(_ context.Context, alarmID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.withdrawn = append(p.withdrawn, alarmID)

	return nil
}

// Presented returns every surface shown.
func (p *Presenter) Presented() []host.Surface {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.presented)
}

// Withdrawn returns every withdrawn id.
func (p *Presenter) Withdrawn() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.withdrawn)
}
