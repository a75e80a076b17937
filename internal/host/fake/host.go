package fake

import "github.com/oshokin/wake-alarm/internal/host"

// Host bundles one double for every collaborator.
type Host struct {
	Scheduler *Scheduler
	Audio     *Audio
	Volume    *Volume
	Vibrator  *Vibrator
	Power     *PowerHold
	Presenter *Presenter
}

// New creates a host whose scheduler fires only through Scheduler.Fire.
func New() *Host {
	return &Host{
		Scheduler: NewScheduler(),
		Audio:     NewAudio(),
		Volume:    NewVolume(host.VolumeSettings{Percent: 40}),
		Vibrator:  NewVibrator(),
		Power:     NewPowerHold(),
		Presenter: NewPresenter(),
	}
}

// NewSimulated creates a host whose scheduler fires registrations on time.
func NewSimulated() *Host {
	h := New()
	h.Scheduler = NewAutoScheduler()

	return h
}
