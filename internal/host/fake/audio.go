package fake

import (
	"context"
	"sync"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
)

// PlayFunc decides whether a PlayLooping call fails. attempt counts calls from 1.
type PlayFunc func(source domain.Source, attempt int) error

// Audio is a host.Audio double.
type Audio struct {
	mu sync.Mutex
	// channelErr is returned by AcquireAlarmChannel when set.
	channelErr error
	// playFunc scripts PlayLooping failures.
	playFunc PlayFunc
	// channels and handles keep everything handed out.
	channels []*Channel
	handles  []*Handle
	// plays records every source requested.
	plays []domain.Source
}

// NewAudio creates an audio double where everything succeeds.
func NewAudio() *Audio {
	return &Audio{}
}

// AcquireAlarmChannel hands out a new channel unless denied.
func (a *Audio) AcquireAlarmChannel(_ context.Context) (host.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.channelErr != nil {
		return nil, a.channelErr
	}

	channel := &Channel{revoked: make(chan struct{})}
	a.channels = append(a.channels, channel)

	return channel, nil
}

// PlayLooping starts a fake playback unless the script fails it.
func (a *Audio) PlayLooping(_ context.Context, source domain.Source) (host.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.plays = append(a.plays, source)

	if a.playFunc != nil {
		if err := a.playFunc(source, len(a.plays)); err != nil {
			return nil, err
		}
	}

	handle := &Handle{
		Source: source,
		failed: make(chan error, 1),
	}
	a.handles = append(a.handles, handle)

	return handle, nil
}

// DenyChannel makes AcquireAlarmChannel fail with err; nil restores success.
func (a *Audio) DenyChannel(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.channelErr = err
}

// SetPlayFunc scripts PlayLooping.
func (a *Audio) SetPlayFunc(fn PlayFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.playFunc = fn
}

// Plays returns every source requested so far.
func (a *Audio) Plays() []domain.Source {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]domain.Source(nil), a.plays...)
}

// Handles returns every handle handed out so far.
func (a *Audio) Handles() []*Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]*Handle(nil), a.handles...)
}

// Channels returns every channel handed out so far.
func (a *Audio) Channels() []*Channel {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]*Channel(nil), a.channels...)
}

// ActiveHandles counts handles that were not stopped.
func (a *Audio) ActiveHandles() int {
	count := 0

	for _, handle := range a.Handles() {
		if !handle.Stopped() {
			count++
		}
	}

	return count
}

// HeldChannels counts channels that were neither released nor revoked.
func (a *Audio) HeldChannels() int {
	count := 0

	for _, channel := range a.Channels() {
		if channel.Held() {
			count++
		}
	}

	return count
}

// Channel is a host.Channel double.
type Channel struct {
	mu       sync.Mutex
	revoked  chan struct{}
	released bool
	lost     bool
}

// Revoked is closed by Revoke.
func (c *Channel) Revoked() <-chan struct{} {
	return c.revoked
}

// Release marks the channel released.
func (c *Channel) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.released = true

	return nil
}

// Revoke simulates the host taking the channel away.
func (c *Channel) Revoke() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lost {
		c.lost = true
		close(c.revoked)
	}
}

// Held reports whether the channel is still owned.
func (c *Channel) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.released && !c.lost
}

// Handle is a host.Handle double.
type Handle struct {
	// Source is what the handle plays.
	Source domain.Source

	mu      sync.Mutex
	failed  chan error
	stopped bool
}

// Failed delivers the error passed to Fail.
func (h *Handle) Failed() <-chan error {
	return h.failed
}

// Stop marks the handle stopped.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true

	return nil
}

// Fail simulates playback dying on its own.
func (h *Handle) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.stopped {
		h.stopped = true
		h.failed <- err
	}
}

// Stopped reports whether the handle was stopped or failed.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stopped
}
