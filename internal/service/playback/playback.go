package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
)

// errPlaybackEnded is reported when a layer's Failed channel closes without an error.
var errPlaybackEnded = errors.New("playback ended unexpectedly")

// Playback is one running wake signal.
type Playback struct {
	cfg      Config
	devices  Devices
	req      Request
	listener Listener

	// baseCtx carries the logger and outlives Stop; ctx is cancelled by Stop.
	baseCtx context.Context //nolint:containedctx // Playback is a long-lived task scoped to its session.
	ctx     context.Context //nolint:containedctx // Same as baseCtx.
	cancel  context.CancelFunc

	mu          sync.Mutex
	stopped     bool
	status      map[domain.LayerName]domain.LayerStatus
	handles     map[domain.LayerName]host.Handle
	channel     host.Channel
	hold        host.Lock
	savedVolume *host.VolumeSettings
	vibrating   bool
	degraded    bool
	retrying    bool
	timers      []*time.Timer
}

// Snapshot returns the current resource state.
func (p *Playback) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		LayerStatus:  cloneStatus(p.status),
		FocusHeld:    p.channel != nil,
		WakeLockHeld: p.hold != nil,
		Degraded:     p.degraded,
	}
}

// Stop halts every layer and releases every resource. Each step runs even if
// an earlier one failed; calling Stop again is a no-op.
func (p *Playback) Stop() error {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()

		return nil
	}

	p.stopped = true

	var (
		timers    = p.timers
		handles   = p.handles
		channel   = p.channel
		hold      = p.hold
		saved     = p.savedVolume
		vibrating = p.vibrating
	)

	p.timers = nil
	p.handles = make(map[domain.LayerName]host.Handle)
	p.channel = nil
	p.hold = nil
	p.savedVolume = nil
	p.vibrating = false
	p.mu.Unlock()

	p.cancel()

	for _, timer := range timers {
		timer.Stop()
	}

	var errs []error

	for _, name := range domain.LayerNames {
		handle, ok := handles[name]
		if !ok {
			continue
		}

		if err := handle.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s layer: %w", name, err))
		}
	}

	if vibrating {
		if err := p.devices.Vibrator.CancelVibration(); err != nil {
			errs = append(errs, fmt.Errorf("cancel vibration: %w", err))
		}
	}

	if saved != nil {
		if err := p.devices.Volume.Apply(p.baseCtx, *saved); err != nil {
			errs = append(errs, fmt.Errorf("restore volume: %w", err))
		}
	}

	if channel != nil {
		if err := channel.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release alarm channel: %w", err))
		}
	}

	if hold != nil {
		if err := hold.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release cpu hold: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.WarnKV(p.baseCtx, "Playback teardown finished with errors", "error", err)
	} else {
		logger.DebugKV(p.baseCtx, "Playback stopped")
	}

	return err
}

// after runs fn once d elapsed unless the playback stops first.
func (p *Playback) after(d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.timers = append(p.timers, time.AfterFunc(d, fn))
}

func (p *Playback) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stopped
}

func (p *Playback) notifyChanged() {
	if p.listener != nil && !p.isStopped() {
		p.listener.PlaybackChanged(p.req.AlarmID)
	}
}

// acquireHold takes the CPU hold and arms the engine-side ceiling.
func (p *Playback) acquireHold() {
	lock, err := p.devices.Power.AcquireHold(p.ctx, p.cfg.HoldCeiling)
	if err != nil {
		logger.WarnKV(p.ctx, "CPU hold unavailable, ringing without it", "error", err)

		return
	}

	p.mu.Lock()
	p.hold = lock
	p.mu.Unlock()

	p.after(p.cfg.HoldCeiling, p.releaseHoldAtCeiling)
}

func (p *Playback) releaseHoldAtCeiling() {
	p.mu.Lock()
	lock := p.hold
	p.hold = nil
	p.mu.Unlock()

	if lock == nil {
		return
	}

	metrics.HoldCeilingReached.Inc()
	logger.WarnKV(p.ctx, "CPU hold ceiling reached, releasing",
		"ceiling", p.cfg.HoldCeiling)

	if err := lock.Release(); err != nil {
		logger.WarnKV(p.ctx, "Failed to release CPU hold", "error", err)
	}

	p.notifyChanged()
}

// acquireChannel takes the exclusive alarm channel or keeps retrying in the background.
func (p *Playback) acquireChannel() {
	channel, err := p.devices.Audio.AcquireAlarmChannel(p.ctx)
	if err != nil {
		metrics.FocusLost.Inc()
		logger.WarnKV(p.ctx, "Alarm channel denied, retrying",
			"error", fmt.Errorf("%w: %w", domain.ErrFocusLost, err))

		go p.reacquireChannel()

		return
	}

	p.mu.Lock()
	p.channel = channel
	p.mu.Unlock()

	go p.watchChannel(channel)
}

// watchChannel re-requests the channel as soon as the host revokes it.
func (p *Playback) watchChannel(channel host.Channel) {
	select {
	case <-p.ctx.Done():
		return
	case <-channel.Revoked():
	}

	p.mu.Lock()
	if p.channel == channel {
		p.channel = nil
	}
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		return
	}

	metrics.FocusLost.Inc()
	logger.WarnKV(p.ctx, "Alarm channel revoked, re-acquiring", "error", domain.ErrFocusLost)
	p.notifyChanged()

	p.reacquireChannel()
}

func (p *Playback) reacquireChannel() {
	for {
		if p.ctx.Err() != nil {
			return
		}

		channel, err := p.devices.Audio.AcquireAlarmChannel(p.ctx)
		if err == nil {
			p.mu.Lock()

			if p.stopped {
				p.mu.Unlock()

				_ = channel.Release()

				return
			}

			p.channel = channel
			p.mu.Unlock()

			logger.InfoKV(p.ctx, "Alarm channel re-acquired")
			p.reapplyVolume()
			p.notifyChanged()

			go p.watchChannel(channel)

			return
		}

		logger.DebugKV(p.ctx, "Alarm channel still unavailable", "error", err)

		timer := time.NewTimer(p.cfg.ChannelRetryInterval)

		select {
		case <-p.ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// overrideVolume saves the host volume and raises it for the session.
func (p *Playback) overrideVolume() {
	if !p.cfg.OverrideVolume {
		return
	}

	current, err := p.devices.Volume.Current(p.ctx)
	if err != nil {
		logger.WarnKV(p.ctx, "Cannot read host volume, leaving it untouched", "error", err)

		return
	}

	p.mu.Lock()
	p.savedVolume = &current
	p.mu.Unlock()

	p.reapplyVolume()
}

func (p *Playback) reapplyVolume() {
	p.mu.Lock()
	saved := p.savedVolume != nil
	p.mu.Unlock()

	if !saved {
		return
	}

	override := host.VolumeSettings{Percent: p.cfg.VolumePercent}
	if err := p.devices.Volume.Apply(p.ctx, override); err != nil {
		logger.WarnKV(p.ctx, "Failed to override host volume", "error", err)
	}
}

// startLayer begins one looping layer unless the playback already stopped.
func (p *Playback) startLayer(layer domain.Layer) {
	if p.isStopped() {
		return
	}

	handle, err := p.devices.Audio.PlayLooping(p.ctx, layer.Source)
	if err != nil {
		p.layerFailed(layer, err)

		return
	}

	if !p.attachHandle(layer, handle) {
		return
	}

	logger.DebugKV(p.ctx, "Playback layer active", "layer", layer.Name)
	p.notifyChanged()
}

// attachHandle records an active layer; it stops the handle if the playback stopped meanwhile.
func (p *Playback) attachHandle(layer domain.Layer, handle host.Handle) bool {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()

		_ = handle.Stop()

		return false
	}

	p.handles[layer.Name] = handle
	p.status[layer.Name] = domain.LayerActive
	p.mu.Unlock()

	go p.watchLayer(layer, handle)

	return true
}

// watchLayer observes the asynchronous failure of an active layer.
func (p *Playback) watchLayer(layer domain.Layer, handle host.Handle) {
	var err error

	select {
	case <-p.ctx.Done():
		return
	case err = <-handle.Failed():
	}

	if err == nil {
		err = errPlaybackEnded
	}

	p.mu.Lock()
	if p.handles[layer.Name] == handle {
		delete(p.handles, layer.Name)
	}
	p.mu.Unlock()

	p.layerFailed(layer, err)
}

// layerFailed records a failed layer and enters degraded mode once every layer failed.
func (p *Playback) layerFailed(layer domain.Layer, cause error) {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()

		return
	}

	p.status[layer.Name] = domain.LayerFailed

	allFailed := true

	for _, status := range p.status {
		if status != domain.LayerFailed {
			allFailed = false

			break
		}
	}

	enterDegraded := allFailed && !p.degraded
	startRetry := allFailed && !p.retrying

	if enterDegraded {
		p.degraded = true
	}

	if startRetry {
		p.retrying = true
	}

	p.mu.Unlock()

	metrics.LayerFailures.WithLabelValues(string(layer.Name)).Inc()
	logger.WarnKV(p.ctx, "Playback layer failed",
		"layer", layer.Name,
		"error", fmt.Errorf("%w: %w", domain.ErrPlaybackLayerFailed, cause))

	p.notifyChanged()

	if enterDegraded {
		metrics.DegradedSessions.Inc()
		logger.ErrorKV(p.ctx, "Every playback layer failed, switching to degraded signal",
			"error", domain.ErrAllLayersFailed)

		p.startVibration()

		if p.listener != nil {
			p.listener.PlaybackDegraded(p.req.AlarmID, domain.ErrAllLayersFailed)
		}
	}

	if startRetry {
		go p.retryFallback()
	}
}

// retryFallback periodically retries the system tone until it plays or the playback stops.
func (p *Playback) retryFallback() {
	ticker := time.NewTicker(p.cfg.DegradedRetryInterval)
	defer ticker.Stop()

	fallback := domain.Layer{
		Name:   domain.LayerFallback,
		Source: domain.Source{Kind: domain.SourceSystemTone},
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		handle, err := p.devices.Audio.PlayLooping(p.ctx, fallback.Source)
		if err != nil {
			logger.DebugKV(p.ctx, "Fallback retry failed", "error", err)

			continue
		}

		p.mu.Lock()
		p.retrying = false
		p.mu.Unlock()

		if p.attachHandle(fallback, handle) {
			logger.InfoKV(p.ctx, "Fallback layer recovered")
			p.notifyChanged()
		}

		return
	}
}

// startVibration starts the repeating pattern once.
func (p *Playback) startVibration() {
	p.mu.Lock()

	if p.stopped || p.vibrating {
		p.mu.Unlock()

		return
	}

	p.vibrating = true
	p.mu.Unlock()

	if err := p.devices.Vibrator.Vibrate(p.ctx, p.cfg.VibrationPattern, true); err != nil {
		p.mu.Lock()
		p.vibrating = false
		p.mu.Unlock()

		logger.WarnKV(p.ctx, "Vibration unavailable", "error", err)

		return
	}

	// Stop may have run while Vibrate was in flight.
	if p.isStopped() {
		_ = p.devices.Vibrator.CancelVibration()
	}
}
