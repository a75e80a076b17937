package playback

import (
	"context"
	"maps"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/logger"
)

// Devices are the host collaborators a playback drives.
type Devices struct {
	Audio    host.Audio
	Volume   host.Volume
	Vibrator host.Vibrator
	Power    host.PowerHold
}

// Listener observes a playback. Calls arrive from playback goroutines and must not block.
type Listener interface {
	// PlaybackChanged is called whenever Snapshot may have changed.
	PlaybackChanged(alarmID string)
	// PlaybackDegraded is called once when every layer has failed.
	PlaybackDegraded(alarmID string, err error)
}

// Request describes what to play.
type Request struct {
	// AlarmID identifies the session.
	AlarmID string
	// Profile selects the asset for the primary and backup layers.
	Profile domain.SoundProfile
	// Vibrate starts the pulse pattern independently of audio.
	Vibrate bool
}

// Snapshot is the observable resource state of a playback.
type Snapshot struct {
	LayerStatus  map[domain.LayerName]domain.LayerStatus
	FocusHeld    bool
	WakeLockHeld bool
	Degraded     bool
}

// AnyLayerActive reports whether at least one layer is producing sound.
func (s Snapshot) AnyLayerActive() bool {
	for _, status := range s.LayerStatus {
		if status == domain.LayerActive {
			return true
		}
	}

	return false
}

// Orchestrator starts playbacks. It is safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	devices Devices
}

// NewOrchestrator creates an orchestrator over the host devices.
func NewOrchestrator(cfg Config, devices Devices) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		devices: devices,
	}
}

// Start begins playback for a session and returns immediately after the
// primary layer was attempted. Failures never escape: they are logged,
// recorded in the snapshot and reported to listener.
func (o *Orchestrator) Start(ctx context.Context, req Request, listener Listener) *Playback {
	ctx = logger.WithName(ctx, "playback")
	ctx = logger.WithKV(ctx, "alarm_id", req.AlarmID)

	baseCtx := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(baseCtx)

	status := make(map[domain.LayerName]domain.LayerStatus, len(domain.LayerNames))
	for _, name := range domain.LayerNames {
		status[name] = domain.LayerNotStarted
	}

	p := &Playback{
		cfg:      o.cfg,
		devices:  o.devices,
		req:      req,
		listener: listener,
		baseCtx:  baseCtx,
		ctx:      runCtx,
		cancel:   cancel,
		status:   status,
		handles:  make(map[domain.LayerName]host.Handle, len(domain.LayerNames)),
	}

	p.acquireHold()
	p.acquireChannel()
	p.overrideVolume()

	for _, layer := range domain.PlanLayers(req.Profile, o.cfg.BackupDelay, o.cfg.FallbackDelay) {
		if layer.ActivationDelay <= 0 {
			p.startLayer(layer)

			continue
		}

		p.after(layer.ActivationDelay, func() {
			p.startLayer(layer)
		})
	}

	if req.Vibrate {
		p.startVibration()
	}

	logger.InfoKV(ctx, "Playback started",
		"profile", req.Profile,
		"vibrate", req.Vibrate)

	return p
}

func cloneStatus(status map[domain.LayerName]domain.LayerStatus) map[domain.LayerName]domain.LayerStatus {
	return maps.Clone(status)
}
