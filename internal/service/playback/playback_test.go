package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/host/fake"
)

var errNoSound = errors.New("no sound device")

type recordingListener struct {
	mu       sync.Mutex
	changes  int
	degraded []error
}

func (l *recordingListener) PlaybackChanged(string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.changes++
}

func (l *recordingListener) PlaybackDegraded(_ string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.degraded = append(l.degraded, err)
}

func (l *recordingListener) Degraded() []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]error(nil), l.degraded...)
}

func newTestOrchestrator(h *fake.Host) *Orchestrator {
	return NewOrchestrator(Config{
		OverrideVolume: true,
		VolumePercent:  100,
	}, Devices{
		Audio:    h.Audio,
		Volume:   h.Volume,
		Vibrator: h.Vibrator,
		Power:    h.Power,
	})
}

// TestPlayback_StaggeredLayers verifies the deterministic start order and delays.
func TestPlayback_StaggeredLayers(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		p := newTestOrchestrator(h).Start(context.Background(), Request{
			AlarmID: "a1",
			Profile: domain.SoundProfileAlert,
			Vibrate: true,
		}, &recordingListener{})

		asset := domain.Source{Kind: domain.SourceAsset, Profile: domain.SoundProfileAlert}

		require.Equal(t, []domain.Source{asset}, h.Audio.Plays())

		snapshot := p.Snapshot()
		require.True(t, snapshot.FocusHeld)
		require.True(t, snapshot.WakeLockHeld)
		require.True(t, snapshot.AnyLayerActive())
		require.Equal(t, domain.LayerNotStarted, snapshot.LayerStatus[domain.LayerBackup])
		require.Equal(t, host.VolumeSettings{Percent: 100}, h.Volume.Settings())
		require.True(t, h.Vibrator.Vibrating())
		require.Equal(t, []time.Duration{DefaultHoldCeiling}, h.Power.Timeouts())

		time.Sleep(DefaultBackupDelay)
		synctest.Wait()
		require.Equal(t, []domain.Source{asset, asset}, h.Audio.Plays())

		time.Sleep(DefaultFallbackDelay - DefaultBackupDelay)
		synctest.Wait()
		require.Equal(t, []domain.Source{asset, asset, {Kind: domain.SourceSystemTone}}, h.Audio.Plays())

		for _, name := range domain.LayerNames {
			require.Equal(t, domain.LayerActive, p.Snapshot().LayerStatus[name])
		}

		require.NoError(t, p.Stop())
	})
}

// TestPlayback_StopReleasesEverything verifies idempotent teardown and volume restore.
func TestPlayback_StopReleasesEverything(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		p := newTestOrchestrator(h).Start(context.Background(), Request{
			AlarmID: "a1",
			Profile: domain.SoundProfileDefault,
			Vibrate: true,
		}, nil)

		time.Sleep(100 * time.Millisecond)
		require.NoError(t, p.Stop())
		require.NoError(t, p.Stop())

		require.Zero(t, h.Audio.ActiveHandles())
		require.Zero(t, h.Audio.HeldChannels())
		require.Zero(t, h.Power.Held())
		require.False(t, h.Vibrator.Vibrating())
		require.Equal(t, host.VolumeSettings{Percent: 40}, h.Volume.Settings())

		// Pending backup and fallback layers never start.
		time.Sleep(5 * time.Second)
		synctest.Wait()
		require.Len(t, h.Audio.Plays(), 1)

		snapshot := p.Snapshot()
		require.False(t, snapshot.FocusHeld)
		require.False(t, snapshot.WakeLockHeld)
	})
}

// TestPlayback_AllLayersFailed verifies the degraded signal instead of silence.
func TestPlayback_AllLayersFailed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()

		var recovered sync.Mutex

		soundBack := false

		h.Audio.SetPlayFunc(func(domain.Source, int) error {
			recovered.Lock()
			defer recovered.Unlock()

			if soundBack {
				return nil
			}

			return errNoSound
		})

		listener := &recordingListener{}
		p := newTestOrchestrator(h).Start(context.Background(), Request{
			AlarmID: "a1",
			Profile: domain.SoundProfileDefault,
			Vibrate: false,
		}, listener)

		require.False(t, h.Vibrator.Vibrating())

		time.Sleep(DefaultFallbackDelay)
		synctest.Wait()

		require.True(t, p.Snapshot().Degraded)
		require.True(t, h.Vibrator.Vibrating())
		require.True(t, h.Vibrator.LastRepeat())
		require.Len(t, listener.Degraded(), 1)
		require.ErrorIs(t, listener.Degraded()[0], domain.ErrAllLayersFailed)

		// One failed retry of the system tone.
		time.Sleep(DefaultDegradedRetryInterval)
		synctest.Wait()
		require.Len(t, h.Audio.Plays(), 4)
		require.Equal(t, domain.SourceSystemTone, h.Audio.Plays()[3].Kind)

		recovered.Lock()
		soundBack = true
		recovered.Unlock()

		time.Sleep(DefaultDegradedRetryInterval)
		synctest.Wait()
		require.Equal(t, domain.LayerActive, p.Snapshot().LayerStatus[domain.LayerFallback])

		// Retries end once the fallback plays.
		time.Sleep(3 * DefaultDegradedRetryInterval)
		synctest.Wait()
		require.Len(t, h.Audio.Plays(), 5)

		require.NoError(t, p.Stop())
		require.False(t, h.Vibrator.Vibrating())
		require.Len(t, listener.Degraded(), 1)
	})
}

// TestPlayback_LayerFailureIsIsolated verifies one failing layer does not stop the others.
func TestPlayback_LayerFailureIsIsolated(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		p := newTestOrchestrator(h).Start(context.Background(), Request{AlarmID: "a1"}, nil)

		h.Audio.Handles()[0].Fail(errNoSound)
		synctest.Wait()

		require.Equal(t, domain.LayerFailed, p.Snapshot().LayerStatus[domain.LayerPrimary])
		require.False(t, p.Snapshot().Degraded)

		time.Sleep(DefaultFallbackDelay)
		synctest.Wait()

		snapshot := p.Snapshot()
		require.Equal(t, domain.LayerActive, snapshot.LayerStatus[domain.LayerBackup])
		require.Equal(t, domain.LayerActive, snapshot.LayerStatus[domain.LayerFallback])

		require.NoError(t, p.Stop())
	})
}

// TestPlayback_ChannelRevocation verifies the channel is re-requested immediately.
func TestPlayback_ChannelRevocation(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		p := newTestOrchestrator(h).Start(context.Background(), Request{AlarmID: "a1"}, nil)

		h.Audio.Channels()[0].Revoke()
		synctest.Wait()

		require.Len(t, h.Audio.Channels(), 2)
		require.Equal(t, 1, h.Audio.HeldChannels())
		require.True(t, p.Snapshot().FocusHeld)

		require.NoError(t, p.Stop())
		require.Zero(t, h.Audio.HeldChannels())
	})
}

// TestPlayback_ChannelDeniedThenGranted verifies background retries after an initial denial.
func TestPlayback_ChannelDeniedThenGranted(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		h.Audio.DenyChannel(host.ErrDenied)

		p := newTestOrchestrator(h).Start(context.Background(), Request{AlarmID: "a1"}, nil)
		require.False(t, p.Snapshot().FocusHeld)

		h.Audio.DenyChannel(nil)
		time.Sleep(DefaultChannelRetryInterval)
		synctest.Wait()

		require.True(t, p.Snapshot().FocusHeld)
		require.NoError(t, p.Stop())
	})
}

// TestPlayback_HoldCeiling verifies the engine releases the CPU hold on its own.
func TestPlayback_HoldCeiling(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := fake.New()
		p := newTestOrchestrator(h).Start(context.Background(), Request{AlarmID: "a1"}, nil)
		require.Equal(t, 1, h.Power.Held())

		time.Sleep(DefaultHoldCeiling)
		synctest.Wait()

		require.Zero(t, h.Power.Held())
		require.False(t, p.Snapshot().WakeLockHeld)
		require.NoError(t, p.Stop())
	})
}
