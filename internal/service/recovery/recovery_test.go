package recovery

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/host/fake"
	"github.com/oshokin/wake-alarm/internal/lock"
	"github.com/oshokin/wake-alarm/internal/repository/alarms"
	"github.com/oshokin/wake-alarm/internal/service/playback"
	"github.com/oshokin/wake-alarm/internal/service/scheduler"
	"github.com/oshokin/wake-alarm/internal/service/session"
	"github.com/oshokin/wake-alarm/internal/storage"
)

type engine struct {
	host        *fake.Host
	store       *alarms.Repository
	manager     *session.Manager
	coordinator *Coordinator
}

// newEngine wires a fresh process over an existing backend, as after a restart.
func newEngine(t *testing.T, backend storage.Backend) *engine {
	t.Helper()

	h := fake.New()
	store := alarms.NewRepository(backend)
	locks := lock.NewMutexMap()
	wakeScheduler := scheduler.New(h.Scheduler, time.Second)

	manager, err := session.NewManager(context.Background(), session.Config{}, session.Dependencies{
		Store:     store,
		Scheduler: wakeScheduler,
		Player: playback.NewOrchestrator(playback.Config{}, playback.Devices{
			Audio:    h.Audio,
			Volume:   h.Volume,
			Vibrator: h.Vibrator,
			Power:    h.Power,
		}),
		Presenter: h.Presenter,
		Locks:     locks,
	})
	require.NoError(t, err)

	wakeScheduler.OnFire(manager.OnFire)

	return &engine{
		host:        h,
		store:       store,
		manager:     manager,
		coordinator: NewCoordinator(store, wakeScheduler, manager, locks),
	}
}

func (e *engine) close() {
	synctest.Wait()
	_ = e.manager.Close()
}

func persist(t *testing.T, store *alarms.Repository, id string, triggerAt time.Time) {
	t.Helper()

	def := &domain.Definition{ID: id, TriggerAt: triggerAt}
	def.ApplyDefaults()

	require.NoError(t, store.Save(context.Background(), def))
}

// TestResync_CrashBetweenSaveAndArm verifies a persisted but never armed alarm is re-armed.
func TestResync_CrashBetweenSaveAndArm(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := storage.NewMemory()
		e := newEngine(t, backend)
		defer e.close()

		persist(t, e.store, "a1", time.Now().Add(time.Minute))

		report, err := e.coordinator.Resync(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"a1"}, report.Rearmed)

		_, armed := e.host.Scheduler.Armed("a1")
		require.True(t, armed)

		state, err := e.manager.GetStatus("a1")
		require.NoError(t, err)
		require.Equal(t, domain.StateArmed, state)

		time.Sleep(time.Minute)
		e.host.Scheduler.Fire("a1")
		synctest.Wait()

		state, err = e.manager.GetStatus("a1")
		require.NoError(t, err)
		require.Equal(t, domain.StatePlaying, state)
	})
}

// TestResync_DiscardsStale verifies past-due alarms are deleted and never fire.
func TestResync_DiscardsStale(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := storage.NewMemory()
		e := newEngine(t, backend)
		defer e.close()

		persist(t, e.store, "stale", time.Now().Add(-time.Minute))
		persist(t, e.store, "due-now", time.Now())
		persist(t, e.store, "future", time.Now().Add(time.Hour))

		report, err := e.coordinator.Resync(context.Background())
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"stale", "due-now"}, report.Discarded)
		require.Equal(t, []string{"future"}, report.Rearmed)

		_, err = e.store.Load(context.Background(), "stale")
		require.ErrorIs(t, err, domain.ErrAlarmNotFound)

		e.host.Scheduler.Fire("stale")
		synctest.Wait()

		require.Empty(t, e.host.Audio.Plays())

		state, err := e.manager.GetStatus("stale")
		require.ErrorIs(t, err, domain.ErrAlarmNotFound)
		require.Equal(t, domain.StateIdle, state)
	})
}

// TestResync_ArmFailureKeepsRecord verifies a denied re-arm is reported and the record kept.
func TestResync_ArmFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := storage.NewMemory()
		e := newEngine(t, backend)
		defer e.close()

		persist(t, e.store, "a1", time.Now().Add(time.Minute))
		e.host.Scheduler.Deny(host.ErrDenied)

		report, err := e.coordinator.Resync(context.Background())
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
		require.Contains(t, report.Failed, "a1")

		_, err = e.store.Load(context.Background(), "a1")
		require.NoError(t, err)

		e.host.Scheduler.Deny(nil)

		report, err = e.coordinator.Resync(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"a1"}, report.Rearmed)
	})
}

// TestResync_ConcurrentWithCommands verifies recovery and new commands do not corrupt each other.
func TestResync_ConcurrentWithCommands(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := storage.NewMemory()
		e := newEngine(t, backend)
		defer e.close()

		ctx := context.Background()

		for _, id := range []string{"r1", "r2", "r3"} {
			persist(t, e.store, id, time.Now().Add(time.Hour))
		}

		var wg sync.WaitGroup

		wg.Go(func() {
			_, err := e.coordinator.Resync(ctx)
			require.NoError(t, err)
		})

		wg.Go(func() {
			_, err := e.manager.Schedule(ctx, &domain.Definition{ID: "n1", TriggerAt: time.Now().Add(time.Hour)})
			require.NoError(t, err)
		})

		wg.Go(func() {
			require.NoError(t, e.manager.Cancel(ctx, "r2"))
		})

		wg.Wait()

		require.Equal(t, domain.StateIdle, stateOf(e.manager.GetStatus("r2")))
		require.Equal(t, domain.StateArmed, stateOf(e.manager.GetStatus("r1")))
		require.Equal(t, domain.StateArmed, stateOf(e.manager.GetStatus("n1")))

		_, err := e.store.Load(ctx, "r2")
		require.ErrorIs(t, err, domain.ErrAlarmNotFound)
	})
}

func stateOf(state domain.State, _ error) domain.State {
	return state
}
