package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/wake-alarm/internal/config"
	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

func testSettings(t *testing.T, storageType string) *config.Config {
	t.Helper()

	dir := t.TempDir()

	settings, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	settings.Host.Kind = config.HostSimulated
	settings.Storage.Type = storageType
	settings.Storage.Path = filepath.Join(dir, "state")
	settings.Events.AMQPURL = ""

	return settings
}

// TestOpenBackend_Types asserts every supported storage type opens and unknown ones fail.
func TestOpenBackend_Types(t *testing.T) {
	t.Parallel()

	for _, storageType := range []string{config.StorageFile, config.StorageBolt, config.StorageMemory} {
		t.Run(storageType, func(t *testing.T) {
			t.Parallel()

			settings := testSettings(t, storageType)

			backend, err := openBackend(context.Background(), settings.Storage)
			require.NoError(t, err)
			require.NotNil(t, backend)
			require.NoError(t, backend.Close())
		})
	}

	_, err := openBackend(context.Background(), config.StorageConfig{Type: "tape"})
	require.ErrorContains(t, err, "unknown storage type")
}

// TestNewEngine_RejectsUnknownPolicy asserts a bad policy aborts start-up.
func TestNewEngine_RejectsUnknownPolicy(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, config.StorageMemory)
	settings.Sessions.ConcurrencyPolicy = "lottery"

	_, err := newEngine(context.Background(), settings)
	require.ErrorContains(t, err, "unknown concurrency policy")
}

// TestEngine_ScheduleAndCancel asserts the wired engine arms and cancels alarms.
func TestEngine_ScheduleAndCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	e, err := newEngine(ctx, testSettings(t, config.StorageMemory))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, e.close())
	})

	id, err := e.manager.Schedule(ctx, &domain.Definition{
		TriggerAt: time.Now().Add(time.Hour),
		Label:     "standup",
	})
	require.NoError(t, err)

	state, err := e.manager.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, domain.StateArmed, state)
	require.Len(t, e.manager.List(), 1)

	require.NoError(t, e.manager.Cancel(ctx, id))

	state, err = e.manager.GetStatus(id)
	require.ErrorIs(t, err, domain.ErrAlarmNotFound)
	require.Equal(t, domain.StateIdle, state)
}

// TestEngine_RecoversAfterRestart asserts a second engine re-arms alarms left in the file store.
func TestEngine_RecoversAfterRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	settings := testSettings(t, config.StorageFile)

	first, err := newEngine(ctx, settings)
	require.NoError(t, err)

	id, err := first.manager.Schedule(ctx, &domain.Definition{
		TriggerAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, first.close())

	second, err := newEngine(ctx, settings)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, second.close())
	})

	report, err := second.recovery.Resync(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{id}, report.Rearmed)

	state, err := second.manager.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, domain.StateArmed, state)
}

// TestApplyOverrides asserts command-line values replace loaded settings.
func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, config.StorageMemory)

	err := applyOverrides(settings, &Options{
		ListenAddress: "127.0.0.1:6000",
		StorePath:     "/tmp/alarms.json",
		HostKind:      config.HostDesktop,
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6000", settings.ListenAddress)
	require.Equal(t, "/tmp/alarms.json", settings.Storage.Path)
	require.Equal(t, config.HostDesktop, settings.Host.Kind)

	err = applyOverrides(settings, &Options{HostKind: "mainframe"})
	require.Error(t, err)
}
