package integration

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/wake-alarm/internal/config"
	"github.com/oshokin/wake-alarm/internal/service/common"
	"github.com/oshokin/wake-alarm/internal/service/server"
)

const (
	waitFor = 10 * time.Second
	tick    = 50 * time.Millisecond
)

// daemon is an alarmd instance running in-process on the simulated host.
type daemon struct {
	addr     string
	httpAddr string
	cfgPath  string
	stop     func()
}

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// writeSettings stores a settings file for a simulated daemon persisting to storePath.
func writeSettings(t *testing.T, storePath string) (cfgPath, addr, httpAddr string) {
	t.Helper()

	cfgPath = filepath.Join(t.TempDir(), "settings.yaml")

	settings, err := config.Load(cfgPath)
	require.NoError(t, err)

	addr = reservePort(t)
	httpAddr = reservePort(t)

	settings.ListenAddress = addr
	settings.HTTPAddress = httpAddr
	settings.Host.Kind = config.HostSimulated
	settings.Storage.Type = config.StorageFile
	settings.Storage.Path = storePath

	require.NoError(t, config.Save(cfgPath, settings))

	return cfgPath, addr, httpAddr
}

// startDaemon runs alarmd until the returned stop function is called and waits
// until it answers requests.
func startDaemon(t *testing.T, storePath string) *daemon {
	t.Helper()

	cfgPath, addr, httpAddr := writeSettings(t, storePath)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath})
	}()

	d := &daemon{
		addr:     addr,
		httpAddr: httpAddr,
		cfgPath:  cfgPath,
		stop: func() {
			cancel()
			require.NoError(t, <-done)
		},
	}

	client := dialDaemon(t, d)

	require.Eventually(t, func() bool {
		_, err := client.List(context.Background())

		return err == nil
	}, waitFor, tick)

	return d
}

func dialDaemon(t *testing.T, d *daemon) *common.Client {
	t.Helper()

	client, err := common.Dial(context.Background(), d.addr,
		common.WithCallTimeout(3*time.Second),
		common.WithActor(common.Actor{Hostname: "test-host", Username: "test-user"}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func stateOf(client *common.Client, id string) string {
	state, err := client.GetStatus(context.Background(), id)
	if err != nil {
		return ""
	}

	return state
}

// TestDaemon_ScheduleFireDismiss drives one alarm from scheduling to dismissal.
func TestDaemon_ScheduleFireDismiss(t *testing.T) {
	t.Parallel()

	d := startDaemon(t, filepath.Join(t.TempDir(), "alarms.json"))
	defer d.stop()

	ctx := context.Background()
	client := dialDaemon(t, d)

	resp, err := client.Schedule(ctx, api.Alarm{
		TriggerAt: time.Now().Add(time.Second),
		Label:     "Integration",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.False(t, resp.Volatile)

	require.Eventually(t, func() bool {
		return stateOf(client, resp.ID) == "playing"
	}, waitFor, tick)

	active, err := client.GetActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active.Session)
	require.Equal(t, resp.ID, active.Session.AlarmID)

	require.NoError(t, client.Dismiss(ctx, resp.ID))
	require.Empty(t, stateOf(client, resp.ID))

	history, err := client.History(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	require.Equal(t, resp.ID, history[0].AlarmID)
	require.Equal(t, "dismissed", history[0].State)
}

// TestDaemon_SnoozeRearms asserts a snoozed alarm is armed again for later.
func TestDaemon_SnoozeRearms(t *testing.T) {
	t.Parallel()

	d := startDaemon(t, filepath.Join(t.TempDir(), "alarms.json"))
	defer d.stop()

	ctx := context.Background()
	client := dialDaemon(t, d)

	resp, err := client.Schedule(ctx, api.Alarm{TriggerAt: time.Now().Add(time.Second)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stateOf(client, resp.ID) == "playing"
	}, waitFor, tick)

	snoozed, err := client.Snooze(ctx, resp.ID, 3)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(3*time.Minute), snoozed.TriggerAt, 10*time.Second)

	alarms, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, resp.ID, alarms[0].ID)
}

// TestDaemon_RecoversAlarmsAfterRestart asserts alarms survive a daemon restart.
func TestDaemon_RecoversAlarmsAfterRestart(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "alarms.json")
	ctx := context.Background()

	first := startDaemon(t, storePath)
	client := dialDaemon(t, first)

	resp, err := client.Schedule(ctx, api.Alarm{
		ID:        "morning",
		TriggerAt: time.Now().Add(time.Hour),
		Label:     "Morning",
	})
	require.NoError(t, err)
	require.Equal(t, "morning", resp.ID)

	first.stop()

	second := startDaemon(t, storePath)
	defer second.stop()

	client = dialDaemon(t, second)

	alarms, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, "morning", alarms[0].ID)
	require.Equal(t, "Morning", alarms[0].Label)
	require.Equal(t, "armed", stateOf(client, "morning"))
}

// TestDaemon_ServesHTTP asserts the status and metrics endpoints are reachable.
func TestDaemon_ServesHTTP(t *testing.T) {
	t.Parallel()

	d := startDaemon(t, filepath.Join(t.TempDir(), "alarms.json"))
	defer d.stop()

	for _, path := range []string{"/health", "/metrics", "/api/v0/alarms"} {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+d.httpAddr+path, nil)
		require.NoError(t, err)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err, path)
		_ = res.Body.Close()

		require.Less(t, res.StatusCode, http.StatusBadRequest, path)
	}
}
