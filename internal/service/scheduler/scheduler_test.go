package scheduler

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/host"
	"github.com/oshokin/wake-alarm/internal/host/fake"
)

func TestWakeScheduler_ArmAndDisarm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hostScheduler := fake.NewScheduler()
	s := New(hostScheduler, time.Second)
	at := time.Now().Add(time.Hour)

	require.NoError(t, s.Arm(ctx, "a1", at))

	armed, ok := hostScheduler.Armed("a1")
	require.True(t, ok)
	require.True(t, armed.Equal(at))
	require.False(t, s.ReducedReliability("a1"))

	require.NoError(t, s.Disarm(ctx, "a1"))
	require.NoError(t, s.Disarm(ctx, "a1"))

	_, ok = hostScheduler.Armed("a1")
	require.False(t, ok)
}

func TestWakeScheduler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hostErr error
		want    error
	}{
		{name: "denied", hostErr: host.ErrDenied, want: domain.ErrPermissionDenied},
		{name: "unsupported", hostErr: host.ErrUnsupported, want: domain.ErrUnsupported},
		{name: "transient", hostErr: context.DeadlineExceeded, want: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hostScheduler := fake.NewScheduler()
			hostScheduler.Deny(tt.hostErr)

			err := New(hostScheduler, time.Second).Arm(context.Background(), "a1", time.Now().Add(time.Hour))
			require.ErrorIs(t, err, domain.ErrSchedulingFailed)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWakeScheduler_ReducedReliability(t *testing.T) {
	t.Parallel()

	hostScheduler := fake.NewScheduler()
	hostScheduler.SetReliability(host.ReliabilityInexact)

	s := New(hostScheduler, time.Second)
	require.NoError(t, s.Arm(context.Background(), "a1", time.Now().Add(time.Hour)))
	require.True(t, s.ReducedReliability("a1"))

	hostScheduler.SetReliability(host.ReliabilityPrecise)
	require.NoError(t, s.Arm(context.Background(), "a1", time.Now().Add(time.Hour)))
	require.False(t, s.ReducedReliability("a1"))
}

// hangingScheduler never answers ArmWake until its context ends.
type hangingScheduler struct {
	*fake.Scheduler
}

func (h hangingScheduler) ArmWake(ctx context.Context, _ string, _ time.Time) (host.Reliability, error) {
	<-ctx.Done()

	return "", ctx.Err()
}

func TestWakeScheduler_ArmTimeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s := New(hangingScheduler{Scheduler: fake.NewScheduler()}, 2*time.Second)

		start := time.Now()
		err := s.Arm(context.Background(), "a1", start.Add(time.Hour))

		require.ErrorIs(t, err, domain.ErrSchedulingFailed)
		require.Equal(t, 2*time.Second, time.Since(start))
	})
}

func TestWakeScheduler_OnFire(t *testing.T) {
	t.Parallel()

	hostScheduler := fake.NewScheduler()
	s := New(hostScheduler, time.Second)

	var fired []string

	s.OnFire(func(id string) {
		fired = append(fired, id)
	})

	hostScheduler.Fire("a1")
	hostScheduler.Fire("a1")

	require.Equal(t, []string{"a1", "a1"}, fired)
}
