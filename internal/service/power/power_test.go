package power

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	closed atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)

	return nil
}

func newTestHold(closer *countingCloser) *Hold {
	return &Hold{
		who: "test",
		inhibit: func(context.Context, time.Duration) (io.Closer, error) {
			return closer, nil
		},
	}
}

// TestHold_CeilingReleases verifies the lock is released by the ceiling without a Release call.
func TestHold_CeilingReleases(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		closer := &countingCloser{}
		hold := newTestHold(closer)

		l, err := hold.AcquireHold(context.Background(), 10*time.Minute)
		require.NoError(t, err)

		time.Sleep(10*time.Minute - time.Second)
		synctest.Wait()
		require.Zero(t, closer.closed.Load())

		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), closer.closed.Load())

		require.NoError(t, l.Release())
		require.Equal(t, int32(1), closer.closed.Load())
	})
}

// TestHold_ReleaseIsIdempotent verifies double release closes once and disarms the ceiling.
func TestHold_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		closer := &countingCloser{}
		hold := newTestHold(closer)

		l, err := hold.AcquireHold(context.Background(), time.Minute)
		require.NoError(t, err)

		require.NoError(t, l.Release())
		require.NoError(t, l.Release())

		time.Sleep(2 * time.Minute)
		synctest.Wait()
		require.Equal(t, int32(1), closer.closed.Load())
	})
}

// TestHold_Errors covers invalid timeouts and inhibitor failures.
func TestHold_Errors(t *testing.T) {
	t.Parallel()

	hold := &Hold{
		who: "test",
		inhibit: func(context.Context, time.Duration) (io.Closer, error) {
			return nil, errors.New("logind unavailable")
		},
	}

	_, err := hold.AcquireHold(context.Background(), 0)
	require.Error(t, err)

	_, err = hold.AcquireHold(context.Background(), time.Minute)
	require.ErrorContains(t, err, "logind unavailable")
}
