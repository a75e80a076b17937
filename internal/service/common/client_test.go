//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	_, hasDeadline := ctx.Deadline()
	require.False(t, hasDeadline)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_ActorMetadata checks the caller is attached to outgoing calls.
func TestClient_ActorMetadata(t *testing.T) {
	t.Parallel()

	c := new(Client)
	WithActor(Actor{Hostname: "kitchen", Username: "ann"})(c)

	ctx, cancel := c.callContext(context.Background())
	defer cancel()

	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"ann@kitchen"}, md.Get(api.ActorMetadataKey))
}

// TestClient_RequiresID asserts that commands without an alarm id are rejected locally.
func TestClient_RequiresID(t *testing.T) {
	t.Parallel()

	c := new(Client)
	ctx := context.Background()

	require.ErrorIs(t, c.Cancel(ctx, ""), errIDRequired)
	require.ErrorIs(t, c.Dismiss(ctx, ""), errIDRequired)

	_, err := c.Snooze(ctx, "", 0)
	require.ErrorIs(t, err, errIDRequired)

	_, err = c.GetStatus(ctx, "")
	require.ErrorIs(t, err, errIDRequired)
}
