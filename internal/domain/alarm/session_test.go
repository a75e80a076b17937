package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	firedAt := time.Date(2030, time.March, 1, 6, 0, 0, 0, time.UTC)
	session := NewSession(&Definition{ID: "a1", Label: "gym"}, firedAt)

	require.Equal(t, StateFiring, session.State)
	require.Equal(t, "gym", session.Label)
	require.Len(t, session.LayerStatus, len(LayerNames))

	for _, name := range LayerNames {
		require.Equal(t, LayerNotStarted, session.LayerStatus[name])
	}

	cloned := session.Clone()
	cloned.LayerStatus[LayerPrimary] = LayerActive
	require.Equal(t, LayerNotStarted, session.LayerStatus[LayerPrimary])
}

func TestState_Predicates(t *testing.T) {
	t.Parallel()

	require.True(t, StatePlaying.IsRinging())
	require.True(t, StateQueued.IsRinging())
	require.False(t, StateArmed.IsRinging())
	require.True(t, StateExpired.IsTerminal())
	require.False(t, StateSnoozed.IsTerminal())
}

func TestPlanLayers(t *testing.T) {
	t.Parallel()

	layers := PlanLayers(SoundProfileAlert, 750*time.Millisecond, 1500*time.Millisecond)

	require.Len(t, layers, 3)
	require.Equal(t, LayerPrimary, layers[0].Name)
	require.Zero(t, layers[0].ActivationDelay)
	require.Equal(t, Source{Kind: SourceAsset, Profile: SoundProfileAlert}, layers[1].Source)
	require.Equal(t, 750*time.Millisecond, layers[1].ActivationDelay)
	require.Equal(t, SourceSystemTone, layers[2].Source.Kind)
	require.Empty(t, layers[2].Source.Profile)
}
