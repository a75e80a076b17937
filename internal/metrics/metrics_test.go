package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	t.Parallel()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}

	// Vectors only show up once a label set was observed.
	require.True(t, names["wakealarm_alarms_scheduled_total"])
	require.True(t, names["wakealarm_armed_alarms"])
	require.True(t, names["wakealarm_ring_duration_seconds"])
}

func TestLayerFailuresByLabel(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(LayerFailures.WithLabelValues("metrics-test"))
	LayerFailures.WithLabelValues("metrics-test").Inc()

	require.InDelta(t, before+1, testutil.ToFloat64(LayerFailures.WithLabelValues("metrics-test")), 0.0001)
}
