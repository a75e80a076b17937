package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
)

// TestParseTriggerAt covers the accepted --at forms and --in.
func TestParseTriggerAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 14, 22, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		at   string
		in   time.Duration
		want time.Time
	}{
		{
			name: "relative",
			in:   90 * time.Minute,
			want: now.Add(90 * time.Minute),
		},
		{
			name: "rfc3339",
			at:   "2026-03-15T06:45:00Z",
			want: time.Date(2026, time.March, 15, 6, 45, 0, 0, time.UTC),
		},
		{
			name: "date and clock",
			at:   "2026-03-15 06:45",
			want: time.Date(2026, time.March, 15, 6, 45, 0, 0, time.UTC),
		},
		{
			name: "clock later today",
			at:   "23:15",
			want: time.Date(2026, time.March, 14, 23, 15, 0, 0, time.UTC),
		},
		{
			name: "clock already passed rolls to tomorrow",
			at:   "06:45",
			want: time.Date(2026, time.March, 15, 6, 45, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTriggerAt(tc.at, tc.in, now)
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

// TestParseTriggerAt_Errors asserts missing, conflicting and malformed input is rejected.
func TestParseTriggerAt_Errors(t *testing.T) {
	t.Parallel()

	now := time.Now()

	_, err := ParseTriggerAt("", 0, now)
	require.ErrorIs(t, err, errTriggerRequired)

	_, err = ParseTriggerAt("07:00", time.Minute, now)
	require.ErrorIs(t, err, errTriggerConflict)

	_, err = ParseTriggerAt("tomorrow morning", 0, now)
	require.ErrorContains(t, err, "unrecognised time")
}

// TestFormatRemaining covers countdown rendering.
func TestFormatRemaining(t *testing.T) {
	t.Parallel()

	require.Equal(t, "due", formatRemaining(-time.Second))
	require.Equal(t, "<1m", formatRemaining(20*time.Second))
	require.Equal(t, "45m", formatRemaining(45*time.Minute))
	require.Equal(t, "7h05m", formatRemaining(7*time.Hour+5*time.Minute))
}

// TestPrintAlarms asserts the table lists every alarm and flags unsaved ones.
func TestPrintAlarms(t *testing.T) {
	t.Parallel()

	now := time.Now()

	var out bytes.Buffer

	printAlarms(&out, nil, now)
	require.Contains(t, out.String(), "No alarms armed")

	out.Reset()
	printAlarms(&out, []api.Alarm{
		{ID: "work", TriggerAt: now.Add(8 * time.Hour), Label: "Work"},
		{ID: "nap", TriggerAt: now.Add(20 * time.Minute), Volatile: true},
	}, now)

	text := out.String()
	require.Contains(t, text, "work")
	require.Contains(t, text, "8h00m")
	require.Contains(t, text, "nap")
	require.Contains(t, text, "20m")
	require.Contains(t, text, "(unsaved)")
}

// TestPrintSession asserts the active session and waiting list are rendered.
func TestPrintSession(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printSession(&out, &api.GetActiveSessionResponse{})
	require.Contains(t, out.String(), "No alarm is ringing")

	out.Reset()
	printSession(&out, &api.GetActiveSessionResponse{
		Session: &api.Session{
			AlarmID:     "work",
			State:       "playing",
			FiredAt:     time.Now(),
			LayerStatus: map[string]string{"primary": "playing", "backup": "inactive"},
			FocusHeld:   true,
			Degraded:    true,
		},
		Waiting: []api.Session{{AlarmID: "gym"}, {AlarmID: "meds"}},
	})

	text := out.String()
	require.Contains(t, text, "work")
	require.Contains(t, text, "playing")
	require.Contains(t, text, "backup=inactive primary=playing")
	require.Contains(t, text, "Degraded")
	require.Contains(t, text, "gym, meds")
}

// TestPrintHistory asserts outcomes are listed with their degraded marker.
func TestPrintHistory(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printHistory(&out, []api.Outcome{
		{AlarmID: "work", State: "dismissed", EndedAt: time.Now()},
		{AlarmID: "nap", State: "expired", EndedAt: time.Now(), Degraded: true},
	})

	text := out.String()
	require.Contains(t, text, "dismissed")
	require.Contains(t, text, "expired")
	require.Contains(t, text, "(degraded)")
}
