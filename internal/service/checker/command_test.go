package checker

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	api "github.com/oshokin/wake-alarm/internal/api/grpc/alarm"
)

var errStreamReset = errors.New("stream reset")

// scriptedStream replays events and then returns end.
type scriptedStream struct {
	grpc.ClientStream

	events []*api.SurfaceEvent
	end    error
}

func (s *scriptedStream) Recv() (*api.SurfaceEvent, error) {
	if len(s.events) == 0 {
		return nil, s.end
	}

	event := s.events[0]
	s.events = s.events[1:]

	return event, nil
}

// TestConsume_PrintsUntilEOF asserts every event is printed and EOF ends cleanly.
func TestConsume_PrintsUntilEOF(t *testing.T) {
	t.Parallel()

	now := time.Now()
	stream := &scriptedStream{
		events: []*api.SurfaceEvent{
			{Type: "playing", AlarmID: "work", State: "playing", OccurredAt: now, Snapshot: true},
			{Type: "snoozed", AlarmID: "work", State: "snoozed", Label: "Work", TriggerAt: now.Add(5 * time.Minute), OccurredAt: now},
			{Type: "degraded", AlarmID: "nap", State: "playing", Degraded: true, OccurredAt: now},
		},
		end: io.EOF,
	}

	var out bytes.Buffer

	require.NoError(t, consume(stream, &out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	require.Contains(t, string(lines[0]), "current")
	require.Contains(t, string(lines[1]), `"Work"`)
	require.Contains(t, string(lines[1]), "snoozed")
	require.Contains(t, string(lines[2]), "degraded")
}

// TestConsume_ReturnsStreamError asserts broken streams surface their error.
func TestConsume_ReturnsStreamError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	err := consume(&scriptedStream{end: errStreamReset}, &out)
	require.ErrorIs(t, err, errStreamReset)
	require.Empty(t, out.String())
}
