package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

type memorySink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Publish(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.events = append(s.events, event)

	return nil
}

func (s *memorySink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Event(nil), s.events...)
}

func TestBus_FanOut(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sink := &memorySink{}
		failing := &memorySink{err: errors.New("broker down")}
		bus := NewBus(failing, sink)

		go func() {
			_ = bus.Run(ctx)
		}()

		first, unsubscribeFirst := bus.Subscribe()
		second, unsubscribeSecond := bus.Subscribe()

		defer unsubscribeSecond()

		event := domain.Event{Type: domain.EventFired, AlarmID: "a1", State: domain.StateFiring}
		bus.Notify(ctx, event)

		require.Equal(t, event, <-first)
		require.Equal(t, event, <-second)

		synctest.Wait()
		require.Equal(t, []domain.Event{event}, sink.Events())

		unsubscribeFirst()
		unsubscribeFirst()

		_, open := <-first
		require.False(t, open)

		bus.Notify(ctx, domain.Event{Type: domain.EventDismissed, AlarmID: "a1"})
		require.Equal(t, domain.EventDismissed, (<-second).Type)
	})
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, unsubscribe := bus.Subscribe()

	defer unsubscribe()

	for range subscriberBuffer * 2 {
		bus.Notify(context.Background(), domain.Event{Type: domain.EventPlaying, AlarmID: "a1"})
	}
}

func TestToCloudEvent(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2030, time.March, 1, 6, 0, 0, 0, time.UTC)
	event := domain.Event{
		Type:       domain.EventSnoozed,
		AlarmID:    "a1",
		Label:      "gym",
		State:      domain.StateArmed,
		TriggerAt:  occurred.Add(5 * time.Minute),
		OccurredAt: occurred,
	}

	ce, err := ToCloudEvent("/wake-alarm/test", event)
	require.NoError(t, err)
	require.Equal(t, TypePrefix+"snoozed", ce.Type())
	require.Equal(t, "a1", ce.Subject())
	require.Equal(t, "/wake-alarm/test", ce.Source())
	require.True(t, ce.Time().Equal(occurred))
	require.Len(t, ce.ID(), 36)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(ce.Data(), &decoded))
	require.Equal(t, "gym", decoded.Label)
	require.True(t, decoded.TriggerAt.Equal(event.TriggerAt))

	require.Equal(t, "alarm.snoozed", RoutingKey(domain.EventSnoozed))
}
