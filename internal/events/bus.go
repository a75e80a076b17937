package events

import (
	"context"
	"sync"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/metrics"
)

const (
	// subscriberBuffer is the per-subscriber backlog before events are dropped.
	subscriberBuffer = 32
	// sinkBuffer is the backlog of events waiting for external sinks.
	sinkBuffer = 256
)

// Sink delivers events outside the process.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
}

// Bus implements the session observer. Notify never blocks: slow subscribers
// and a full sink backlog lose events, which is logged.
type Bus struct {
	sinks   []Sink
	pending chan domain.Event

	mu          sync.Mutex
	subscribers map[int]chan domain.Event
	nextID      int
}

// NewBus creates a bus delivering to the given sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{
		sinks:       sinks,
		pending:     make(chan domain.Event, sinkBuffer),
		subscribers: make(map[int]chan domain.Event),
	}
}

// Notify publishes an event to every subscriber and queues it for the sinks.
func (b *Bus) Notify(ctx context.Context, event domain.Event) {
	b.mu.Lock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.WarnKV(ctx, "Subscriber is too slow, dropping event",
				"subscriber", id,
				"event", event.Type)
		}
	}

	b.mu.Unlock()

	if len(b.sinks) == 0 {
		return
	}

	select {
	case b.pending <- event:
	default:
		metrics.EventsPublished.WithLabelValues("all", "dropped").Inc()
		logger.WarnKV(ctx, "Event sink backlog is full, dropping event", "event", event.Type)
	}
}

// Subscribe returns a channel of future events and the function that ends the subscription.
func (b *Bus) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan domain.Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()

			close(ch)
		})
	}
}

// Run delivers queued events to the sinks until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-b.pending:
			b.publish(ctx, event)
		}
	}
}

func (b *Bus) publish(ctx context.Context, event domain.Event) {
	for _, sink := range b.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues(sink.Name(), "failed").Inc()
			logger.WarnKV(ctx, "Failed to publish event",
				"sink", sink.Name(),
				"event", event.Type,
				"alarm_id", event.AlarmID,
				"error", err)

			continue
		}

		metrics.EventsPublished.WithLabelValues(sink.Name(), "published").Inc()
	}
}
