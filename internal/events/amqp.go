package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

// contentType is the structured-mode CloudEvents media type.
const contentType = "application/cloudevents+json"

// AMQPPublisher publishes CloudEvents to a topic exchange. Routing keys are
// "alarm.<event type>".
type AMQPPublisher struct {
	source   string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange, source string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		source:   source,
		exchange: exchange,
		conn:     conn,
		channel:  channel,
	}, nil
}

// Name implements Sink.
func (p *AMQPPublisher) Name() string {
	return "amqp"
}

// Publish implements Sink.
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	ce, err := ToCloudEvent(p.source, event)
	if err != nil {
		return err
	}

	body, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("encode cloud event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(event.Type), false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    ce.ID(),
		Timestamp:    ce.Time(),
		Type:         ce.Type(),
		Body:         body,
	})
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.channel.Close()

	return p.conn.Close()
}

// RoutingKey returns the topic routing key of an event type.
func RoutingKey(eventType domain.EventType) string {
	return "alarm." + string(eventType)
}
