package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange receives every trigger event; the event name is the
// routing key.
const DefaultExchange = "coachflow.events"

// Publisher is the publishing half of an AMQP channel. *amqp.Channel and
// *Connection both satisfy it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the JSON body of a published event.
type Message struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink implements ports.EventSink by publishing trigger events to an exchange.
type Sink struct {
	pub      Publisher
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithExchange overrides DefaultExchange.
func WithExchange(name string) SinkOption {
	return func(s *Sink) {
		if name != "" {
			s.exchange = name
		}
	}
}

// WithLogger sets the sink logger.
func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = logging.Component(logger, "amqp")
	}
}

// NewSink creates a sink publishing through pub.
func NewSink(pub Publisher, opts ...SinkOption) *Sink {
	s := &Sink{
		pub:      pub,
		exchange: DefaultExchange,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange returns the exchange events are published to.
func (s *Sink) Exchange() string { return s.exchange }

// Trigger publishes event as a persistent JSON message.
func (s *Sink) Trigger(ctx context.Context, event string, payload map[string]any) error {
	msg := Message{
		ID:        uuid.NewString(),
		Event:     event,
		Payload:   payload,
		Timestamp: s.now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	err = s.pub.PublishWithContext(ctx, s.exchange, event, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Type:         event,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", s.exchange, event, err)
	}

	s.logger.Debug("published event", "exchange", s.exchange, "routing_key", event, "message_id", msg.ID)
	return nil
}
