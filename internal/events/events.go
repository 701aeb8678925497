// Package events publishes appointment lifecycle changes.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"sanjeevika-api/internal/model"
)

type Event struct {
	ID          string            `json:"event_id"`
	Type        string            `json:"event_type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Appointment model.Appointment `json:"appointment"`
}

// ForAppointment builds the event for a's current status, e.g.
// appointment.booked.
func ForAppointment(a model.Appointment) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        "appointment." + string(a.Status),
		OccurredAt:  time.Now().UTC(),
		Appointment: a,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
func (Discard) Close() error                         { return nil }

// KafkaPublisher writes events asynchronously; delivery failures are logged by
// the writer's completion callback and never surface to the request.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers, topic string, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(msgs)).Msg("appointment event delivery failed")
			}
		},
	}
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := Message(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Message encodes e keyed by appointment id so all changes to one appointment
// land on the same partition in order.
func Message(e Event) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Appointment.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
