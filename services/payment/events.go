package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/shopspring/decimal"
)

// Event types published over the payment lifecycle
const (
	EventPaymentCreated = "payment.created"
	EventPaymentPaid    = "payment.paid"
)

// Event is the payload sent to downstream consumers
type Event struct {
	Type       string              `json:"type"`
	PaymentID  uint                `json:"payment_id"`
	OwnerID    uint                `json:"owner_id"`
	CourseID   *uint               `json:"paid_course,omitempty"`
	LessonID   *uint               `json:"paid_lesson,omitempty"`
	Amount     decimal.Decimal     `json:"amount"`
	Method     model.PaymentMethod `json:"method"`
	Status     model.PaymentStatus `json:"status"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func newEvent(eventType string, p *model.Payment) Event {
	return Event{
		Type:       eventType,
		PaymentID:  p.ID,
		OwnerID:    p.OwnerID,
		CourseID:   p.PaidCourseID,
		LessonID:   p.PaidLessonID,
		Amount:     p.Amount,
		Method:     p.PaymentMethod,
		Status:     p.Status,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher delivers payment events
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher writes events to a single topic keyed by payment id,
// so all events of one payment land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher dials the brokers with a synchronous producer
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish implements EventPublisher
func (p *KafkaPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.PaymentID), 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
