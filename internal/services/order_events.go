package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/example/champaran-pos/internal/models"
)

// Event types carried in the event_type header.
const (
	EventOrderReceived      = "order.received"
	EventOrderStatusChanged = "order.status_changed"
)

// DefaultOrderTopic is used when no topic is configured.
const DefaultOrderTopic = "pos-orders"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventPublisher emits intake order events to Kafka, keyed by order
// number so events for one order stay ordered.
type OrderEventPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewOrderEventPublisher builds a publisher writing to topic on brokers.
func NewOrderEventPublisher(topic string, brokers ...string) *OrderEventPublisher {
	if topic == "" {
		topic = DefaultOrderTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewOrderEventPublisherWithWriter(w)
}

// NewOrderEventPublisherWithWriter wraps an existing writer.
func NewOrderEventPublisherWithWriter(w MessageWriter) *OrderEventPublisher {
	return &OrderEventPublisher{writer: w, now: time.Now}
}

func (p *OrderEventPublisher) Name() string { return "kafka" }

// OrderEvent is the JSON value of every published message.
type OrderEvent struct {
	Type           string              `json:"type"`
	OrderNumber    string              `json:"order_number"`
	Status         string              `json:"status"`
	PreviousStatus string              `json:"previous_status,omitempty"`
	GrandTotal     int64               `json:"grand_total"`
	Order          *models.OrderRecord `json:"order,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// NotifyNewOrder publishes an order.received event with the full record.
func (p *OrderEventPublisher) NotifyNewOrder(ctx context.Context, order models.OrderRecord) error {
	return p.publish(ctx, OrderEvent{
		Type:        EventOrderReceived,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		GrandTotal:  order.GrandTotal,
		Order:       &order,
	})
}

// NotifyStatusChange publishes an order.status_changed event.
func (p *OrderEventPublisher) NotifyStatusChange(ctx context.Context, order models.OrderRecord, previous string) error {
	return p.publish(ctx, OrderEvent{
		Type:           EventOrderStatusChanged,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PreviousStatus: previous,
		GrandTotal:     order.GrandTotal,
	})
}

func (p *OrderEventPublisher) publish(ctx context.Context, ev OrderEvent) error {
	ev.OccurredAt = p.now().UTC()
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode order event")
	}

	msg := kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	return errors.Wrapf(p.writer.WriteMessages(ctx, msg), "publish %s for %s", ev.Type, ev.OrderNumber)
}

// Close flushes and closes the underlying writer.
func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
