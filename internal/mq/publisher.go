// Package mq publishes domain events to RabbitMQ for downstream consumers
// such as the email service.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys on the events exchange.
const (
	RoutingQRIssued  = "qr.issued"
	RoutingCheckedIn = "attendee.checked_in"
)

// QRIssued is published after a token is minted or rotated.
type QRIssued struct {
	AttendeeID string    `json:"attendee_id"`
	EventID    string    `json:"event_id"`
	Payload    string    `json:"payload"`
	ExpiresAt  time.Time `json:"expires_at"`
	ImageURL   string    `json:"image_url,omitempty"`
}

// AttendeeCheckedIn is published after a successful check-in.
type AttendeeCheckedIn struct {
	AttendeeID  string    `json:"attendee_id"`
	EventID     string    `json:"event_id"`
	Method      string    `json:"method"`
	DeviceID    string    `json:"device_id,omitempty"`
	StaffID     string    `json:"staff_id,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	conn     io.Closer
	ch       channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
func (Nop) Close() error { return nil }
