package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nebulium/authcore/structs"
)

// AMQPSink publishes security events to a RabbitMQ topic exchange, one
// routing key per event type.
type AMQPSink struct {
	conn     *amqp.Connection
	exchange string
	mu       sync.Mutex
}

// NewAMQPSink dials the broker and declares the exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	err = ch.ExchangeDeclare(
		exchange, // exchange name
		"topic",  // exchange type
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPSink{conn: conn, exchange: exchange}, nil
}

// IsConnected checks if the connection is valid.
func (s *AMQPSink) IsConnected() bool {
	return s.conn != nil && !s.conn.IsClosed()
}

func (s *AMQPSink) Publish(ctx context.Context, event *structs.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsConnected() {
		return fmt.Errorf("rabbitmq connection is not available")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err = ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to put channel in confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = ch.PublishWithContext(
		publishCtx,
		s.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirmed, ok := <-confirms:
		if !ok {
			return fmt.Errorf("confirmation channel closed")
		}
		if !confirmed.Ack {
			return fmt.Errorf("failed to receive publish confirmation")
		}
	case <-publishCtx.Done():
		return fmt.Errorf("publish confirmation timed out")
	}
	return nil
}

// Close shuts the broker connection down.
func (s *AMQPSink) Close() error {
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}
