package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP is a durable RabbitMQ queue consumed with a prefetch of one.
type AMQP struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewAMQP dials url and declares the durable queue.
func NewAMQP(url, queue string) (*AMQP, error) {
	if queue == "" {
		queue = DefaultKey
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &AMQP{conn: conn, channel: ch, queue: queue}, nil
}

func (a *AMQP) Push(ctx context.Context, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	err = a.channel.PublishWithContext(ctx, "", a.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", a.queue, err)
	}
	return nil
}

// Pop starts consuming on first use so a producer-only client never holds
// an unacknowledged delivery.
func (a *AMQP) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	deliveries, err := a.consume()
	if err != nil {
		return nil, false, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-timer.C:
		return nil, false, nil
	case d, ok := <-deliveries:
		if !ok {
			return nil, false, errors.New("amqp delivery channel closed")
		}
		if err := d.Ack(false); err != nil {
			return nil, false, fmt.Errorf("amqp ack: %w", err)
		}
		return d.Body, true, nil
	}
}

func (a *AMQP) consume() (<-chan amqp.Delivery, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deliveries != nil {
		return a.deliveries, nil
	}
	deliveries, err := a.channel.Consume(a.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume %s: %w", a.queue, err)
	}
	a.deliveries = deliveries
	return deliveries, nil
}

func (a *AMQP) Ping(context.Context) error {
	if a.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

func (a *AMQP) Close() error {
	_ = a.channel.Close()
	return a.conn.Close()
}
