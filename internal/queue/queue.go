package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stemworker/internal/config"
)

// Queue is a durable FIFO of encoded messages.
type Queue interface {
	// Push appends a message.
	Push(ctx context.Context, m Message) error
	// Pop waits up to timeout for the next payload. ok is false when the
	// wait expired without a message.
	Pop(ctx context.Context, timeout time.Duration) (payload []byte, ok bool, err error)
	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the backend selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Queue.Backend)) {
	case "", "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.Queue.RedisAddr,
			DB:       cfg.Queue.RedisDB,
			Password: cfg.Queue.RedisPassword,
			Key:      cfg.Queue.Key,
		})
	case "amqp":
		return NewAMQP(cfg.Queue.AMQPURL, cfg.Queue.Key)
	default:
		return nil, fmt.Errorf("queue backend %q is not supported", cfg.Queue.Backend)
	}
}
