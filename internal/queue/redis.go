package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the list the worker consumes when none is configured.
const DefaultKey = "logic-processing"

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	DB       int
	Password string
	Key      string
}

// Redis is a list-backed queue: producers LPUSH and the consumer BRPOPs.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisWithClient(client, opts.Key), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Push(ctx context.Context, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	res, err := r.client.BRPop(ctx, timeout, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis brpop %s: %w", r.key, err)
	}
	if len(res) < 2 {
		return nil, false, fmt.Errorf("redis brpop %s: unexpected reply %v", r.key, res)
	}
	return []byte(res[1]), true, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
