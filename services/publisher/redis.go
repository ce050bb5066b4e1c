package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using a Redis stream. Each accepted
// listing is appended as one entry; the downstream marketplace backend
// consumes the stream to refresh its catalog.
type RedisPublisher struct {
	client    *redis.Client
	ctx       context.Context
	stream    string
	maxLength int64
}

// NewRedisPublisher creates a new Redis stream publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, maxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		ctx:       ctx,
		stream:    stream,
		maxLength: maxLength,
	}
}

// Publish appends one listing payload to the stream, bounded approximately by
// the configured max length.
func (p *RedisPublisher) Publish(leafKey string, message []byte) error {
	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLength,
		Approx: true,
		Values: map[string]interface{}{
			"leaf":    leafKey,
			"listing": string(message),
		},
	}).Err()
}

// TrimStream trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStream() error {
	return p.client.XTrimMaxLen(p.ctx, p.stream, p.maxLength).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
