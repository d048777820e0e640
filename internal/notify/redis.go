package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carecall/carecall/internal/models"
	"github.com/redis/go-redis/v9"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamPublisher appends each message to a Redis stream named after the topic.
type RedisStreamPublisher struct {
	client streamAdder
	// MaxLen trims each stream approximately to this many entries; 0 keeps everything.
	MaxLen int64
}

// NewRedisStreamPublisher connects to addr.
func NewRedisStreamPublisher(addr, password string, db int) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		MaxLen: 10000,
	}
}

func (p *RedisStreamPublisher) Name() string { return "redis" }

func (p *RedisStreamPublisher) Publish(ctx context.Context, topic string, msg models.NotificationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"type":      string(msg.Type),
			"urgency":   string(msg.Urgency),
			"recipient": msg.Recipient,
			"data":      string(data),
			"timestamp": msg.Timestamp.Unix(),
		},
	}
	if p.MaxLen > 0 {
		args.MaxLen = p.MaxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *RedisStreamPublisher) Close() error {
	if c, ok := p.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
