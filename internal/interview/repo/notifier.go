package repo

import (
	"context"
	"encoding/json"
	"fmt"

	errx "github.com/mockflow-core-poc-v1/server/internal/core/error"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/redis/go-redis/v9"
)

// DefaultEventChannel is where session events are published for out-of-process observers.
const DefaultEventChannel = "interview:events"

// RedisNotifier publishes session events on a Redis pub/sub channel.
type RedisNotifier struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisNotifier(rdb redis.Cmdable, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Channel() string { return n.channel }

func (n *RedisNotifier) Notify(ctx context.Context, event model.Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.Notifier = (*RedisNotifier)(nil)
