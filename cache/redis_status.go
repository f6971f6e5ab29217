package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mxfedl/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	mediaStatusKey     = "media:%d:status"        // String: last StatusEvent JSON
	mediaStatusChannel = "media:%d:status:events" // Pub/Sub channel
	statusTTL          = 7 * 24 * time.Hour
)

// RedisStatusCache stores the last status per media file and publishes changes.
type RedisStatusCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisStatusCache creates a RedisStatusCache.
func NewRedisStatusCache(client *redis.Client, log *zap.Logger) *RedisStatusCache {
	return &RedisStatusCache{client: client, log: logger.OrNop(log)}
}

func (c *RedisStatusCache) Publish(ctx context.Context, ev StatusEvent) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(mediaStatusKey, ev.MediaID), data, statusTTL)
	pipe.Publish(ctx, fmt.Sprintf(mediaStatusChannel, ev.MediaID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish status for media %d: %w", ev.MediaID, err)
	}
	return nil
}

// Last returns the most recent event for mediaID, or nil when none is cached.
func (c *RedisStatusCache) Last(ctx context.Context, mediaID uint) (*StatusEvent, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(mediaStatusKey, mediaID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var ev StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status event: %w", err)
	}
	return &ev, nil
}

func (c *RedisStatusCache) Subscribe(ctx context.Context, mediaID uint) (<-chan StatusEvent, func(), error) {
	if c.client == nil {
		return nil, nil, fmt.Errorf("Redis client not initialized")
	}
	sub := c.client.Subscribe(ctx, fmt.Sprintf(mediaStatusChannel, mediaID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to media %d: %w", mediaID, err)
	}

	out := make(chan StatusEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				c.log.Warn("dropping malformed status event", logger.ErrorField(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { sub.Close() }
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return out, cancel, nil
}
