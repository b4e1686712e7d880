package queue

import (
	"context"
	"fmt"

	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/domain/event"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Publisher appends export events to a stream per event type.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) (string, error) // Returns message ID
}

type RedisQueue struct {
	redisClient  redis.Cmdable
	streamPrefix string
	maxLen       int64
}

func NewRedisQueue(redisClient redis.Cmdable, cfg config.RedisConfig) *RedisQueue {
	return &RedisQueue{
		redisClient:  redisClient,
		streamPrefix: cfg.StreamPrefix,
		maxLen:       cfg.StreamMaxLen,
	}
}

// StreamName returns the stream an event type is published to.
func (q *RedisQueue) StreamName(eventType string) string {
	return q.streamPrefix + eventType
}

func (q *RedisQueue) Publish(ctx context.Context, e event.Event) (string, error) {
	eventType := e.EventType()
	streamName := q.StreamName(eventType)

	payload, err := e.EventValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize event: %w", err)
	}

	// Fields: event_type, event_data
	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		MaxLen: q.maxLen,
		Approx: q.maxLen > 0,
		Values: map[string]interface{}{
			"event_type": eventType,
			"event_data": string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added event %s to stream %s with message ID: %s", eventType, streamName, messageID)
	return messageID, nil
}
