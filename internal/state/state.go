package state

import (
	"context"
	"encoding/json"
	"fmt"

	"ymlfeed/exporter/internal/domain"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers per-feed validators between runs.
type StateManager interface {
	GetFeedState(ctx context.Context, feedURL string) (*domain.FeedState, error)
	SetFeedState(ctx context.Context, feedURL string, state *domain.FeedState) error
}

type redisStateManager struct {
	redisClient redis.Cmdable
	keyPrefix   string
}

func NewRedisStateManager(redisClient redis.Cmdable) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "ymlexport:feed:",
	}
}

func (s *redisStateManager) GetFeedState(ctx context.Context, feedURL string) (*domain.FeedState, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+feedURL).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Never exported
		}
		return nil, fmt.Errorf("failed to get state for feed %s: %w", feedURL, err)
	}

	var state domain.FeedState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to decode state for feed %s: %w", feedURL, err)
	}

	return &state, nil
}

func (s *redisStateManager) SetFeedState(ctx context.Context, feedURL string, state *domain.FeedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state for feed %s: %w", feedURL, err)
	}

	if err := s.redisClient.Set(ctx, s.keyPrefix+feedURL, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state for feed %s: %w", feedURL, err)
	}
	return nil
}
