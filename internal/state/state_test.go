package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"ymlfeed/exporter/internal/domain"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the two commands the state manager uses.
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStateManager(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: make(map[string]string)}
	manager := NewRedisStateManager(fake)

	state, err := manager.GetFeedState(ctx, "http://feed")
	if err != nil || state != nil {
		t.Fatalf("expected no state for a new feed, got %+v, %v", state, err)
	}

	exportedAt := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	err = manager.SetFeedState(ctx, "http://feed", &domain.FeedState{ETag: `"v1"`, Offers: 3, ExportedAt: exportedAt})
	if err != nil {
		t.Fatalf("SetFeedState failed: %v", err)
	}
	if _, ok := fake.values["ymlexport:feed:http://feed"]; !ok {
		t.Fatalf("state stored under unexpected key: %v", fake.values)
	}

	state, err = manager.GetFeedState(ctx, "http://feed")
	if err != nil {
		t.Fatalf("GetFeedState failed: %v", err)
	}
	if state.ETag != `"v1"` || state.Offers != 3 || !state.ExportedAt.Equal(exportedAt) {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestRedisStateManager_Errors(t *testing.T) {
	ctx := context.Background()

	down := &fakeRedis{values: map[string]string{}, getErr: errors.New("connection refused")}
	if _, err := NewRedisStateManager(down).GetFeedState(ctx, "http://feed"); err == nil {
		t.Error("expected error when redis is down")
	}

	corrupt := &fakeRedis{values: map[string]string{"ymlexport:feed:http://feed": "{"}}
	if _, err := NewRedisStateManager(corrupt).GetFeedState(ctx, "http://feed"); err == nil {
		t.Error("expected decode error")
	}
}
