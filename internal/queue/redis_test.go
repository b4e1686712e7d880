package queue

import (
	"context"
	"testing"

	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

type fakeStreams struct {
	redis.Cmdable
	added []*redis.XAddArgs
}

func (f *fakeStreams) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a)
	return redis.NewStringResult("1-0", nil)
}

func TestRedisQueue_Publish(t *testing.T) {
	fake := &fakeStreams{}
	q := NewRedisQueue(fake, config.RedisConfig{StreamPrefix: "ymlexport:stream:", StreamMaxLen: 100})

	id, err := q.Publish(context.Background(), &event.ExportCompleted{RunID: "run-1", Offers: 2})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "1-0" {
		t.Errorf("unexpected message id %q", id)
	}

	if len(fake.added) != 1 {
		t.Fatalf("expected 1 XADD, got %d", len(fake.added))
	}
	args := fake.added[0]
	if args.Stream != "ymlexport:stream:ExportCompleted" {
		t.Errorf("unexpected stream %q", args.Stream)
	}
	if args.MaxLen != 100 || !args.Approx {
		t.Errorf("unexpected trimming %d/%v", args.MaxLen, args.Approx)
	}

	values := args.Values.(map[string]interface{})
	if values["event_type"] != "ExportCompleted" {
		t.Errorf("unexpected event_type %v", values["event_type"])
	}

	decoded, err := event.UnmarshalEvent[*event.ExportCompleted]([]byte(values["event_data"].(string)))
	if err != nil || decoded.RunID != "run-1" {
		t.Errorf("unexpected payload %v, %v", decoded, err)
	}
}
