package event

import (
	"testing"
	"time"
)

func TestExportCompletedRoundTrip(t *testing.T) {
	finished := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	in := &ExportCompleted{
		RunID:      "run-1",
		FeedURL:    "http://example.com/feed.yml",
		OutputPath: "items.csv",
		Format:     "csv",
		Offers:     2,
		Categories: 1,
		Columns:    []string{"id", "category_name", "pictures", "name"},
		FinishedAt: finished,
	}

	if in.EventType() != "ExportCompleted" {
		t.Fatalf("unexpected event type %q", in.EventType())
	}

	data, err := in.EventValue()
	if err != nil {
		t.Fatalf("EventValue failed: %v", err)
	}

	out, err := UnmarshalEvent[*ExportCompleted](data)
	if err != nil {
		t.Fatalf("UnmarshalEvent failed: %v", err)
	}

	if out.RunID != in.RunID || out.Offers != 2 || !out.FinishedAt.Equal(finished) {
		t.Errorf("round trip mismatch: got %+v", out)
	}
	if len(out.Columns) != 4 || out.Columns[3] != "name" {
		t.Errorf("columns mismatch: got %v", out.Columns)
	}
}
