package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ymlfeed/exporter/internal/client"
	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/domain"
	"ymlfeed/exporter/internal/domain/event"
	"ymlfeed/exporter/internal/export"
	"ymlfeed/exporter/internal/observability"
	"ymlfeed/exporter/internal/parser"
	"ymlfeed/exporter/internal/sink"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const sofaFeed = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog><shop>
<categories><category id="1">Sofas</category></categories>
<offers><offer id="X"><categoryId>1</categoryId><name>A</name><price>10</price></offer></offers>
</shop></yml_catalog>`

const sofaCSV = "id;category_name;pictures;name;price\nX;Sofas;;A;10\n"

type fakeState struct {
	prev   *domain.FeedState
	getErr error
	saved  *domain.FeedState
}

func (f *fakeState) GetFeedState(ctx context.Context, feedURL string) (*domain.FeedState, error) {
	return f.prev, f.getErr
}

func (f *fakeState) SetFeedState(ctx context.Context, feedURL string, state *domain.FeedState) error {
	f.saved = state
	return nil
}

type fakePublisher struct {
	events []event.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e event.Event) (string, error) {
	f.events = append(f.events, e)
	return "1-0", nil
}

type fakeRepository struct {
	offers []*domain.Offer
	err    error
}

func (f *fakeRepository) EnsureSchema(ctx context.Context) error {
	return nil
}

func (f *fakeRepository) SaveOffers(ctx context.Context, feedURL, runID string, offers []*domain.Offer) error {
	if f.err != nil {
		return f.err
	}
	f.offers = offers
	return nil
}

type fixture struct {
	service   *Service
	state     *fakeState
	publisher *fakePublisher
	repo      *fakeRepository
	metrics   *observability.Metrics
}

func newFixture(t *testing.T, conditional bool) *fixture {
	t.Helper()

	feedClient := client.NewFeedClient(config.FeedConfig{Timeout: 5, UserAgent: "ymlexport-test"}, nil)
	t.Cleanup(func() { feedClient.Close() })

	f := &fixture{
		state:     &fakeState{},
		publisher: &fakePublisher{},
		repo:      &fakeRepository{},
		metrics:   observability.NewMetrics(),
	}
	f.service = NewService(
		feedClient,
		parser.NewFeedParser(parser.Options{}),
		f.state,
		f.publisher,
		f.repo,
		f.metrics,
		Options{
			Sink:        sink.Options{Delimiter: ';'},
			Export:      export.Options{},
			Conditional: conditional,
		},
	)

	return f
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	return server
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExport_WritesCSV(t *testing.T) {
	server := serveFeed(t, sofaFeed)
	f := newFixture(t, false)
	dir := t.TempDir()
	out := filepath.Join(dir, "items.csv")

	summary, err := f.service.Export(context.Background(), server.URL, out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != sofaCSV {
		t.Errorf("expected %q, got %q", sofaCSV, data)
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Errorf("expected only the output file, got %v", names)
	}

	if summary.Offers != 1 || summary.Categories != 1 || summary.Skipped || summary.RunID == "" {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.Columns) != 5 {
		t.Errorf("unexpected columns %v", summary.Columns)
	}

	if f.state.saved == nil || f.state.saved.ETag != `"v1"` || f.state.saved.Offers != 1 {
		t.Errorf("unexpected saved state %+v", f.state.saved)
	}
	if len(f.repo.offers) != 1 || f.repo.offers[0].ID != "X" {
		t.Errorf("unexpected mirrored offers %v", f.repo.offers)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.publisher.events))
	}
	completed, ok := f.publisher.events[0].(*event.ExportCompleted)
	if !ok || completed.RunID != summary.RunID || completed.Format != sink.FormatCSV || completed.Offers != 1 {
		t.Errorf("unexpected event %+v", f.publisher.events[0])
	}

	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.RowsWritten); got != 1 {
		t.Errorf("expected 1 row written, got %v", got)
	}
}

func TestExport_XLSX(t *testing.T) {
	server := serveFeed(t, sofaFeed)
	f := newFixture(t, false)
	out := filepath.Join(t.TempDir(), "items.xlsx")

	if _, err := f.service.Export(context.Background(), server.URL, out); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected xlsx output, got %v", err)
	}
	completed := f.publisher.events[0].(*event.ExportCompleted)
	if completed.Format != sink.FormatXLSX {
		t.Errorf("expected xlsx format in event, got %q", completed.Format)
	}
}

func TestExport_FailureKeepsPreviousOutput(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		repoErr error
		check   func(t *testing.T, err error)
	}{
		{
			name: "fetch error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				var fetchErr *domain.FetchError
				if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusBadGateway {
					t.Errorf("expected FetchError 502, got %v", err)
				}
			},
		},
		{
			name: "malformed feed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `<yml_catalog><offers><offer id="X"><name>A</offers>`)
			},
			check: func(t *testing.T, err error) {
				var parseErr *domain.ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("expected ParseError, got %T: %v", err, err)
				}
			},
		},
		{
			name: "mirror error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, sofaFeed)
			},
			repoErr: errors.New("connection reset"),
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected mirror error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			f := newFixture(t, false)
			f.repo.err = tt.repoErr

			dir := t.TempDir()
			out := filepath.Join(dir, "items.csv")
			if err := os.WriteFile(out, []byte("old"), 0o644); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			summary, err := f.service.Export(context.Background(), server.URL, out)
			if summary != nil {
				t.Errorf("expected no summary, got %+v", summary)
			}
			tt.check(t, err)

			data, _ := os.ReadFile(out)
			if string(data) != "old" {
				t.Errorf("previous output replaced: %q", data)
			}
			if names := dirEntries(t, dir); len(names) != 1 {
				t.Errorf("temporary files left behind: %v", names)
			}
			if len(f.publisher.events) != 0 || f.state.saved != nil {
				t.Error("failed run must not publish or save state")
			}
			if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("error")); got != 1 {
				t.Errorf("expected 1 failed run, got %v", got)
			}
		})
	}
}

func TestExport_NoOutputOnFirstFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "")
	}))
	defer server.Close()

	f := newFixture(t, false)
	dir := t.TempDir()
	out := filepath.Join(dir, "items.csv")

	_, err := f.service.Export(context.Background(), server.URL, out)

	var parseErr *domain.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError for empty document, got %v", err)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected empty directory, got %v", names)
	}
}

func TestExport_NotModifiedSkips(t *testing.T) {
	server := serveFeed(t, sofaFeed)
	f := newFixture(t, true)
	f.state.prev = &domain.FeedState{ETag: `"v1"`, Offers: 1}

	dir := t.TempDir()
	out := filepath.Join(dir, "items.csv")
	if err := os.WriteFile(out, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	summary, err := f.service.Export(context.Background(), server.URL, out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !summary.Skipped {
		t.Error("expected skipped run")
	}

	data, _ := os.ReadFile(out)
	if string(data) != "old" {
		t.Errorf("skipped run touched output: %q", data)
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Errorf("temporary files left behind: %v", names)
	}
	if len(f.publisher.events) != 0 {
		t.Error("skipped run must not publish")
	}
	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("skipped")); got != 1 {
		t.Errorf("expected 1 skipped run, got %v", got)
	}
}

func TestExport_ConditionalNeedsPreviousOutput(t *testing.T) {
	server := serveFeed(t, sofaFeed)
	f := newFixture(t, true)
	f.state.prev = &domain.FeedState{ETag: `"v1"`}

	out := filepath.Join(t.TempDir(), "items.csv")

	summary, err := f.service.Export(context.Background(), server.URL, out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if summary.Skipped {
		t.Error("run without previous output must not be skipped")
	}

	data, _ := os.ReadFile(out)
	if string(data) != sofaCSV {
		t.Errorf("expected %q, got %q", sofaCSV, data)
	}
}

func TestExport_Cancelled(t *testing.T) {
	server := serveFeed(t, sofaFeed)
	f := newFixture(t, false)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Export(ctx, server.URL, filepath.Join(dir, "items.csv"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected empty directory, got %v", names)
	}
}
