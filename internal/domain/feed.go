package domain

import "time"

// FeedMeta describes the HTTP response the feed was read from.
type FeedMeta struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"status_code"`
	ETag          string `json:"etag,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	ContentLength int64  `json:"content_length"`
}

// FeedState is what is remembered about a feed between runs.
type FeedState struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Offers       int       `json:"offers"`
	ExportedAt   time.Time `json:"exported_at"`
}

// Summary is the outcome of one export run.
type Summary struct {
	RunID        string        `json:"run_id"`
	FeedURL      string        `json:"feed_url"`
	OutputPath   string        `json:"output_path"`
	Categories   int           `json:"categories"`
	Offers       int           `json:"offers"`
	Columns      []string      `json:"columns"`
	LookupMisses int           `json:"lookup_misses"`
	BytesRead    int64         `json:"bytes_read"`
	Skipped      bool          `json:"skipped"`
	Duration     time.Duration `json:"duration"`
}
