package event

import "time"

type ExportCompleted struct {
	RunID      string    `json:"run_id"`
	FeedURL    string    `json:"feed_url"`
	OutputPath string    `json:"output_path"`
	Format     string    `json:"format"`
	Offers     int       `json:"offers"`
	Categories int       `json:"categories"`
	Columns    []string  `json:"columns"`
	FinishedAt time.Time `json:"finished_at"`
}

func (e *ExportCompleted) EventType() string {
	return "ExportCompleted"
}

func (e *ExportCompleted) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
