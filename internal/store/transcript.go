package store

import "time"

// Transcript is one row of the transcripts table.
//
// Nullable columns use pointers; empty TaskID and Model are stored as
// NULL so IS NULL filters find them.
type Transcript struct {
	ID          string         `json:"id"`
	SourceType  string         `json:"source_type"`
	SourceID    string         `json:"source_id,omitempty"`
	SourceURI   string         `json:"source_uri,omitempty"`
	TaskID      string         `json:"task_id,omitempty"`
	Model       string         `json:"model,omitempty"`
	Score       *float64       `json:"score"`
	Success     *bool          `json:"success"`
	TotalTokens *int64         `json:"total_tokens"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// QueryOptions narrows and pages a Select.
type QueryOptions struct {
	// SourceType restricts rows to one source type when non-empty.
	SourceType string

	// Limit caps the number of rows; 0 means no limit.
	Limit int

	// Offset skips rows after ordering.
	Offset int
}

// SavedFilter is a named condition persisted in the store.
type SavedFilter struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Condition   string    `json:"condition"` // JSON plain form
	UpdatedAt   time.Time `json:"updated_at"`
}

// transcriptColumns lists the columns in scan order.
const transcriptColumns = `transcript_id, source_type, source_id, source_uri, task_id, model,
	score, success, total_tokens, created_at, metadata`

// columnMapping maps condition columns onto the table's column names.
var columnMapping = map[string]string{"id": "transcript_id"}
