package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/sqlparse"
	"github.com/roach88/tfql/internal/testutil"
)

// createTestStore creates a new sqlite store in a temp dir with a
// deterministic clock and ID generator.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{
		WithClock(testutil.NewDeterministicClock(time.Time{}).Now),
		WithIDGenerator(testutil.NewSequentialIDs("gen").Next),
	}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// fixtureTranscripts is a small data set covering every nullable column.
func fixtureTranscripts() []Transcript {
	return []Transcript{
		{
			ID:          "a",
			SourceType:  "eval",
			SourceID:    "run-1",
			TaskID:      "task-1",
			Model:       "gpt-4",
			Score:       ptr(0.9),
			Success:     ptr(true),
			TotalTokens: ptr(int64(1500)),
			CreatedAt:   time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC),
			Metadata: map[string]any{
				"user": map[string]any{"tier": "pro", "age": int64(31)},
				"tags": []any{"x", "y"},
			},
		},
		{
			ID:          "b",
			SourceType:  "eval",
			SourceID:    "run-1",
			Model:       "claude",
			Score:       ptr(0.4),
			Success:     ptr(false),
			TotalTokens: ptr(int64(300)),
			CreatedAt:   time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
			Metadata: map[string]any{
				"user": map[string]any{"tier": "free", "age": int64(19)},
			},
		},
		{
			ID:         "c",
			SourceType: "prod",
			SourceID:   "run-2",
			CreatedAt:  time.Date(2024, time.March, 5, 18, 30, 0, 0, time.UTC),
		},
	}
}

// seedStore writes the fixture transcripts.
func seedStore(t *testing.T, s *Store) {
	t.Helper()
	for _, tr := range fixtureTranscripts() {
		if _, err := s.WriteTranscript(context.Background(), tr); err != nil {
			t.Fatalf("WriteTranscript(%s) failed: %v", tr.ID, err)
		}
	}
}

func mustParse(t *testing.T, where string) queryir.Condition {
	t.Helper()
	cond, err := sqlparse.Parse(where)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", where, err)
	}
	return cond
}

func transcriptIDs(ts []Transcript) []string {
	ids := make([]string, len(ts))
	for i, tr := range ts {
		ids[i] = tr.ID
	}
	return ids
}
