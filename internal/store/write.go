package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tfql/internal/querysql"
)

// WriteTranscript inserts a transcript and returns its ID.
// Uses ON CONFLICT(transcript_id) DO NOTHING for idempotency - writing the
// same ID twice keeps the first row.
//
// An empty ID is filled with a generated UUID and a zero CreatedAt with the
// store clock. Metadata is stored as canonical JSON.
func (s *Store) WriteTranscript(ctx context.Context, t Transcript) (string, error) {
	if t.ID == "" {
		t.ID = s.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return "", &StoreError{Code: ErrCodeInvalidArgument, Message: "write transcript", Err: err}
	}

	var success any
	if t.Success != nil {
		success = *t.Success
		if s.dialect == querysql.SQLite {
			success = boolInt(*t.Success)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO transcripts (%s)
		VALUES (%s)
		ON CONFLICT (transcript_id) DO NOTHING
	`, transcriptColumns, s.placeholders(1, 11))

	_, err = s.db.ExecContext(ctx, query,
		t.ID,
		t.SourceType,
		t.SourceID,
		t.SourceURI,
		nullString(t.TaskID),
		nullString(t.Model),
		t.Score,
		success,
		t.TotalTokens,
		s.timeParam(t.CreatedAt),
		metadata,
	)
	if err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	s.logger.Debug("wrote transcript", "id", t.ID)
	return t.ID, nil
}

// placeholders renders n comma-separated placeholders numbered from start.
func (s *Store) placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
