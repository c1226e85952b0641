package store

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tfql/internal/querysql"
	"github.com/roach88/tfql/internal/testutil"
)

var scanColumns = []string{
	"transcript_id", "source_type", "source_id", "source_uri", "task_id", "model",
	"score", "success", "total_tokens", "created_at", "metadata",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, querysql.Postgres,
		WithClock(testutil.NewDeterministicClock(time.Time{}).Now),
		WithIDGenerator(testutil.NewSequentialIDs("pg").Next),
	)
	require.NoError(t, err)
	return s, mock
}

func TestPostgres_SelectNumbersPlaceholdersAfterSourceType(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM transcripts WHERE source_type = $1 AND ("score" > $2) ORDER BY transcript_id COLLATE "C" ASC LIMIT 10 OFFSET 5`,
	)).
		WithArgs("eval", 0.5).
		WillReturnRows(sqlmock.NewRows(scanColumns).
			AddRow("a", "eval", "run-1", "", nil, "gpt-4", 0.9, true, int64(1500), created, []byte(`{"k":1}`)))

	got, err := s.Select(context.Background(), mustParse(t, "score > 0.5"), QueryOptions{SourceType: "eval", Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)

	tr := got[0]
	assert.Equal(t, "a", tr.ID)
	assert.Equal(t, "", tr.TaskID)
	assert.Equal(t, "gpt-4", tr.Model)
	require.NotNil(t, tr.Score)
	assert.Equal(t, 0.9, *tr.Score)
	require.NotNil(t, tr.Success)
	assert.True(t, *tr.Success)
	assert.Equal(t, created, tr.CreatedAt)
	assert.Equal(t, map[string]any{"k": int64(1)}, tr.Metadata)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Count(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM transcripts WHERE ("model" IN ($1, $2))`)).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := s.Count(context.Background(), mustParse(t, "model IN ('a', 'b')"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WriteTranscript(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)).
		WithArgs("pg-000001", "", "", "", nil, "m", nil, true, nil, testutil.DefaultBase, "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.WriteTranscript(context.Background(), Transcript{Model: "m", Success: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "pg-000001", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveFilterUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (name) DO UPDATE SET`)).
		WithArgs("f", sqlmock.AnyArg(), sqlmock.AnyArg(), "2024-01-01T00:00:00").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.SaveFilter(context.Background(), "f", mustParse(t, "a = 1"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CorruptTimestamp(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM transcripts WHERE transcript_id = \\$1").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows(scanColumns).
			AddRow("x", "", "", "", nil, nil, nil, nil, nil, "yesterday", "{}"))

	_, err := s.ReadTranscript(context.Background(), "x")
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCorrupt, se.Code)
}

// TestPostgres_Integration runs against a real server when
// TFQL_TEST_POSTGRES_DSN is set.
func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("TFQL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TFQL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().ExecContext(ctx, "TRUNCATE transcripts, saved_filters")
	require.NoError(t, err)
	seedStore(t, s)

	got, err := s.Select(ctx, mustParse(t, "metadata.user.age >= 21 OR model ILIKE 'CLAUDE'"), QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, transcriptIDs(got))

	got, err = s.SelectByIDs(ctx, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, transcriptIDs(got))
}
