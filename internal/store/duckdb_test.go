package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tfql/internal/querysql"
)

func createDuckDBStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDuckDB_Select(t *testing.T) {
	s := createDuckDBStore(t)
	require.Equal(t, querysql.DuckDB, s.Dialect())
	seedStore(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		where string
		want  []string
	}{
		{"equality", "model = 'gpt-4'", []string{"a"}},
		{"is null", "model IS NULL", []string{"c"}},
		{"boolean", "success = FALSE", []string{"b"}},
		{"nested text", "metadata.user.tier = 'free'", []string{"b"}},
		{"nested number", "metadata.user.age < 21", []string{"b"}},
		{"nested pattern", "metadata.user.tier LIKE 'p%'", []string{"a"}},
		{"ilike", "model ILIKE 'GPT%'", []string{"a"}},
		{"membership with null", "model IN ('claude', NULL)", []string{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Select(ctx, mustParse(t, tt.where), QueryOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, transcriptIDs(got))
		})
	}
}

func TestDuckDB_ReadTranscript(t *testing.T) {
	s := createDuckDBStore(t)
	seedStore(t, s)

	want := fixtureTranscripts()[0]
	got, err := s.ReadTranscript(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, want.Model, got.Model)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
	assert.Equal(t, "pro", got.Metadata["user"].(map[string]any)["tier"])
}

func TestDuckDB_SavedFilters(t *testing.T) {
	s := createDuckDBStore(t)
	ctx := context.Background()

	_, err := s.SaveFilter(ctx, "f", mustParse(t, "a = 1"))
	require.NoError(t, err)
	_, err = s.SaveFilter(ctx, "f", mustParse(t, "a = 2"))
	require.NoError(t, err)

	cond, err := s.LoadFilter(ctx, "f")
	require.NoError(t, err)
	assert.True(t, cond != nil)

	filters, err := s.ListFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, filters, 1)
}
