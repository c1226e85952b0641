package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
)

// Select returns the transcripts matching cond. A nil cond matches every
// row. Results are ordered by transcript_id using byte order on every
// engine.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Select(ctx context.Context, cond queryir.Condition, opts QueryOptions) ([]Transcript, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, &StoreError{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("limit and offset must not be negative, got %d and %d", opts.Limit, opts.Offset),
		}
	}

	where, args, err := s.where(cond, opts.SourceType)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + transcriptColumns + " FROM transcripts" + where + " ORDER BY " + s.orderByID()
	if opts.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit == 0 && s.dialect == querysql.SQLite {
			query += " LIMIT -1"
		}
		query += " OFFSET " + strconv.Itoa(opts.Offset)
	}

	return s.queryTranscripts(ctx, query, args)
}

// Count returns the number of transcripts matching cond. A nil cond counts
// every row.
func (s *Store) Count(ctx context.Context, cond queryir.Condition) (int64, error) {
	where, args, err := s.where(cond, "")
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM transcripts" + where
	s.logger.Debug("count", "sql", query, "params", len(args))

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transcripts: %w", err)
	}
	return n, nil
}

// SelectByIDs returns the transcripts with the given IDs, in transcript_id
// order. Large ID sets are split across statements so none binds more than
// the store's parameter budget, and each statement's IN list is chunked
// with queryir.ChunkMembership.
func (s *Store) SelectByIDs(ctx context.Context, ids []string) ([]Transcript, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	result := []Transcript{}
	if len(unique) == 0 {
		return result, nil
	}

	path := colpath.MustParse("id")
	for start := 0; start < len(unique); start += s.maxParams {
		end := min(start+s.maxParams, len(unique))

		values := make([]ir.Literal, 0, end-start)
		for _, id := range unique[start:end] {
			values = append(values, ir.Str(id))
		}
		cond, err := queryir.ChunkMembership(path, values, queryir.OpIn, queryir.DefaultChunkLimit)
		if err != nil {
			return nil, err
		}

		where, args, err := s.where(cond, "")
		if err != nil {
			return nil, err
		}
		query := "SELECT " + transcriptColumns + " FROM transcripts" + where + " ORDER BY " + s.orderByID()
		batch, err := s.queryTranscripts(ctx, query, args)
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}

	if len(unique) > s.maxParams {
		sortTranscripts(result)
	}
	return result, nil
}

// ReadTranscript retrieves a single transcript by ID.
// Returns a NOT_FOUND StoreError if no row has that ID.
func (s *Store) ReadTranscript(ctx context.Context, id string) (Transcript, error) {
	query := "SELECT " + transcriptColumns + " FROM transcripts WHERE transcript_id = " + s.dialect.Placeholder(1)
	t, err := scanTranscript(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return Transcript{}, notFound("transcript %q not found", id)
	}
	return t, err
}

// where renders the WHERE clause for an optional source-type restriction
// and condition. The condition's placeholders are numbered after the
// source-type parameter.
func (s *Store) where(cond queryir.Condition, sourceType string) (string, []any, error) {
	var clauses []string
	args := []any{}

	if sourceType != "" {
		args = append(args, sourceType)
		clauses = append(clauses, "source_type = "+s.dialect.Placeholder(len(args)))
	}

	if cond != nil {
		c, err := querysql.NewCompiler(s.dialect,
			querysql.WithPlaceholderOffset(len(args)),
			querysql.WithColumnMapping(columnMapping),
		)
		if err != nil {
			return "", nil, err
		}
		stmt, err := c.Compile(cond)
		if err != nil {
			return "", nil, &StoreError{Code: ErrCodeInvalidFilter, Message: "compile condition", Err: err}
		}
		condArgs, err := stmt.Args()
		if err != nil {
			return "", nil, &StoreError{Code: ErrCodeInvalidFilter, Message: "bind condition", Err: err}
		}
		clauses = append(clauses, "("+stmt.SQL+")")
		args = append(args, condArgs...)
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// orderByID sorts by transcript_id in byte order.
func (s *Store) orderByID() string {
	switch s.dialect {
	case querysql.SQLite:
		return "transcript_id COLLATE BINARY ASC"
	case querysql.Postgres:
		return `transcript_id COLLATE "C" ASC`
	default:
		return "transcript_id ASC"
	}
}

func (s *Store) queryTranscripts(ctx context.Context, query string, args []any) ([]Transcript, error) {
	s.logger.Debug("select", "sql", query, "params", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}

	// Return empty slice instead of nil
	if transcripts == nil {
		transcripts = []Transcript{}
	}

	return transcripts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTranscript scans a row selected with transcriptColumns.
func scanTranscript(row rowScanner) (Transcript, error) {
	var t Transcript
	var taskID, model sql.NullString
	var score sql.NullFloat64
	var success sql.NullBool
	var totalTokens sql.NullInt64
	var createdAt, metadata any

	if err := row.Scan(
		&t.ID, &t.SourceType, &t.SourceID, &t.SourceURI, &taskID, &model,
		&score, &success, &totalTokens, &createdAt, &metadata,
	); err != nil {
		if err == sql.ErrNoRows {
			return Transcript{}, err
		}
		return Transcript{}, fmt.Errorf("scan transcript: %w", err)
	}

	t.TaskID = taskID.String
	t.Model = model.String
	if score.Valid {
		t.Score = &score.Float64
	}
	if success.Valid {
		t.Success = &success.Bool
	}
	if totalTokens.Valid {
		t.TotalTokens = &totalTokens.Int64
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Transcript{}, &StoreError{Code: ErrCodeCorrupt, Message: fmt.Sprintf("transcript %q created_at", t.ID), Err: err}
	}
	if t.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return Transcript{}, &StoreError{Code: ErrCodeCorrupt, Message: fmt.Sprintf("transcript %q metadata", t.ID), Err: err}
	}

	return t, nil
}

// sortTranscripts orders by ID in byte order, matching orderByID.
func sortTranscripts(ts []Transcript) {
	slices.SortFunc(ts, func(a, b Transcript) int { return strings.Compare(a.ID, b.ID) })
}
