package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
)

// SaveFilter stores cond under name, replacing any previous definition,
// and returns the condition's fingerprint.
func (s *Store) SaveFilter(ctx context.Context, name string, cond queryir.Condition) (string, error) {
	if name == "" {
		return "", &StoreError{Code: ErrCodeInvalidArgument, Message: "filter name must not be empty"}
	}

	data, err := queryir.MarshalJSON(cond)
	if err != nil {
		return "", &StoreError{Code: ErrCodeInvalidFilter, Message: fmt.Sprintf("save filter %q", name), Err: err}
	}
	fingerprint, err := queryir.Fingerprint(cond)
	if err != nil {
		return "", &StoreError{Code: ErrCodeInvalidFilter, Message: fmt.Sprintf("save filter %q", name), Err: err}
	}

	query := fmt.Sprintf(`
		INSERT INTO saved_filters (name, fingerprint, condition, updated_at)
		VALUES (%s)
		ON CONFLICT (name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			condition = excluded.condition,
			updated_at = excluded.updated_at
	`, s.placeholders(1, 4))

	updatedAt := ir.DateTime{Time: s.now().UTC()}.String()
	if _, err := s.db.ExecContext(ctx, query, name, fingerprint, string(data), updatedAt); err != nil {
		return "", fmt.Errorf("save filter %q: %w", name, err)
	}

	s.logger.Debug("saved filter", "name", name, "fingerprint", fingerprint)
	return fingerprint, nil
}

// GetFilter returns the saved filter row for name.
// Returns a NOT_FOUND StoreError if no filter has that name.
func (s *Store) GetFilter(ctx context.Context, name string) (SavedFilter, error) {
	query := "SELECT name, fingerprint, condition, updated_at FROM saved_filters WHERE name = " + s.dialect.Placeholder(1)
	f, err := scanSavedFilter(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return SavedFilter{}, notFound("filter %q not found", name)
	}
	return f, err
}

// LoadFilter returns the condition saved under name.
func (s *Store) LoadFilter(ctx context.Context, name string) (queryir.Condition, error) {
	f, err := s.GetFilter(ctx, name)
	if err != nil {
		return nil, err
	}
	cond, err := queryir.UnmarshalJSON([]byte(f.Condition))
	if err != nil {
		return nil, &StoreError{Code: ErrCodeCorrupt, Message: fmt.Sprintf("filter %q", name), Err: err}
	}
	return cond, nil
}

// ListFilters returns every saved filter ordered by name.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListFilters(ctx context.Context) ([]SavedFilter, error) {
	order := "name ASC"
	switch s.dialect {
	case querysql.SQLite:
		order = "name COLLATE BINARY ASC"
	case querysql.Postgres:
		order = `name COLLATE "C" ASC`
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, fingerprint, condition, updated_at FROM saved_filters ORDER BY "+order)
	if err != nil {
		return nil, fmt.Errorf("query saved filters: %w", err)
	}
	defer rows.Close()

	filters := []SavedFilter{}
	for rows.Next() {
		f, err := scanSavedFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved filters: %w", err)
	}
	return filters, nil
}

// DeleteFilter removes the filter saved under name.
// Returns a NOT_FOUND StoreError if no filter has that name.
func (s *Store) DeleteFilter(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_filters WHERE name = "+s.dialect.Placeholder(1), name)
	if err != nil {
		return fmt.Errorf("delete filter %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete filter %q: %w", name, err)
	}
	if n == 0 {
		return notFound("filter %q not found", name)
	}
	return nil
}

func scanSavedFilter(row rowScanner) (SavedFilter, error) {
	var f SavedFilter
	var updatedAt string
	if err := row.Scan(&f.Name, &f.Fingerprint, &f.Condition, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return SavedFilter{}, err
		}
		return SavedFilter{}, fmt.Errorf("scan saved filter: %w", err)
	}
	t, err := parseTimeText(updatedAt)
	if err != nil {
		return SavedFilter{}, &StoreError{Code: ErrCodeCorrupt, Message: fmt.Sprintf("filter %q updated_at", f.Name), Err: err}
	}
	f.UpdatedAt = t
	return f, nil
}
