package querysql

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor a condition is rendered for.
type Dialect string

const (
	// SQLite renders JSON access with json_extract and `?` placeholders.
	SQLite Dialect = "sqlite"

	// DuckDB is the columnar-analytic dialect: json_extract_string and `?`.
	DuckDB Dialect = "duckdb"

	// Postgres renders arrow-operator extraction and `$n` placeholders.
	Postgres Dialect = "postgres"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{SQLite, DuckDB, Postgres}

// ParseDialect converts a dialect name. The family names sqlite-like,
// columnar-analytic and postgres-like are accepted as aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3", "sqlite-like":
		return SQLite, nil
	case "duckdb", "columnar-analytic":
		return DuckDB, nil
	case "postgres", "postgresql", "pgx", "postgres-like":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown dialect %q (valid: sqlite, duckdb, postgres)", s)
}

// Mode controls whether literal values are bound or embedded.
type Mode string

const (
	// Parameterized emits placeholders and returns the values separately.
	Parameterized Mode = "parameterized"

	// Inline embeds every literal in the SQL text.
	Inline Mode = "inline"
)

// ParseMode converts a mode name; "inline-literal" is accepted for Inline.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "parameterized", "params":
		return Parameterized, nil
	case "inline", "inline-literal":
		return Inline, nil
	}
	return "", fmt.Errorf("unknown mode %q (valid: parameterized, inline)", s)
}

func (d Dialect) valid() bool {
	return d == SQLite || d == DuckDB || d == Postgres
}

// Placeholder returns the n-th (1-based) bind marker.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// nativeILike reports whether the dialect has a case-insensitive LIKE.
func (d Dialect) nativeILike() bool {
	return d != SQLite
}
