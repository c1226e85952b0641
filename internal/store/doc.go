// Package store keeps transcript metadata in SQL and answers filter
// queries against it.
//
// Three engines are supported through database/sql:
//   - sqlite (github.com/mattn/go-sqlite3), the default, via Open
//   - duckdb (github.com/duckdb/duckdb-go/v2) via OpenDuckDB
//   - postgres (github.com/jackc/pgx/v5/stdlib) via OpenPostgres
//
// Conditions are compiled by querysql for the store's dialect in
// parameterized mode; the store never splices literal values into SQL.
//
// # Deterministic Query Results
//
// Every transcript query ends with ORDER BY transcript_id using a binary
// collation, so identical data yields identical result order on every
// engine.
//
// # Saved Filters
//
// Named conditions are stored as JSON plain form next to their
// queryir.Fingerprint. Saving the same structure under a new name yields
// the same fingerprint.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
