// Package ir provides the literal value model shared by every filter package.
//
// This package contains leaf types only. colpath, queryir, querysql and
// sqlparse import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Literal is sealed: Null, Bool, Int, Float, Str, Date, DateTime, List
//   - Dates and datetimes leave the tree as ISO-8601 text
//   - Canonical JSON (RFC 8785) is the only input to content hashes
package ir
