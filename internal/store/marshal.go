package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/querysql"
)

// marshalMetadata converts transcript metadata to canonical JSON TEXT.
// Values pass through encoding/json first so any JSON-marshalable Go
// value is accepted; numbers keep full precision via json.Number.
func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	plain, err := decodeJSONObject(data)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	canonical, err := ir.MarshalCanonical(plain)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(canonical), nil
}

// unmarshalMetadata accepts whatever the driver hands back for the
// metadata column: TEXT, bytes, or an already-decoded object.
func unmarshalMetadata(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return normalizeJSON(val).(map[string]any), nil
	case string:
		return decodeJSONObject([]byte(val))
	case []byte:
		return decodeJSONObject(val)
	}
	return nil, fmt.Errorf("unmarshal metadata: unexpected %T", v)
}

// decodeJSONObject decodes a JSON object, turning numbers into int64 when
// exact and float64 otherwise.
func decodeJSONObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if obj == nil {
		return map[string]any{}, nil
	}
	return normalizeJSON(obj).(map[string]any), nil
}

func normalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case float32:
		return float64(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeJSON(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeJSON(elem)
		}
		return out
	}
	return v
}

// timeParam renders created_at for the store's dialect. SQLite keeps ISO
// text so string comparisons against date literals order correctly.
func (s *Store) timeParam(t time.Time) any {
	t = t.UTC()
	if s.dialect == querysql.SQLite {
		return ir.DateTime{Time: t}.String()
	}
	return t
}

// parseTime accepts the driver's representation of a timestamp column.
func parseTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		return parseTimeText(val)
	case []byte:
		return parseTimeText(string(val))
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
}

func parseTimeText(s string) (time.Time, error) {
	if dt, err := ir.ParseDateTime(s); err == nil {
		return dt.Time, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
