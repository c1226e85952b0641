package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralSealed(t *testing.T) {
	// Verify all types implement Literal (compile-time check via assignment)
	var _ Literal = Null{}
	var _ Literal = Bool(true)
	var _ Literal = Int(42)
	var _ Literal = Float(0.5)
	var _ Literal = Str("test")
	var _ Literal = NewDate(2024, 1, 1)
	var _ Literal = NewDateTime(2024, 1, 1, 0, 0, 0)
	var _ Literal = List{Str("a"), Int(1)}
}

func TestKinds(t *testing.T) {
	tests := []struct {
		lit  Literal
		kind Kind
		name string
	}{
		{Null{}, KindNull, "null"},
		{Bool(false), KindBool, "bool"},
		{Int(1), KindInt, "int"},
		{Float(1), KindFloat, "float"},
		{Str(""), KindStr, "str"},
		{NewDate(2024, 2, 29), KindDate, "date"},
		{NewDateTime(2024, 2, 29, 23, 59, 59), KindDateTime, "datetime"},
		{List{}, KindList, "list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.lit.Kind())
			assert.Equal(t, tt.name, tt.kind.String())

			parsed, err := ParseKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed)
		})
	}

	_, err := ParseKind("decimal")
	assert.Error(t, err)
}

func TestDateFormatting(t *testing.T) {
	assert.Equal(t, "2024-01-05", NewDate(2024, time.January, 5).String())
	assert.Equal(t, "2024-01-05T09:08:07", NewDateTime(2024, time.January, 5, 9, 8, 7).String())

	frac := DateTime{time.Date(2024, 1, 5, 9, 8, 7, 500_000_000, time.UTC)}
	assert.Equal(t, "2024-01-05T09:08:07.5", frac.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.March, 1), d)

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)

	_, err = ParseDate("yesterday")
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"T separator", "2024-03-01T10:20:30", "2024-03-01T10:20:30"},
		{"space separator", "2024-03-01 10:20:30", "2024-03-01T10:20:30"},
		{"fractional", "2024-03-01T10:20:30.25", "2024-03-01T10:20:30.25"},
		{"bare date", "2024-03-01", "2024-03-01T00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, err := ParseDateTime(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dt.String())
		})
	}

	_, err := ParseDateTime("2024-03-01T25:00:00")
	assert.Error(t, err)
}

func TestFromGo(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  Literal
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int32", int32(-7), Int(-7)},
		{"uint16", uint16(9), Int(9)},
		{"float64", 0.25, Float(0.25)},
		{"float32", float32(0.5), Float(0.5)},
		{"string", "x", Str("x")},
		{"time", ts, DateTime{ts}},
		{"literal passthrough", NewDate(2024, 1, 1), NewDate(2024, 1, 1)},
		{"any slice", []any{"a", nil, 1}, List{Str("a"), Null{}, Int(1)}},
		{"string slice", []string{"a", "b"}, List{Str("a"), Str("b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoErrors(t *testing.T) {
	_, err := FromGo(struct{}{})
	assert.Error(t, err)

	_, err = FromGo(uint64(1 << 63))
	assert.Error(t, err)

	_, err = FromGo([]any{[]any{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested lists")
}

func TestToParam(t *testing.T) {
	tests := []struct {
		name string
		lit  Literal
		want any
	}{
		{"null", Null{}, nil},
		{"bool", Bool(true), true},
		{"int", Int(3), int64(3)},
		{"float", Float(1.5), 1.5},
		{"str", Str("s"), "s"},
		{"date", NewDate(2024, 1, 2), "2024-01-02"},
		{"datetime", NewDateTime(2024, 1, 2, 3, 4, 5), "2024-01-02T03:04:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToParam(tt.lit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ToParam(List{Int(1)})
	assert.Error(t, err)
}

func TestToGo(t *testing.T) {
	got := ToGo(List{Int(1), Null{}, NewDate(2024, 1, 2), Float(0.5)})
	assert.Equal(t, []any{int64(1), nil, "2024-01-02", 0.5}, got)
}

func TestIsNullAndFormat(t *testing.T) {
	assert.True(t, IsNull(Null{}))
	assert.True(t, IsNull(nil))
	assert.False(t, IsNull(Str("")))

	assert.Equal(t, `["a", NULL, 1]`, Format(List{Str("a"), Null{}, Int(1)}))
	assert.Equal(t, "DATE 2024-01-02", Format(NewDate(2024, 1, 2)))
}
