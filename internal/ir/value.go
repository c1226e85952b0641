package ir

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Literal is a sealed interface over the constant values a filter condition
// can carry. Only Null, Bool, Int, Float, Str, Date, DateTime and List
// implement it, so type switches in the compiler and serializer are
// exhaustive.
type Literal interface {
	Kind() Kind
	literal() // Sealed - only these types implement it
}

// Kind tags the variant of a Literal.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindDate
	KindDateTime
	KindList
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindStr:      "str",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindList:     "list",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown literal kind %q", s)
}

// Null is the SQL NULL literal.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) literal()   {}

// Bool is a boolean literal.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) literal()   {}

// Int is a 64-bit integer literal.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) literal()   {}

// Float is a double-precision literal.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) literal()   {}

// Str is a text literal.
type Str string

func (Str) Kind() Kind { return KindStr }
func (Str) literal()   {}

// Date is a calendar date. The embedded time is always midnight UTC.
type Date struct {
	time.Time
}

func (Date) Kind() Kind { return KindDate }
func (Date) literal()   {}

// String renders YYYY-MM-DD.
func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// DateTime is a date and wall-clock time without a retained offset.
type DateTime struct {
	time.Time
}

func (DateTime) Kind() Kind { return KindDateTime }
func (DateTime) literal()   {}

// String renders YYYY-MM-DDTHH:MM:SS, with a fractional part only when
// the value has sub-second precision.
func (dt DateTime) String() string {
	if dt.Time.Nanosecond() == 0 {
		return dt.Time.Format(DateTimeLayout)
	}
	return dt.Time.Format(DateTimeLayout + ".999999999")
}

// List is an ordered sequence of literals, used by IN, NOT IN and BETWEEN.
type List []Literal

func (List) Kind() Kind { return KindList }
func (List) literal()   {}

// ISO-8601 layouts used everywhere a date leaves the tree.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// NewDate creates a Date literal.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// NewDateTime creates a DateTime literal with second precision.
func NewDateTime(year int, month time.Month, day, hour, min, sec int) DateTime {
	return DateTime{time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// ParseDateTime parses YYYY-MM-DDTHH:MM:SS[.fff]. A space is accepted in
// place of the T separator, and a bare date is read as midnight.
func ParseDateTime(s string) (DateTime, error) {
	text := strings.TrimSpace(s)
	if len(text) > 10 && text[10] == ' ' {
		text = text[:10] + "T" + text[11:]
	}
	for _, layout := range []string{DateTimeLayout + ".999999999", DateLayout} {
		if t, err := time.Parse(layout, text); err == nil {
			return DateTime{t}, nil
		}
	}
	return DateTime{}, fmt.Errorf("invalid datetime %q: expected YYYY-MM-DDTHH:MM:SS", s)
}

// FromGo converts a native Go value into a Literal.
// time.Time values become DateTime; use NewDate for calendar dates.
func FromGo(v any) (Literal, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Literal:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUnsigned(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUnsigned(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case string:
		return Str(val), nil
	case time.Time:
		return DateTime{val.UTC()}, nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			lit, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			if lit.Kind() == KindList {
				return nil, fmt.Errorf("list[%d]: nested lists are not supported", i)
			}
			list[i] = lit
		}
		return list, nil
	case []string:
		list := make(List, len(val))
		for i, s := range val {
			list[i] = Str(s)
		}
		return list, nil
	case []int64:
		list := make(List, len(val))
		for i, n := range val {
			list[i] = Int(n)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

func fromUnsigned(n uint64) (Literal, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", n)
	}
	return Int(n), nil
}

// ToParam converts a Literal to a Go native value for a bound SQL parameter.
// Dates and datetimes are passed as ISO-8601 text.
func ToParam(v Literal) (any, error) {
	switch val := v.(type) {
	case Null:
		return nil, nil
	case Bool:
		return bool(val), nil
	case Int:
		return int64(val), nil
	case Float:
		return float64(val), nil
	case Str:
		return string(val), nil
	case Date:
		return val.String(), nil
	case DateTime:
		return val.String(), nil
	case List:
		return nil, fmt.Errorf("list cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported literal type for SQL parameter: %T", v)
	}
}

// ToGo converts a Literal into its plain Go shape: nil, bool, int64, float64,
// string (dates as ISO text) or []any.
func ToGo(v Literal) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Str:
		return string(val)
	case Date:
		return val.String()
	case DateTime:
		return val.String()
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// IsNull reports whether v is the Null literal (or a nil interface).
func IsNull(v Literal) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Format renders a literal for diagnostics. It is not SQL.
func Format(v Literal) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case Str:
		return fmt.Sprintf("%q", string(val))
	case Date:
		return "DATE " + val.String()
	case DateTime:
		return "TIMESTAMP " + val.String()
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
