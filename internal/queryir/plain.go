package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

// Plain form field names.
const (
	FieldType         = "type"
	FieldColumn       = "column"
	FieldOperator     = "operator"
	FieldValue        = "value"
	FieldValueType    = "value_type"
	FieldElementTypes = "element_types"
	FieldLeft         = "left"
	FieldRight        = "right"

	TypeSimple   = "simple"
	TypeCompound = "compound"
)

// ToPlain converts a condition to a tree of map[string]any, []any and
// scalar values that any generic structured format can carry.
//
// Simple nodes:
//
//	{"type": "simple", "column": "metadata.user", "operator": "EQ",
//	 "value": "alice", "value_type": "str"}
//
// Compound nodes:
//
//	{"type": "compound", "operator": "AND", "left": {...}, "right": {...}}
//
// Dates are written as ISO-8601 text; value_type (and element_types for
// lists) keeps their kind so FromPlain restores them exactly.
func ToPlain(c Condition) (map[string]any, error) {
	type frame struct {
		c        Condition
		expanded bool
	}
	stack := []frame{{c: c}}
	var out []map[string]any

	pop := func() map[string]any {
		m := out[len(out)-1]
		out = out[:len(out)-1]
		return m
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := node(f.c)
		if err != nil {
			return nil, err
		}

		switch n := n.(type) {
		case Simple:
			m, err := simpleToPlain(n)
			if err != nil {
				return nil, err
			}
			out = append(out, m)

		case Compound:
			if err := checkCompound(n); err != nil {
				return nil, err
			}
			if !f.expanded {
				stack = append(stack, frame{c: n, expanded: true})
				if n.Right != nil {
					stack = append(stack, frame{c: n.Right})
				}
				stack = append(stack, frame{c: n.Left})
				continue
			}
			m := map[string]any{
				FieldType:     TypeCompound,
				FieldOperator: string(n.Op),
			}
			if n.Right != nil {
				m[FieldRight] = pop()
			}
			m[FieldLeft] = pop()
			out = append(out, m)
		}
	}

	return out[0], nil
}

func checkCompound(n Compound) error {
	switch n.Op {
	case LogicAnd, LogicOr:
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("%w: %s needs two operands", ErrMalformed, n.Op)
		}
	case LogicNot:
		if n.Left == nil || n.Right != nil {
			return fmt.Errorf("%w: NOT needs exactly one operand", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown logical operator %q", ErrMalformed, n.Op)
	}
	return nil
}

func simpleToPlain(s Simple) (map[string]any, error) {
	if err := CheckSimple(s); err != nil {
		return nil, err
	}
	value := s.Value
	if value == nil {
		value = ir.Null{}
	}

	m := map[string]any{
		FieldType:      TypeSimple,
		FieldColumn:    s.Path.String(),
		FieldOperator:  string(s.Op),
		FieldValue:     ir.ToGo(value),
		FieldValueType: value.Kind().String(),
	}
	if list, ok := value.(ir.List); ok {
		kinds := make([]any, len(list))
		for i, v := range list {
			kinds[i] = v.Kind().String()
		}
		m[FieldElementTypes] = kinds
	}
	return m, nil
}

// FromPlain rebuilds a condition from the output of ToPlain, or from the
// same shape decoded by encoding/json, yaml.v3, msgpack or CUE. When a
// value_type tag is absent the literal kind is inferred from the Go type
// (ISO-looking strings stay strings).
func FromPlain(v any) (Condition, error) {
	type frame struct {
		m        map[string]any
		expanded bool
		at       int
	}

	// trail records each visited node's parent and side; locations are
	// only spelled out when an error is reported.
	type step struct {
		parent int
		side   string
	}
	trail := []step{{parent: -1}}
	where := func(at int) string {
		var sides []string
		for i := at; trail[i].parent >= 0; i = trail[i].parent {
			sides = append(sides, trail[i].side)
		}
		var sb strings.Builder
		sb.WriteByte('$')
		for i := len(sides) - 1; i >= 0; i-- {
			sb.WriteByte('.')
			sb.WriteString(sides[i])
		}
		return sb.String()
	}
	child := func(parent int, side string, v any) (frame, error) {
		trail = append(trail, step{parent: parent, side: side})
		at := len(trail) - 1
		m, err := asMap(v)
		if err != nil {
			return frame{}, fmt.Errorf("%s: %w", where(at), err)
		}
		return frame{m: m, at: at}, nil
	}

	root, err := asMap(v)
	if err != nil {
		return nil, fmt.Errorf("$: %w", err)
	}
	stack := []frame{{m: root}}
	var out []Condition

	pop := func() Condition {
		c := out[len(out)-1]
		out = out[:len(out)-1]
		return c
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kind, _ := f.m[FieldType].(string)
		switch kind {
		case TypeSimple:
			s, err := simpleFromPlain(f.m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where(f.at), err)
			}
			out = append(out, s)

		case TypeCompound:
			opName, _ := f.m[FieldOperator].(string)
			op, err := ParseLogicalOperator(opName)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where(f.at), err)
			}
			_, hasRight := f.m[FieldRight]
			hasRight = hasRight && f.m[FieldRight] != nil
			if (op == LogicNot) == hasRight {
				return nil, fmt.Errorf("%s: %w: %s has the wrong number of operands", where(f.at), ErrMalformed, op)
			}

			if !f.expanded {
				stack = append(stack, frame{m: f.m, expanded: true, at: f.at})
				if hasRight {
					right, err := child(f.at, FieldRight, f.m[FieldRight])
					if err != nil {
						return nil, err
					}
					stack = append(stack, right)
				}
				left, err := child(f.at, FieldLeft, f.m[FieldLeft])
				if err != nil {
					return nil, err
				}
				stack = append(stack, left)
				continue
			}

			c := Compound{Op: op}
			if hasRight {
				c.Right = pop()
			}
			c.Left = pop()
			out = append(out, c)

		default:
			return nil, fmt.Errorf("%s: %w: unknown node type %q", where(f.at), ErrMalformed, kind)
		}
	}

	return out[0], nil
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %v", ErrMalformed, k)
			}
			out[ks] = val
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: missing node", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrMalformed, v)
	}
}

func simpleFromPlain(m map[string]any) (Simple, error) {
	column, ok := m[FieldColumn].(string)
	if !ok {
		return Simple{}, fmt.Errorf("%w: column must be a string", ErrMalformed)
	}
	opName, _ := m[FieldOperator].(string)
	op, err := ParseOperator(opName)
	if err != nil {
		return Simple{}, err
	}

	var path colpath.Path
	if column != "" {
		if path, err = colpath.Parse(column); err != nil {
			return Simple{}, err
		}
	}

	valueType, _ := m[FieldValueType].(string)
	var elemTypes []any
	if raw, ok := m[FieldElementTypes]; ok && raw != nil {
		if elemTypes, ok = raw.([]any); !ok {
			return Simple{}, fmt.Errorf("%w: element_types must be a list", ErrMalformed)
		}
	}

	value, err := literalFromPlain(m[FieldValue], valueType, elemTypes)
	if err != nil {
		return Simple{}, err
	}
	if op.IsNullCheck() {
		value = ir.Null{}
	}

	s := Simple{Path: path, Op: op, Value: value}
	if err := CheckSimple(s); err != nil {
		return Simple{}, err
	}
	return s, nil
}

func literalFromPlain(v any, kindName string, elemTypes []any) (ir.Literal, error) {
	if kindName == "" {
		return inferLiteral(v, elemTypes)
	}
	kind, err := ir.ParseKind(kindName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch kind {
	case ir.KindNull:
		if v != nil {
			return nil, fmt.Errorf("%w: null value_type with value %v", ErrMalformed, v)
		}
		return ir.Null{}, nil
	case ir.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(kind, v)
		}
		return ir.Bool(b), nil
	case ir.KindInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, typeMismatch(kind, v)
		}
		return ir.Int(n), nil
	case ir.KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			return nil, typeMismatch(kind, v)
		}
		return ir.Float(f), nil
	case ir.KindStr:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(kind, v)
		}
		return ir.Str(s), nil
	case ir.KindDate:
		switch val := v.(type) {
		case string:
			return ir.ParseDate(val)
		case time.Time:
			y, mo, d := val.Date()
			return ir.NewDate(y, mo, d), nil
		}
		return nil, typeMismatch(kind, v)
	case ir.KindDateTime:
		switch val := v.(type) {
		case string:
			return ir.ParseDateTime(val)
		case time.Time:
			return ir.DateTime{Time: val.UTC()}, nil
		}
		return nil, typeMismatch(kind, v)
	case ir.KindList:
		items, ok := v.([]any)
		if !ok {
			return nil, typeMismatch(kind, v)
		}
		if elemTypes != nil && len(elemTypes) != len(items) {
			return nil, fmt.Errorf("%w: %d element_types for %d values", ErrMalformed, len(elemTypes), len(items))
		}
		list := make(ir.List, len(items))
		for i, item := range items {
			elemKind := ""
			if elemTypes != nil {
				elemKind, _ = elemTypes[i].(string)
			}
			if elemKind == ir.KindList.String() {
				return nil, fmt.Errorf("%w: nested lists are not supported", ErrMalformed)
			}
			lit, err := literalFromPlain(item, elemKind, nil)
			if err != nil {
				return nil, fmt.Errorf("value[%d]: %w", i, err)
			}
			list[i] = lit
		}
		return list, nil
	}
	return nil, fmt.Errorf("%w: unhandled kind %s", ErrMalformed, kind)
}

func inferLiteral(v any, elemTypes []any) (ir.Literal, error) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return ir.Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %s", ErrMalformed, val)
		}
		return ir.Float(f), nil
	case []any:
		return literalFromPlain(val, ir.KindList.String(), elemTypes)
	default:
		lit, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return lit, nil
	}
}

func typeMismatch(kind ir.Kind, v any) error {
	return fmt.Errorf("%w: value %v (%T) is not a %s", ErrMalformed, v, v, kind)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// MarshalJSON encodes a condition's plain form as JSON.
func MarshalJSON(c Condition) ([]byte, error) {
	plain, err := ToPlain(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

// UnmarshalJSON decodes a condition from its JSON plain form. Numbers are
// decoded exactly (no float64 rounding of large integers).
func UnmarshalJSON(data []byte) (Condition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode condition JSON: %w", err)
	}
	return FromPlain(raw)
}

// Fingerprint returns the content hash of c's canonical plain form.
// Structurally equal conditions share a fingerprint.
func Fingerprint(c Condition) (string, error) {
	plain, err := ToPlain(c)
	if err != nil {
		return "", err
	}
	return ir.ContentHash(ir.DomainCondition, plain)
}
