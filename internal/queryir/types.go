package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

// Condition represents one filter expression.
//
// This is a sealed interface - only Simple and Compound implement it.
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Operator is the comparison performed by a Simple condition.
type Operator string

const (
	OpEq         Operator = "EQ"
	OpNe         Operator = "NE"
	OpLt         Operator = "LT"
	OpLe         Operator = "LE"
	OpGt         Operator = "GT"
	OpGe         Operator = "GE"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT_IN"
	OpLike       Operator = "LIKE"
	OpNotLike    Operator = "NOT_LIKE"
	OpILike      Operator = "ILIKE"
	OpNotILike   Operator = "NOT_ILIKE"
	OpIsNull     Operator = "IS_NULL"
	OpIsNotNull  Operator = "IS_NOT_NULL"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT_BETWEEN"
)

// Operators lists every Operator in declaration order.
var Operators = []Operator{
	OpEq, OpNe, OpLt, OpLe, OpGt, OpGe,
	OpIn, OpNotIn,
	OpLike, OpNotLike, OpILike, OpNotILike,
	OpIsNull, OpIsNotNull,
	OpBetween, OpNotBetween,
}

// Valid reports whether op is one of the declared operators.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// IsComparison reports whether op is one of = != < <= > >=.
func (op Operator) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsOrdering reports whether op is one of < <= > >=.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsMembership reports whether op is IN or NOT_IN.
func (op Operator) IsMembership() bool { return op == OpIn || op == OpNotIn }

// IsPattern reports whether op is one of the LIKE family.
func (op Operator) IsPattern() bool {
	switch op {
	case OpLike, OpNotLike, OpILike, OpNotILike:
		return true
	}
	return false
}

// IsNullCheck reports whether op is IS_NULL or IS_NOT_NULL.
func (op Operator) IsNullCheck() bool { return op == OpIsNull || op == OpIsNotNull }

// IsRange reports whether op is BETWEEN or NOT_BETWEEN.
func (op Operator) IsRange() bool { return op == OpBetween || op == OpNotBetween }

// Flip returns the operator that gives the same result with operands
// swapped (`5 < x` is `x > 5`). Only comparisons can be flipped.
func (op Operator) Flip() (Operator, bool) {
	switch op {
	case OpEq, OpNe:
		return op, true
	case OpLt:
		return OpGt, true
	case OpLe:
		return OpGe, true
	case OpGt:
		return OpLt, true
	case OpGe:
		return OpLe, true
	}
	return op, false
}

// ParseOperator converts a serialized operator name.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: unknown operator %q", ErrMalformed, s)
	}
	return op, nil
}

// LogicalOperator combines conditions in a Compound.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "AND"
	LogicOr  LogicalOperator = "OR"
	LogicNot LogicalOperator = "NOT"
)

// ParseLogicalOperator converts a serialized logical operator name.
func ParseLogicalOperator(s string) (LogicalOperator, error) {
	switch op := LogicalOperator(s); op {
	case LogicAnd, LogicOr, LogicNot:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown logical operator %q", ErrMalformed, s)
}

// Simple compares the value addressed by Path with a literal.
//
// Value shape by operator:
//   - comparisons and patterns: a scalar literal
//   - IN / NOT_IN: ir.List (may be empty, may contain Null)
//   - BETWEEN / NOT_BETWEEN: ir.List of exactly two non-null bounds
//   - IS_NULL / IS_NOT_NULL: ir.Null
//
// Example:
//
//	Simple{Path: colpath.MustParse("metadata.user.age"), Op: OpGe, Value: ir.Int(18)}
type Simple struct {
	Path  colpath.Path
	Op    Operator
	Value ir.Literal
}

func (Simple) conditionNode() {}

// Compound combines child conditions with AND, OR or NOT.
// NOT carries its single child in Left; Right is nil.
type Compound struct {
	Op    LogicalOperator
	Left  Condition
	Right Condition
}

func (Compound) conditionNode() {}

// ErrMalformed is wrapped by every error describing a condition tree that
// could not have been produced by the builder.
var ErrMalformed = errors.New("malformed condition")

// node dereferences pointer forms so callers switch on values only.
func node(c Condition) (Condition, error) {
	switch n := c.(type) {
	case Simple, Compound:
		return n, nil
	case *Simple:
		if n == nil {
			return nil, fmt.Errorf("%w: nil simple node", ErrMalformed)
		}
		return *n, nil
	case *Compound:
		if n == nil {
			return nil, fmt.Errorf("%w: nil compound node", ErrMalformed)
		}
		return *n, nil
	case nil:
		return nil, fmt.Errorf("%w: nil condition", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown condition type %T", ErrMalformed, c)
	}
}

// Node returns c with pointer forms dereferenced, so the result is either
// Simple or Compound.
func Node(c Condition) (Condition, error) {
	return node(c)
}

// CheckSimple verifies that s has the value shape its operator requires.
func CheckSimple(s Simple) error {
	if !s.Op.Valid() {
		return fmt.Errorf("%w: unknown operator %q", ErrMalformed, s.Op)
	}
	if s.Path.IsZero() {
		if list, ok := s.Value.(ir.List); ok && s.Op.IsMembership() && len(list) == 0 {
			return nil
		}
		return fmt.Errorf("%w: %s condition has no column", ErrMalformed, s.Op)
	}
	if s.Path.Column == "" {
		return fmt.Errorf("%w: empty column name", ErrMalformed)
	}

	switch {
	case s.Op.IsNullCheck():
		return nil
	case s.Op.IsMembership():
		list, ok := s.Value.(ir.List)
		if !ok {
			return fmt.Errorf("%w: %s on %q needs a list, got %T", ErrMalformed, s.Op, s.Path, s.Value)
		}
		for i, v := range list {
			if v == nil || v.Kind() == ir.KindList {
				return fmt.Errorf("%w: %s on %q: element %d is not a scalar", ErrMalformed, s.Op, s.Path, i)
			}
		}
		return nil
	case s.Op.IsRange():
		list, ok := s.Value.(ir.List)
		if !ok || len(list) != 2 {
			return fmt.Errorf("%w: %s on %q needs exactly two bounds", ErrMalformed, s.Op, s.Path)
		}
		for _, v := range list {
			if ir.IsNull(v) || v.Kind() == ir.KindList {
				return &BoundsError{Column: s.Path.String(), Op: s.Op, Message: "bounds must be non-null scalars"}
			}
		}
		return nil
	default:
		if s.Value == nil {
			return fmt.Errorf("%w: %s on %q has no value", ErrMalformed, s.Op, s.Path)
		}
		if s.Value.Kind() == ir.KindList {
			return fmt.Errorf("%w: %s on %q cannot compare against a list", ErrMalformed, s.Op, s.Path)
		}
		return nil
	}
}

// BoundsError reports a BETWEEN or NOT BETWEEN with a null bound.
type BoundsError struct {
	Column  string
	Op      Operator
	Message string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("invalid bounds for %s on %q: %s", e.Op, e.Column, e.Message)
}

// IsInvalidBounds returns true if err is a BoundsError.
// Uses errors.As to handle wrapped errors.
func IsInvalidBounds(err error) bool {
	var be *BoundsError
	return errors.As(err, &be)
}
