package queryir

import (
	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

// ColumnRef is the entry point of the fluent builder.
//
//	col := queryir.MustColumn("metadata.user.age")
//	cond := queryir.And(col.Ge(ir.Int(18)), queryir.MustColumn("model").Eq(ir.Str("gpt-4")))
type ColumnRef struct {
	path colpath.Path
}

// Column parses ref with colpath.Parse and returns a builder for it.
func Column(ref string) (ColumnRef, error) {
	p, err := colpath.Parse(ref)
	if err != nil {
		return ColumnRef{}, err
	}
	return ColumnRef{path: p}, nil
}

// MustColumn is like Column but panics on a malformed reference.
// Use only in tests or with constant references.
func MustColumn(ref string) ColumnRef {
	c, err := Column(ref)
	if err != nil {
		panic(err)
	}
	return c
}

// ColumnOf returns a builder for an already-parsed path.
func ColumnOf(p colpath.Path) ColumnRef {
	return ColumnRef{path: p}
}

// Path returns the addressed path.
func (c ColumnRef) Path() colpath.Path { return c.path }

func (c ColumnRef) simple(op Operator, v ir.Literal) Simple {
	if v == nil {
		v = ir.Null{}
	}
	return Simple{Path: c.path, Op: op, Value: v}
}

// Eq builds `col = v`. Comparing with Null builds IS_NULL instead.
func (c ColumnRef) Eq(v ir.Literal) Condition {
	if ir.IsNull(v) {
		return c.IsNull()
	}
	return c.simple(OpEq, v)
}

// Ne builds `col != v`. Comparing with Null builds IS_NOT_NULL instead.
func (c ColumnRef) Ne(v ir.Literal) Condition {
	if ir.IsNull(v) {
		return c.IsNotNull()
	}
	return c.simple(OpNe, v)
}

// Lt builds `col < v`.
func (c ColumnRef) Lt(v ir.Literal) Condition { return c.simple(OpLt, v) }

// Le builds `col <= v`.
func (c ColumnRef) Le(v ir.Literal) Condition { return c.simple(OpLe, v) }

// Gt builds `col > v`.
func (c ColumnRef) Gt(v ir.Literal) Condition { return c.simple(OpGt, v) }

// Ge builds `col >= v`.
func (c ColumnRef) Ge(v ir.Literal) Condition { return c.simple(OpGe, v) }

// In builds `col IN (values...)`. An empty list matches nothing.
func (c ColumnRef) In(values ...ir.Literal) Condition {
	return c.simple(OpIn, listOf(values))
}

// NotIn builds `col NOT IN (values...)`. An empty list matches everything.
func (c ColumnRef) NotIn(values ...ir.Literal) Condition {
	return c.simple(OpNotIn, listOf(values))
}

func listOf(values []ir.Literal) ir.List {
	list := make(ir.List, len(values))
	for i, v := range values {
		if v == nil {
			v = ir.Null{}
		}
		list[i] = v
	}
	return list
}

// Like builds a case-sensitive pattern match.
func (c ColumnRef) Like(pattern string) Condition { return c.simple(OpLike, ir.Str(pattern)) }

// NotLike builds a negated case-sensitive pattern match.
func (c ColumnRef) NotLike(pattern string) Condition { return c.simple(OpNotLike, ir.Str(pattern)) }

// ILike builds a case-insensitive pattern match.
func (c ColumnRef) ILike(pattern string) Condition { return c.simple(OpILike, ir.Str(pattern)) }

// NotILike builds a negated case-insensitive pattern match.
func (c ColumnRef) NotILike(pattern string) Condition {
	return c.simple(OpNotILike, ir.Str(pattern))
}

// IsNull builds `col IS NULL`.
func (c ColumnRef) IsNull() Condition { return c.simple(OpIsNull, ir.Null{}) }

// IsNotNull builds `col IS NOT NULL`.
func (c ColumnRef) IsNotNull() Condition { return c.simple(OpIsNotNull, ir.Null{}) }

// Between builds `col BETWEEN lo AND hi`. Null bounds are rejected with a
// BoundsError.
func (c ColumnRef) Between(lo, hi ir.Literal) (Condition, error) {
	return c.rangeOf(OpBetween, lo, hi)
}

// NotBetween builds `col NOT BETWEEN lo AND hi`. Null bounds are rejected
// with a BoundsError.
func (c ColumnRef) NotBetween(lo, hi ir.Literal) (Condition, error) {
	return c.rangeOf(OpNotBetween, lo, hi)
}

func (c ColumnRef) rangeOf(op Operator, lo, hi ir.Literal) (Condition, error) {
	if ir.IsNull(lo) || ir.IsNull(hi) {
		return nil, &BoundsError{Column: c.path.String(), Op: op, Message: "bounds must not be NULL"}
	}
	if lo.Kind() == ir.KindList || hi.Kind() == ir.KindList {
		return nil, &BoundsError{Column: c.path.String(), Op: op, Message: "bounds must be scalars"}
	}
	return c.simple(op, ir.List{lo, hi}), nil
}

// And builds `(left AND right)`.
func And(left, right Condition) Condition {
	return Compound{Op: LogicAnd, Left: left, Right: right}
}

// Or builds `(left OR right)`.
func Or(left, right Condition) Condition {
	return Compound{Op: LogicOr, Left: left, Right: right}
}

// Not builds `NOT (c)`.
func Not(c Condition) Condition {
	return Compound{Op: LogicNot, Left: c}
}

// AllOf folds conditions left-associatively with AND. It returns nil for
// an empty slice.
func AllOf(conds ...Condition) Condition {
	return fold(LogicAnd, conds)
}

// AnyOf folds conditions left-associatively with OR. It returns nil for an
// empty slice.
func AnyOf(conds ...Condition) Condition {
	return fold(LogicOr, conds)
}

func fold(op LogicalOperator, conds []Condition) Condition {
	if len(conds) == 0 {
		return nil
	}
	acc := conds[0]
	for _, c := range conds[1:] {
		acc = Compound{Op: op, Left: acc, Right: c}
	}
	return acc
}

// MatchNone is the column-less constant that never matches; it renders as
// `1 = 0`.
func MatchNone() Condition {
	return Simple{Op: OpIn, Value: ir.List{}}
}

// MatchAll is the column-less constant that always matches; it renders as
// `1 = 1`.
func MatchAll() Condition {
	return Simple{Op: OpNotIn, Value: ir.List{}}
}
