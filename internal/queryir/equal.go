package queryir

import (
	"github.com/roach88/tfql/internal/ir"
)

// Equal reports whether two conditions are structurally identical: same
// shape, operators, paths and literals (including literal kinds, so
// Int(1) and Float(1) differ).
func Equal(a, b Condition) bool {
	type pair struct{ a, b Condition }
	stack := []pair{{a, b}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.a == nil || p.b == nil {
			if p.a != nil || p.b != nil {
				return false
			}
			continue
		}
		na, err := node(p.a)
		if err != nil {
			return false
		}
		nb, err := node(p.b)
		if err != nil {
			return false
		}

		switch x := na.(type) {
		case Simple:
			y, ok := nb.(Simple)
			if !ok || x.Op != y.Op || !x.Path.Equal(y.Path) || !LiteralEqual(x.Value, y.Value) {
				return false
			}
		case Compound:
			y, ok := nb.(Compound)
			if !ok || x.Op != y.Op {
				return false
			}
			stack = append(stack, pair{x.Left, y.Left}, pair{x.Right, y.Right})
		}
	}
	return true
}

// LiteralEqual compares two literals by kind and value.
func LiteralEqual(a, b ir.Literal) bool {
	if ir.IsNull(a) || ir.IsNull(b) {
		return ir.IsNull(a) && ir.IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case ir.Date:
		return x.Time.Equal(b.(ir.Date).Time)
	case ir.DateTime:
		return x.Time.Equal(b.(ir.DateTime).Time)
	case ir.List:
		y := b.(ir.List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !LiteralEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
