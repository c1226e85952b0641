package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

func TestConditionSealed(t *testing.T) {
	var _ Condition = Simple{}
	var _ Condition = &Simple{}
	var _ Condition = Compound{}
	var _ Condition = &Compound{}
}

func TestBuilderComparisons(t *testing.T) {
	col := MustColumn("score")

	tests := []struct {
		name string
		cond Condition
		op   Operator
	}{
		{"eq", col.Eq(ir.Int(1)), OpEq},
		{"ne", col.Ne(ir.Int(1)), OpNe},
		{"lt", col.Lt(ir.Int(1)), OpLt},
		{"le", col.Le(ir.Int(1)), OpLe},
		{"gt", col.Gt(ir.Int(1)), OpGt},
		{"ge", col.Ge(ir.Int(1)), OpGe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := tt.cond.(Simple)
			require.True(t, ok)
			assert.Equal(t, tt.op, s.Op)
			assert.Equal(t, "score", s.Path.Column)
			assert.Equal(t, ir.Int(1), s.Value)
		})
	}
}

func TestBuilderNullRewrite(t *testing.T) {
	col := MustColumn("model")

	eq := col.Eq(ir.Null{}).(Simple)
	assert.Equal(t, OpIsNull, eq.Op)

	ne := col.Ne(nil).(Simple)
	assert.Equal(t, OpIsNotNull, ne.Op)

	// Ordering comparisons against NULL are kept as written.
	lt := col.Lt(ir.Null{}).(Simple)
	assert.Equal(t, OpLt, lt.Op)
}

func TestBuilderMembership(t *testing.T) {
	col := MustColumn("model")

	in := col.In(ir.Str("a"), nil, ir.Str("b")).(Simple)
	assert.Equal(t, OpIn, in.Op)
	assert.Equal(t, ir.List{ir.Str("a"), ir.Null{}, ir.Str("b")}, in.Value)

	empty := col.NotIn().(Simple)
	assert.Equal(t, OpNotIn, empty.Op)
	assert.Equal(t, ir.List{}, empty.Value)
}

func TestBuilderMembershipCopiesInput(t *testing.T) {
	values := []ir.Literal{ir.Int(1), ir.Int(2)}
	cond := MustColumn("n").In(values...).(Simple)

	values[0] = ir.Int(99)
	assert.Equal(t, ir.List{ir.Int(1), ir.Int(2)}, cond.Value)
}

func TestBuilderPatterns(t *testing.T) {
	col := MustColumn("metadata.task")

	for op, cond := range map[Operator]Condition{
		OpLike:     col.Like("a%"),
		OpNotLike:  col.NotLike("a%"),
		OpILike:    col.ILike("a%"),
		OpNotILike: col.NotILike("a%"),
	} {
		s := cond.(Simple)
		assert.Equal(t, op, s.Op)
		assert.Equal(t, ir.Str("a%"), s.Value)
		assert.Equal(t, []colpath.Step{colpath.KeyStep("task")}, s.Path.Steps)
	}
}

func TestBuilderNullChecks(t *testing.T) {
	col := MustColumn("error")
	assert.Equal(t, Simple{Path: col.Path(), Op: OpIsNull, Value: ir.Null{}}, col.IsNull())
	assert.Equal(t, Simple{Path: col.Path(), Op: OpIsNotNull, Value: ir.Null{}}, col.IsNotNull())
}

func TestBuilderBetween(t *testing.T) {
	col := MustColumn("score")

	cond, err := col.Between(ir.Float(0.1), ir.Float(0.9))
	require.NoError(t, err)
	s := cond.(Simple)
	assert.Equal(t, OpBetween, s.Op)
	assert.Equal(t, ir.List{ir.Float(0.1), ir.Float(0.9)}, s.Value)

	cond, err = col.NotBetween(ir.Int(1), ir.Int(5))
	require.NoError(t, err)
	assert.Equal(t, OpNotBetween, cond.(Simple).Op)
}

func TestBuilderBetweenNullBounds(t *testing.T) {
	col := MustColumn("score")

	tests := []struct {
		name   string
		lo, hi ir.Literal
	}{
		{"null low", ir.Null{}, ir.Int(1)},
		{"null high", ir.Int(1), ir.Null{}},
		{"nil low", nil, ir.Int(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := col.Between(tt.lo, tt.hi)
			require.Error(t, err)
			assert.True(t, IsInvalidBounds(err))

			_, err = col.NotBetween(tt.lo, tt.hi)
			assert.True(t, IsInvalidBounds(err))
		})
	}
}

func TestColumnErrors(t *testing.T) {
	_, err := Column("a[x]")
	require.Error(t, err)

	assert.Panics(t, func() { MustColumn("") })
}

func TestCombinators(t *testing.T) {
	a := MustColumn("a").Eq(ir.Int(1))
	b := MustColumn("b").Eq(ir.Int(2))
	c := MustColumn("c").Eq(ir.Int(3))

	and := And(a, b).(Compound)
	assert.Equal(t, LogicAnd, and.Op)
	assert.Equal(t, a, and.Left)
	assert.Equal(t, b, and.Right)

	not := Not(a).(Compound)
	assert.Equal(t, LogicNot, not.Op)
	assert.Nil(t, not.Right)

	all := AllOf(a, b, c)
	assert.True(t, Equal(And(And(a, b), c), all))

	either := AnyOf(a, b)
	assert.True(t, Equal(Or(a, b), either))

	assert.Nil(t, AllOf())
	assert.Equal(t, a, AnyOf(a))
}

func TestCombinatorsDoNotMutateOperands(t *testing.T) {
	a := MustColumn("a").Eq(ir.Int(1))
	b := MustColumn("b").Eq(ir.Int(2))

	first := And(a, b)
	_ = Or(first, Not(first))

	assert.True(t, Equal(And(a, b), first))
}

func TestConstantConditions(t *testing.T) {
	none := MatchNone().(Simple)
	assert.True(t, none.Path.IsZero())
	assert.Equal(t, OpIn, none.Op)
	require.NoError(t, CheckSimple(none))

	all := MatchAll().(Simple)
	assert.Equal(t, OpNotIn, all.Op)
	require.NoError(t, CheckSimple(all))
}

func TestCheckSimple(t *testing.T) {
	p := colpath.MustParse("x")

	tests := []struct {
		name string
		s    Simple
		ok   bool
	}{
		{"scalar eq", Simple{p, OpEq, ir.Int(1)}, true},
		{"list eq", Simple{p, OpEq, ir.List{}}, false},
		{"missing value", Simple{p, OpGt, nil}, false},
		{"in scalar", Simple{p, OpIn, ir.Int(1)}, false},
		{"in nested list", Simple{p, OpIn, ir.List{ir.List{}}}, false},
		{"between one bound", Simple{p, OpBetween, ir.List{ir.Int(1)}}, false},
		{"between null bound", Simple{p, OpBetween, ir.List{ir.Int(1), ir.Null{}}}, false},
		{"unknown op", Simple{p, Operator("XOR"), ir.Int(1)}, false},
		{"zero path eq", Simple{colpath.Path{}, OpEq, ir.Int(1)}, false},
		{"zero path non-empty in", Simple{colpath.Path{}, OpIn, ir.List{ir.Int(1)}}, false},
		{"is null any value", Simple{p, OpIsNull, ir.Null{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSimple(tt.s)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOperatorHelpers(t *testing.T) {
	assert.Len(t, Operators, 16)
	for _, op := range Operators {
		parsed, err := ParseOperator(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := ParseOperator("CONTAINS")
	assert.ErrorIs(t, err, ErrMalformed)

	flipped, ok := OpLt.Flip()
	assert.True(t, ok)
	assert.Equal(t, OpGt, flipped)
	_, ok = OpIn.Flip()
	assert.False(t, ok)

	_, err = ParseLogicalOperator("XOR")
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := MustColumn("a").Eq(ir.Int(1))

	assert.True(t, Equal(a, MustColumn("a").Eq(ir.Int(1))))
	assert.False(t, Equal(a, MustColumn("a").Eq(ir.Float(1))))
	assert.False(t, Equal(a, MustColumn("b").Eq(ir.Int(1))))
	assert.False(t, Equal(a, Not(a)))
	assert.True(t, Equal(Not(a), &Compound{Op: LogicNot, Left: &Simple{
		Path: colpath.MustParse("a"), Op: OpEq, Value: ir.Int(1),
	}}))
	assert.True(t, Equal(
		MustColumn("d").Eq(ir.NewDate(2024, 1, 1)),
		MustColumn("d").Eq(ir.NewDate(2024, 1, 1)),
	))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestEqualDeepTree(t *testing.T) {
	leaf := MustColumn("a").Eq(ir.Int(1))
	var left, right Condition = leaf, leaf
	for i := 0; i < 100_000; i++ {
		left = Not(left)
		right = Not(right)
	}
	assert.True(t, Equal(left, right))
}
