package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

func TestValidatePortable(t *testing.T) {
	cond := And(
		MustColumn("model").Eq(ir.Str("gpt-4")),
		Or(MustColumn("score").Gt(ir.Float(0.8)), Not(MustColumn("error").IsNotNull())),
	)

	result := Validate(cond)
	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)
	assert.NotNil(t, result.Warnings)
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		contain string
	}{
		{
			name:    "ordering against null",
			cond:    MustColumn("score").Lt(ir.Null{}),
			contain: "never matches",
		},
		{
			name:    "non-string pattern",
			cond:    Simple{Path: colpath.MustParse("task"), Op: OpLike, Value: ir.Int(5)},
			contain: "patterns compare as text",
		},
		{
			name:    "long membership list",
			cond:    MustColumn("id").In(intValues(DefaultChunkLimit + 1)...),
			contain: "ChunkMembership",
		},
		{
			name:    "malformed simple",
			cond:    Simple{Path: colpath.MustParse("x"), Op: OpIn, Value: ir.Int(1)},
			contain: "needs a list",
		},
		{
			name:    "malformed compound",
			cond:    Compound{Op: LogicAnd, Left: MustColumn("a").IsNull()},
			contain: "two operands",
		},
		{
			name:    "nil child",
			cond:    Not(nil),
			contain: "NOT needs exactly one operand",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.cond)
			assert.False(t, result.IsPortable)
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], tt.contain)
		})
	}
}

func TestValidateDepthWarnedOnce(t *testing.T) {
	var cond Condition = MustColumn("a").Eq(ir.Int(1))
	for i := 0; i < MaxPortableDepth+10; i++ {
		cond = Not(cond)
	}

	result := Validate(cond)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nests deeper than")
}

func TestValidateAtDepthLimit(t *testing.T) {
	var cond Condition = MustColumn("a").Eq(ir.Int(1))
	for i := 1; i < MaxPortableDepth; i++ {
		cond = Not(cond)
	}
	assert.True(t, Validate(cond).IsPortable)
}

func TestValidatePointerForms(t *testing.T) {
	leaf := &Simple{Path: colpath.MustParse("a"), Op: OpEq, Value: ir.Int(1)}
	cond := &Compound{Op: LogicOr, Left: leaf, Right: leaf}

	assert.True(t, Validate(cond).IsPortable)

	var nilSimple *Simple
	result := Validate(nilSimple)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nil simple node")
}
