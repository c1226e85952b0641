package queryir

import (
	"fmt"

	"github.com/roach88/tfql/internal/ir"
)

// MaxPortableDepth is the deepest compound nesting Validate accepts
// without a warning. Some engines reject expressions nested deeper than a
// few hundred levels; 64 leaves ample headroom for generated filters.
const MaxPortableDepth = 64

// ValidationResult contains portability analysis of a condition.
//
// A condition that compiles is always valid SQL. Warnings flag conditions
// that are legal but probably not what the author meant, or that may hit
// engine limits.
type ValidationResult struct {
	// IsPortable indicates the condition produced no warnings.
	IsPortable bool

	// Warnings lists the findings, in tree-traversal order.
	Warnings []string
}

// Validate inspects a condition for suspicious or engine-limited features.
//
// Checks:
//  1. Ordering comparisons (<, <=, >, >=) against NULL never match
//  2. LIKE patterns that are not strings compare lexically against text
//  3. Membership lists longer than DefaultChunkLimit should be chunked
//  4. Nesting deeper than MaxPortableDepth
//  5. Malformed nodes (wrong value shapes) that the compiler will reject
//
// Validate is a pure function with no side effects.
func Validate(c Condition) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validate(c)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validate(root Condition) {
	type frame struct {
		c     Condition
		depth int
	}
	stack := []frame{{root, 1}}
	depthWarned := false

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := node(f.c)
		if err != nil {
			v.addWarning("%v", err)
			continue
		}
		if f.depth > MaxPortableDepth && !depthWarned {
			v.addWarning("Condition nests deeper than %d levels - some engines reject deeply nested expressions", MaxPortableDepth)
			depthWarned = true
		}

		switch n := n.(type) {
		case Simple:
			v.validateSimple(n)
		case Compound:
			if err := checkCompound(n); err != nil {
				v.addWarning("%v", err)
				continue
			}
			if n.Right != nil {
				stack = append(stack, frame{n.Right, f.depth + 1})
			}
			stack = append(stack, frame{n.Left, f.depth + 1})
		}
	}
}

func (v *validator) validateSimple(s Simple) {
	if err := CheckSimple(s); err != nil {
		v.addWarning("%v", err)
		return
	}

	switch {
	case s.Op.IsOrdering() && ir.IsNull(s.Value):
		v.addWarning("Column '%s' compared with %s against NULL - the comparison never matches; use IS NULL", s.Path, s.Op)
	case s.Op.IsPattern() && s.Value.Kind() != ir.KindStr:
		v.addWarning("Column '%s' %s pattern is a %s - patterns compare as text", s.Path, s.Op, s.Value.Kind())
	case s.Op.IsMembership():
		if list := s.Value.(ir.List); len(list) > DefaultChunkLimit {
			v.addWarning("Column '%s' %s list has %d values - exceeds %d bound parameters; use ChunkMembership",
				s.Path, s.Op, len(list), DefaultChunkLimit)
		}
	}
}
