package queryir

import (
	"fmt"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
)

// DefaultChunkLimit is the largest membership list placed in a single IN
// clause when the caller has no engine-specific limit. It stays under
// SQLite's historical 999 bound-parameter ceiling.
const DefaultChunkLimit = 999

// ChunkMembership splits a membership test over many values into groups of
// at most limit values. IN groups are combined with OR; NOT IN groups are
// combined with AND, so the result still means "in none of the groups".
//
// At or under limit values a single clause is returned. The combined tree is
// balanced, so its depth grows with log2 of the number of groups.
func ChunkMembership(path colpath.Path, values []ir.Literal, op Operator, limit int) (Condition, error) {
	if !op.IsMembership() {
		return nil, fmt.Errorf("chunk membership: operator must be IN or NOT_IN, got %s", op)
	}
	if limit < 1 {
		return nil, fmt.Errorf("chunk membership: limit must be positive, got %d", limit)
	}

	col := ColumnOf(path)
	build := col.In
	combine := LogicOr
	if op == OpNotIn {
		build = col.NotIn
		combine = LogicAnd
	}

	if len(values) <= limit {
		return build(values...), nil
	}

	groups := make([]Condition, 0, (len(values)+limit-1)/limit)
	for start := 0; start < len(values); start += limit {
		end := min(start+limit, len(values))
		groups = append(groups, build(values[start:end]...))
	}

	return balance(combine, groups), nil
}

// balance combines conditions pairwise, level by level, until one remains.
func balance(op LogicalOperator, conds []Condition) Condition {
	for len(conds) > 1 {
		next := make([]Condition, 0, (len(conds)+1)/2)
		for i := 0; i+1 < len(conds); i += 2 {
			next = append(next, Compound{Op: op, Left: conds[i], Right: conds[i+1]})
		}
		if len(conds)%2 == 1 {
			next = append(next, conds[len(conds)-1])
		}
		conds = next
	}
	return conds[0]
}

// ChunkLists rewrites every IN or NOT IN test in c whose list is longer
// than limit with ChunkMembership. Other nodes are returned unchanged,
// with pointer forms dereferenced.
func ChunkLists(c Condition, limit int) (Condition, error) {
	first, err := newChunkFrame(c)
	if err != nil {
		return nil, err
	}
	stack := []chunkFrame{first}
	var out []Condition

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.leaf != nil {
			s := *f.leaf
			list, ok := s.Value.(ir.List)
			if !s.Op.IsMembership() || !ok || len(list) <= limit {
				out = append(out, s)
				continue
			}
			chunked, err := ChunkMembership(s.Path, list, s.Op, limit)
			if err != nil {
				return nil, err
			}
			out = append(out, chunked)
			continue
		}

		n := f.compound
		if !f.expanded {
			stack = append(stack, chunkFrame{compound: n, expanded: true})
			if n.Op != LogicNot {
				right, err := newChunkFrame(n.Right)
				if err != nil {
					return nil, err
				}
				stack = append(stack, right)
			}
			left, err := newChunkFrame(n.Left)
			if err != nil {
				return nil, err
			}
			stack = append(stack, left)
			continue
		}

		rebuilt := Compound{Op: n.Op}
		if n.Op != LogicNot {
			rebuilt.Right = out[len(out)-1]
			out = out[:len(out)-1]
		}
		rebuilt.Left = out[len(out)-1]
		out[len(out)-1] = rebuilt
	}
	return out[0], nil
}

// chunkFrame is one pending node of ChunkLists: a leaf, or a compound
// whose children are either queued or already rewritten.
type chunkFrame struct {
	leaf     *Simple
	compound Compound
	expanded bool
}

func newChunkFrame(c Condition) (chunkFrame, error) {
	n, err := node(c)
	if err != nil {
		return chunkFrame{}, fmt.Errorf("chunk lists: %w", err)
	}
	if s, ok := n.(Simple); ok {
		return chunkFrame{leaf: &s}, nil
	}
	return chunkFrame{compound: n.(Compound)}, nil
}
