// Package queryir provides the filter condition tree for transcript queries.
//
// A Condition is the abstraction boundary between the places filters come
// from (the fluent builder, SQL text, serialized plain values) and the
// dialect code generator that turns them back into SQL:
//
//	[builder]    \
//	[SQL text]    → [Condition] → [querysql: sqlite | duckdb | postgres]
//	[plain form] /
//
// SEALED INTERFACES:
//
// Condition is a sealed interface using the marker method pattern. Only
// Simple and Compound implement it (as values or pointers).
//
//	switch c := cond.(type) {
//	case Simple:
//	    // path, operator, literal
//	case Compound:
//	    // AND / OR with two children, NOT with one
//	}
//
// IMMUTABILITY:
//
// Conditions are never mutated after construction. Combinators build new
// Compound nodes that share their operands, so a Condition may be used
// from any number of goroutines without synchronization.
//
// DEPTH:
//
// Equal, ToPlain and FromPlain walk trees with explicit stacks, so very
// deep compound chains do not grow the goroutine stack.
package queryir
