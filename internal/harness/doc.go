// Package harness runs conformance scenarios for filter conditions.
//
// A scenario seeds a fresh store with transcripts and lists cases: a
// condition (WHERE text or serialized plain form) and the transcript IDs
// it must select. Every case runs on every requested dialect, so a
// scenario also checks that sqlite, duckdb and postgres agree.
//
// Scenarios are YAML:
//
//	name: scores
//	description: Ordering comparisons on nullable columns
//	transcripts:
//	  - {id: a, source_type: eval, score: 0.9}
//	  - {id: b, source_type: eval}
//	cases:
//	  - name: high
//	    where: score > 0.5
//	    expect: [a]
//	  - name: column compare
//	    where: score > total_tokens
//	    error: unsupported
//
// Each run is deterministic: transcripts without an ID or timestamp get
// them from testutil generators, and results are ordered by ID. Snapshot
// renders a result as text for golden-file comparison.
package harness
