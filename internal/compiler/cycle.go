package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
)

// refGraph maps filter name → names of the filters it references.
type refGraph map[string][]string

// buildRefGraph constructs the filter reference graph.
//
// Every referenced name must be a filter in the same set; the first
// unknown reference (in field order) is reported with its position.
func buildRefGraph(names []string, values map[string]cue.Value) (refGraph, error) {
	graph := make(refGraph, len(names))
	for _, name := range names {
		refs, err := collectRefs(values[name])
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if _, ok := values[ref]; !ok {
				return nil, &CompileError{
					Field:   fieldRef,
					Message: fmt.Sprintf("filter %q references unknown filter %q", name, ref),
					Pos:     values[name].Pos(),
				}
			}
		}
		graph[name] = refs
	}
	return graph, nil
}

// findRefCycle returns the first reference cycle as a closed path such as
// ["a", "b", "a"], or nil when the graph is acyclic.
//
// The algorithm:
//  1. Use Tarjan's algorithm to find strongly connected components
//  2. The first SCC with more than one member, or a self-loop, is a cycle
//  3. Walk edges inside that SCC to reconstruct a readable path
//
// Nodes are visited in names order so the reported cycle is stable.
func findRefCycle(names []string, graph refGraph) []string {
	for _, scc := range tarjanSCC(names, graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		if len(scc) == 1 {
			return []string{scc[0], scc[0]}
		}
		return reconstructCyclePath(scc, graph)
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph refGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of filter names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(names []string, graph refGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range names {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the SCC root (the member Tarjan visited first),
// follow edges to other SCC members, continue until we return to start
// node.
func reconstructCyclePath(scc []string, graph refGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
