// Package compiler turns CUE filter definitions into queryir conditions.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/sqlparse"
)

// Filter is a named condition compiled from a CUE filter definition.
type Filter struct {
	Name      string
	Condition queryir.Condition
	Pos       token.Pos
}

// Node fields recognized in a CUE filter definition. Exactly one form may
// appear per node:
//
//	{sql: "score > 0.5"}                           // SQL WHERE text
//	{column: "model", operator: "EQ", value: "x"}  // one comparison
//	{all: [node, ...]} / {any: [node, ...]}        // AND / OR fold
//	{not: node}
//	{ref: "other_filter"}                          // only inside a filter set
//	{type: "simple" | "compound", ...}             // serialized plain form
const (
	fieldSQL = "sql"
	fieldAll = "all"
	fieldAny = "any"
	fieldNot = "not"
	fieldRef = "ref"
)

var leafFields = map[string]bool{
	queryir.FieldColumn:       true,
	queryir.FieldOperator:     true,
	queryir.FieldValue:        true,
	queryir.FieldValueType:    true,
	queryir.FieldElementTypes: true,
}

// CompileFilter parses a single CUE filter node into a condition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`filter: {column: "score", operator: "GT", value: 0.5}`)
//	cond, err := CompileFilter(v.LookupPath(cue.ParsePath("filter")))
//
// References to other filters are rejected; use CompileFilters for a set.
func CompileFilter(v cue.Value) (queryir.Condition, error) {
	c := &filterCompiler{}
	return c.node(v)
}

// CompileFilters compiles every field of a CUE struct as a named filter.
// Filters may reference each other with {ref: "name"}; unknown names and
// reference cycles are errors. Results keep the struct's field order.
func CompileFilters(v cue.Value) ([]Filter, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var names []string
	values := make(map[string]cue.Value)
	for iter.Next() {
		name := strings.Trim(iter.Label(), `"`)
		names = append(names, name)
		values[name] = iter.Value()
	}

	// Resolve references up front so compilation never loops.
	graph, err := buildRefGraph(names, values)
	if err != nil {
		return nil, err
	}
	if cycle := findRefCycle(names, graph); cycle != nil {
		return nil, &CompileError{
			Field:   fieldRef,
			Message: fmt.Sprintf("reference cycle: %s", strings.Join(cycle, " -> ")),
			Pos:     values[cycle[0]].Pos(),
		}
	}

	c := &filterCompiler{
		values:   values,
		compiled: make(map[string]queryir.Condition),
	}
	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		cond, err := c.named(name)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{Name: name, Condition: cond, Pos: values[name].Pos()})
	}
	return filters, nil
}

// filterCompiler walks CUE filter nodes. values and compiled are nil when
// compiling a lone node.
type filterCompiler struct {
	values   map[string]cue.Value
	compiled map[string]queryir.Condition
}

func (c *filterCompiler) named(name string) (queryir.Condition, error) {
	if cond, ok := c.compiled[name]; ok {
		return cond, nil
	}
	cond, err := c.node(c.values[name])
	if err != nil {
		return nil, err
	}
	c.compiled[name] = cond
	return cond, nil
}

func (c *filterCompiler) node(v cue.Value) (queryir.Condition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	form, err := nodeForm(v)
	if err != nil {
		return nil, err
	}

	switch form {
	case fieldSQL:
		return compileSQL(v.LookupPath(cue.ParsePath(fieldSQL)))

	case fieldRef:
		refVal := v.LookupPath(cue.ParsePath(fieldRef))
		name, err := refVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if c.values == nil {
			return nil, &CompileError{
				Field:   fieldRef,
				Message: fmt.Sprintf("reference %q outside a filter set", name),
				Pos:     refVal.Pos(),
			}
		}
		return c.named(name)

	case fieldNot:
		inner, err := c.node(v.LookupPath(cue.ParsePath(fieldNot)))
		if err != nil {
			return nil, err
		}
		return queryir.Not(inner), nil

	case fieldAll, fieldAny:
		listVal := v.LookupPath(cue.ParsePath(form))
		list, err := listVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var conds []queryir.Condition
		for list.Next() {
			cond, err := c.node(list.Value())
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
		if len(conds) == 0 {
			return nil, &CompileError{
				Field:   form,
				Message: fmt.Sprintf("%s needs at least one condition", form),
				Pos:     listVal.Pos(),
			}
		}
		if form == fieldAll {
			return queryir.AllOf(conds...), nil
		}
		return queryir.AnyOf(conds...), nil

	case queryir.FieldType:
		return compilePlain(v, nil)

	default: // leaf comparison
		return compilePlain(v, map[string]any{queryir.FieldType: queryir.TypeSimple})
	}
}

// nodeForm reports which node form v uses, rejecting unknown fields and
// mixed forms.
func nodeForm(v cue.Value) (string, error) {
	if v.IncompleteKind() != cue.StructKind {
		return "", &CompileError{
			Field:   "filter",
			Message: fmt.Sprintf("filter must be a struct, got %s", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return "", formatCUEError(err)
	}

	var forms []string
	leaf, plain := false, false
	for iter.Next() {
		label := iter.Label()
		switch {
		case label == fieldSQL, label == fieldAll, label == fieldAny, label == fieldNot, label == fieldRef:
			forms = append(forms, label)
		case label == queryir.FieldType, label == queryir.FieldLeft, label == queryir.FieldRight:
			plain = true
		case leafFields[label]:
			leaf = true
		default:
			return "", &CompileError{
				Field:   label,
				Message: fmt.Sprintf("unknown filter field %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	switch {
	case plain:
		forms = append(forms, queryir.FieldType)
	case leaf:
		forms = append(forms, queryir.FieldColumn)
	}

	if len(forms) != 1 {
		msg := "filter is empty"
		if len(forms) > 1 {
			msg = fmt.Sprintf("filter mixes %s; use exactly one form", strings.Join(forms, " and "))
		}
		return "", &CompileError{Field: "filter", Message: msg, Pos: v.Pos()}
	}
	return forms[0], nil
}

func compileSQL(v cue.Value) (queryir.Condition, error) {
	text, err := v.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	cond, err := sqlparse.Parse(text)
	if err != nil {
		return nil, &CompileError{Field: fieldSQL, Message: err.Error(), Pos: v.Pos()}
	}
	return cond, nil
}

// compilePlain decodes v and rebuilds it with queryir.FromPlain. extra
// fields are merged over the decoded map.
func compilePlain(v cue.Value, extra map[string]any) (queryir.Condition, error) {
	var raw map[string]any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	for k, val := range extra {
		raw[k] = val
	}
	cond, err := queryir.FromPlain(raw)
	if err != nil {
		return nil, &CompileError{Field: "filter", Message: err.Error(), Pos: v.Pos()}
	}
	return cond, nil
}

// collectRefs returns the names referenced anywhere below v, sorted.
func collectRefs(v cue.Value) ([]string, error) {
	seen := make(map[string]bool)
	stack := []cue.Value{v}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IncompleteKind() != cue.StructKind {
			continue
		}

		if ref := n.LookupPath(cue.ParsePath(fieldRef)); ref.Exists() {
			name, err := ref.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			seen[name] = true
		}
		if not := n.LookupPath(cue.ParsePath(fieldNot)); not.Exists() {
			stack = append(stack, not)
		}
		for _, field := range []string{fieldAll, fieldAny} {
			listVal := n.LookupPath(cue.ParsePath(field))
			if !listVal.Exists() {
				continue
			}
			list, err := listVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for list.Next() {
				stack = append(stack, list.Value())
			}
		}
	}

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
