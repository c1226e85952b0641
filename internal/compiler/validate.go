package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
)

// Validation error codes (E120-E129)
const (
	ErrInvalidFilterName = "E120" // name is not a valid saved-filter name
	ErrDuplicateFilter   = "E121" // same name defined twice
	ErrNotPortable       = "E122" // queryir.Validate warning
	ErrConstantFilter    = "E123" // filter is MatchNone or MatchAll
	ErrUncompilable      = "E124" // no SQL for some dialect
)

// filterNamePattern is the shape the store accepts for saved filter names.
var filterNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidationError represents a filter validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled filters for naming problems, portability
// warnings, and conditions some dialect cannot render.
// Returns all findings (does not fail-fast), in filter order.
func Validate(filters []Filter) []ValidationError {
	errs := []ValidationError{}
	seen := make(map[string]bool)

	for _, f := range filters {
		line := 0
		if f.Pos.IsValid() {
			line = f.Pos.Line()
		}
		add := func(code, format string, args ...any) {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf(format, args...),
				Code:    code,
				Line:    line,
			})
		}

		// E120: name shape
		if !filterNamePattern.MatchString(f.Name) {
			add(ErrInvalidFilterName, "invalid filter name %q", f.Name)
		}

		// E121: duplicate name
		if seen[f.Name] {
			add(ErrDuplicateFilter, "duplicate filter name %q", f.Name)
		}
		seen[f.Name] = true

		if f.Condition == nil {
			add(ErrUncompilable, "filter has no condition")
			continue
		}

		// E122: portability
		for _, w := range queryir.Validate(f.Condition).Warnings {
			add(ErrNotPortable, "%s", w)
		}

		// E123: constants
		switch {
		case queryir.Equal(f.Condition, queryir.MatchNone()):
			add(ErrConstantFilter, "filter never matches")
		case queryir.Equal(f.Condition, queryir.MatchAll()):
			add(ErrConstantFilter, "filter always matches")
		}

		// E124: every dialect must render it
		for _, d := range querysql.Dialects {
			if _, err := querysql.ToSQL(f.Condition, d, querysql.Parameterized); err != nil {
				add(ErrUncompilable, "%s: %v", d, err)
			}
		}
	}

	return errs
}
