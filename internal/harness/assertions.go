package harness

import (
	"fmt"
	"slices"
	"strings"
)

// checkCase compares a case outcome with its expectations and returns
// one message per mismatch.
func checkCase(c Case, cr CaseResult) []string {
	var errs []string

	if c.Error != "" {
		switch {
		case cr.Error == "":
			errs = append(errs, fmt.Sprintf("expected error containing %q, condition was accepted", c.Error))
		case !strings.Contains(cr.Error, c.Error):
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", c.Error, cr.Error))
		}
		return errs
	}

	if cr.Error != "" {
		return append(errs, fmt.Sprintf("unexpected error: %s", cr.Error))
	}

	want := c.Expect
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, cr.IDs) {
		errs = append(errs, fmt.Sprintf("selected %v, expected %v", cr.IDs, want))
	}

	if cr.Count != int64(len(cr.IDs)) {
		errs = append(errs, fmt.Sprintf("count %d disagrees with %d selected rows", cr.Count, len(cr.IDs)))
	}

	return errs
}

// CheckAgreement reports cases whose selected IDs differ between
// dialects. Run results already fail on per-dialect mismatches; this
// catches scenarios whose expectations are loose (error cases).
func CheckAgreement(result *Result) []string {
	first := make(map[string]CaseResult)
	var errs []string
	for _, cr := range result.Cases {
		prev, ok := first[cr.Case]
		if !ok {
			first[cr.Case] = cr
			continue
		}
		if (prev.Error == "") != (cr.Error == "") {
			errs = append(errs, fmt.Sprintf("%s: %s and %s disagree on acceptance", cr.Case, prev.Dialect, cr.Dialect))
			continue
		}
		if !slices.Equal(prev.IDs, cr.IDs) {
			errs = append(errs, fmt.Sprintf("%s: %s selected %v, %s selected %v",
				cr.Case, prev.Dialect, prev.IDs, cr.Dialect, cr.IDs))
		}
	}
	return errs
}
