package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as stable text for golden comparison. Cases
// appear in execution order: every case for the first dialect, then the
// next dialect.
func Snapshot(scenarioName string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	for _, cr := range result.Cases {
		fmt.Fprintf(&b, "\n[%s] %s\n", cr.Dialect, cr.Case)
		if cr.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", cr.Error)
			continue
		}
		fmt.Fprintf(&b, "  sql: %s\n", cr.SQL)
		if len(cr.Params) > 0 {
			fmt.Fprintf(&b, "  params: %s\n", strings.Join(cr.Params, ", "))
		}
		fmt.Fprintf(&b, "  ids: [%s]\n", strings.Join(cr.IDs, ", "))
		fmt.Fprintf(&b, "  count: %d\n", cr.Count)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check case assertions.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
