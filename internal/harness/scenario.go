package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tfql/internal/querysql"
	"github.com/roach88/tfql/internal/store"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialects lists the stores to run against. Defaults to sqlite and
	// duckdb; postgres also needs a DSN (see WithPostgresDSN).
	Dialects []string `yaml:"dialects,omitempty"`

	// Transcripts seed the store before any case runs.
	Transcripts []Record `yaml:"transcripts"`

	// Cases are run in order against every dialect.
	Cases []Case `yaml:"cases"`
}

// Record is a transcript as written in a scenario file.
type Record struct {
	ID          string         `yaml:"id"`
	SourceType  string         `yaml:"source_type"`
	SourceID    string         `yaml:"source_id,omitempty"`
	SourceURI   string         `yaml:"source_uri,omitempty"`
	TaskID      string         `yaml:"task_id,omitempty"`
	Model       string         `yaml:"model,omitempty"`
	Score       *float64       `yaml:"score,omitempty"`
	Success     *bool          `yaml:"success,omitempty"`
	TotalTokens *int64         `yaml:"total_tokens,omitempty"`
	CreatedAt   time.Time      `yaml:"created_at,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// Transcript converts the record for the store.
func (r Record) Transcript() store.Transcript {
	return store.Transcript{
		ID:          r.ID,
		SourceType:  r.SourceType,
		SourceID:    r.SourceID,
		SourceURI:   r.SourceURI,
		TaskID:      r.TaskID,
		Model:       r.Model,
		Score:       r.Score,
		Success:     r.Success,
		TotalTokens: r.TotalTokens,
		CreatedAt:   r.CreatedAt,
		Metadata:    r.Metadata,
	}
}

// Case is one condition and what it must select.
type Case struct {
	// Name identifies the case within the scenario.
	Name string `yaml:"name"`

	// Where is WHERE-clause text. Exactly one of Where and Condition is set.
	Where string `yaml:"where,omitempty"`

	// Condition is a serialized plain-form condition.
	Condition map[string]any `yaml:"condition,omitempty"`

	// SourceType restricts the select to one source type.
	SourceType string `yaml:"source_type,omitempty"`

	// Expect lists the selected transcript IDs in ID order.
	Expect []string `yaml:"expect"`

	// Error, when set, expects Where to be rejected with a message
	// containing this text. Expect must then be empty.
	Error string `yaml:"error,omitempty"`
}

// DefaultDialects are used when a scenario names none.
var DefaultDialects = []string{string(querysql.SQLite), string(querysql.DuckDB)}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" for "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(scenario.Dialects) == 0 {
		scenario.Dialects = append([]string(nil), DefaultDialects...)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	for i, d := range s.Dialects {
		if _, err := querysql.ParseDialect(d); err != nil {
			return fmt.Errorf("dialects[%d]: %w", i, err)
		}
	}

	ids := make(map[string]bool)
	for i, r := range s.Transcripts {
		if r.SourceType == "" {
			return fmt.Errorf("transcripts[%d]: source_type is required", i)
		}
		if r.ID == "" {
			continue
		}
		if ids[r.ID] {
			return fmt.Errorf("transcripts[%d]: duplicate id %q", i, r.ID)
		}
		ids[r.ID] = true
	}

	names := make(map[string]bool)
	for i, c := range s.Cases {
		if err := validateCase(i, c); err != nil {
			return err
		}
		if names[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		names[c.Name] = true
	}

	return nil
}

// validateCase validates a single case.
func validateCase(index int, c Case) error {
	if c.Name == "" {
		return fmt.Errorf("cases[%d]: name is required", index)
	}

	switch {
	case c.Where == "" && c.Condition == nil:
		return fmt.Errorf("cases[%d]: one of where or condition is required", index)
	case c.Where != "" && c.Condition != nil:
		return fmt.Errorf("cases[%d]: where and condition are mutually exclusive", index)
	}

	if c.Error != "" {
		if c.Where == "" {
			return fmt.Errorf("cases[%d]: error needs where text", index)
		}
		if len(c.Expect) > 0 {
			return fmt.Errorf("cases[%d]: error cases select nothing; remove expect", index)
		}
	}

	return nil
}
