package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
	"github.com/roach88/tfql/internal/sqlparse"
	"github.com/roach88/tfql/internal/store"
	"github.com/roach88/tfql/internal/testutil"
)

// Option configures a Run.
type Option func(*runConfig)

type runConfig struct {
	postgresDSN string
	dialects    []string
	logger      *slog.Logger
}

// WithPostgresDSN enables the postgres dialect. Each scenario run gets
// the transcripts table truncated before seeding.
func WithPostgresDSN(dsn string) Option {
	return func(c *runConfig) { c.postgresDSN = dsn }
}

// WithDialects overrides the dialects listed in the scenario.
func WithDialects(dialects ...string) Option {
	return func(c *runConfig) { c.dialects = dialects }
}

// WithLogger sets the logger handed to each store. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Harness runs the cases of one scenario against one store.
type Harness struct {
	store   *store.Store
	dialect querysql.Dialect
	clock   *testutil.DeterministicClock
	ids     *testutil.SequentialIDs
}

// Run executes a scenario and returns the result.
//
// Each dialect runs in a fresh database for isolation: in-memory sqlite
// and duckdb, or the configured postgres database. Deterministic helpers
// fill in missing transcript IDs and timestamps so output is reproducible.
//
// An error is returned only when a store cannot be opened or seeded;
// case mismatches are recorded in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialects := scenario.Dialects
	if len(cfg.dialects) > 0 {
		dialects = cfg.dialects
	}
	if len(dialects) == 0 {
		dialects = DefaultDialects
	}

	result := NewResult()
	for _, name := range dialects {
		d, err := querysql.ParseDialect(name)
		if err != nil {
			return nil, err
		}

		h, err := newHarness(ctx, d, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d, err)
		}
		err = h.run(ctx, scenario, result)
		h.store.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d, err)
		}
	}

	if result.Pass {
		for _, msg := range CheckAgreement(result) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func newHarness(ctx context.Context, d querysql.Dialect, cfg runConfig) (*Harness, error) {
	clock := testutil.NewDeterministicClock(testutil.DefaultBase)
	ids := testutil.NewSequentialIDs("t")
	storeOpts := []store.Option{
		store.WithLogger(cfg.logger),
		store.WithClock(clock.Now),
		store.WithIDGenerator(ids.Next),
	}

	var (
		st  *store.Store
		err error
	)
	switch d {
	case querysql.SQLite:
		st, err = store.Open(":memory:", storeOpts...)
	case querysql.DuckDB:
		st, err = store.OpenDuckDB("", storeOpts...)
	case querysql.Postgres:
		if cfg.postgresDSN == "" {
			return nil, fmt.Errorf("postgres needs a DSN")
		}
		st, err = store.OpenPostgres(ctx, cfg.postgresDSN, storeOpts...)
		if err == nil {
			_, err = st.DB().ExecContext(ctx, "TRUNCATE transcripts")
			if err != nil {
				st.Close()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Harness{store: st, dialect: d, clock: clock, ids: ids}, nil
}

func (h *Harness) run(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, rec := range scenario.Transcripts {
		if _, err := h.store.WriteTranscript(ctx, rec.Transcript()); err != nil {
			return fmt.Errorf("transcripts[%d]: %w", i, err)
		}
	}

	for _, c := range scenario.Cases {
		cr, err := h.runCase(ctx, c)
		if err != nil {
			result.AddError(fmt.Sprintf("%s/%s: %v", c.Name, h.dialect, err))
			continue
		}
		result.AddCase(cr)
		for _, msg := range checkCase(c, cr) {
			result.AddError(fmt.Sprintf("%s/%s: %s", c.Name, h.dialect, msg))
		}
	}
	return nil
}

// runCase parses, renders and executes one case. Parse failures are
// reported in CaseResult.Error; store failures are returned.
func (h *Harness) runCase(ctx context.Context, c Case) (CaseResult, error) {
	cr := CaseResult{Case: c.Name, Dialect: string(h.dialect), IDs: []string{}}

	cond, err := caseCondition(c)
	if err != nil {
		cr.Error = err.Error()
		return cr, nil
	}

	stmt, err := querysql.ToSQL(cond, h.dialect, querysql.Parameterized)
	if err != nil {
		cr.Error = err.Error()
		return cr, nil
	}
	cr.SQL = stmt.SQL
	for _, p := range stmt.Params {
		cr.Params = append(cr.Params, ir.Format(p))
	}

	rows, err := h.store.Select(ctx, cond, store.QueryOptions{SourceType: c.SourceType})
	if err != nil {
		return cr, err
	}
	for _, t := range rows {
		cr.IDs = append(cr.IDs, t.ID)
	}

	counted := cond
	if c.SourceType != "" {
		counted = queryir.And(queryir.MustColumn("source_type").Eq(ir.Str(c.SourceType)), cond)
	}
	cr.Count, err = h.store.Count(ctx, counted)
	if err != nil {
		return cr, err
	}
	return cr, nil
}

func caseCondition(c Case) (queryir.Condition, error) {
	if c.Where != "" {
		return sqlparse.Parse(c.Where)
	}
	return queryir.FromPlain(c.Condition)
}
