package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Source     ConditionSource
	Store      StoreFlags
	Saved      string // saved filter name
	SourceType string
	Limit      int
	Offset     int
	Count      bool
}

// QueryResult holds matching transcripts or their count.
type QueryResult struct {
	Count       int64              `json:"count"`
	Transcripts []store.Transcript `json:"transcripts,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [where-sql...]",
		Short: "Select transcripts matching a condition",
		Long: `Run a condition against the transcript store.

The condition comes from WHERE text, --file, --filters with --name, or a
filter saved with "tfql filter save" (--saved). With no condition every
transcript matches.

Examples:
  tfql query --db ./tfql.db "score > 0.5 AND model = 'gpt-4'"
  tfql query --db ./tfql.db --saved high_score --limit 10
  tfql query --db ./tfql.db --count "metadata.user.tier = 'pro'"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.Source)
	addStoreFlags(cmd.Flags(), &opts.Store)
	cmd.Flags().StringVar(&opts.Saved, "saved", "", "use a filter saved in the store")
	cmd.Flags().StringVar(&opts.SourceType, "source-type", "", "only rows with this source type")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows to return (0 for all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matches only")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	hasSource := len(args) > 0 || opts.Source.File != "" || opts.Source.FilterSet != ""
	if opts.Saved != "" && hasSource {
		return formatter.Fail(ExitCommandError, ErrCodeNoCondition, "--saved cannot be combined with another condition", nil)
	}

	var cond queryir.Condition = queryir.MatchAll()
	if hasSource {
		var err error
		cond, err = opts.Source.Load(args)
		if err != nil {
			return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
		}
	}

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Saved != "" {
		cond, err = st.LoadFilter(ctx, opts.Saved)
		if err != nil {
			return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
		}
	}

	if opts.Count {
		// Count takes no options; source type becomes part of the condition.
		if opts.SourceType != "" {
			cond = queryir.And(queryir.MustColumn("source_type").Eq(ir.Str(opts.SourceType)), cond)
		}
		n, err := st.Count(ctx, cond)
		if err != nil {
			return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
		}
		if formatter.Format == "json" {
			return formatter.Success(QueryResult{Count: n})
		}
		fmt.Fprintln(formatter.Writer, n)
		return nil
	}

	rows, err := st.Select(ctx, cond, store.QueryOptions{
		SourceType: opts.SourceType,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
	}
	formatter.VerboseLog("Matched %d transcripts", len(rows))

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Count: int64(len(rows)), Transcripts: rows})
	}
	outputTranscriptsText(formatter, rows)
	return nil
}

func outputTranscriptsText(f *OutputFormatter, rows []store.Transcript) {
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No matching transcripts")
		return
	}
	for _, t := range rows {
		fields := []string{t.ID, t.SourceType}
		if t.Model != "" {
			fields = append(fields, "model="+t.Model)
		}
		if t.Score != nil {
			fields = append(fields, fmt.Sprintf("score=%g", *t.Score))
		}
		if t.Success != nil {
			fields = append(fields, fmt.Sprintf("success=%t", *t.Success))
		}
		fields = append(fields, t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Fprintln(f.Writer, strings.Join(fields, "  "))
	}
	fmt.Fprintf(f.Writer, "\n%d transcript(s)\n", len(rows))
}
