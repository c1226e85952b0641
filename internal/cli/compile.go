package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Source  ConditionSource
	Dialect string // overrides compile.dialect from the config
	Inline  bool   // overrides compile.mode from the config
	Offset  int    // placeholder offset for postgres
	Output  string // output file path
}

// CompileResult is the rendered WHERE fragment.
type CompileResult struct {
	SQL     string   `json:"sql"`
	Params  []any    `json:"params"`
	Kinds   []string `json:"param_kinds"`
	Dialect string   `json:"dialect"`
	Mode    string   `json:"mode"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [where-sql...]",
		Short: "Compile a condition to a dialect-specific WHERE fragment",
		Long: `Compile a condition to SQL for sqlite, duckdb or postgres.

The condition comes from WHERE text, a serialized condition file (--file),
or a named filter in a CUE filter set (--filters with --name). Values are
bound as parameters unless --inline is given.`,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.Source)
	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "", "target dialect (sqlite|duckdb|postgres)")
	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "embed literal values instead of binding parameters")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number postgres placeholders after this many existing parameters")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL fragment to a file")

	return cmd
}

// addSourceFlags registers the condition source flags shared by commands.
func addSourceFlags(cmd *cobra.Command, src *ConditionSource) {
	cmd.Flags().StringVarP(&src.File, "file", "f", "", "read the condition from a file (.json, .yaml, .msgpack, .msgpack.zst, .cue, .sql)")
	cmd.Flags().StringVar(&src.FilterSet, "filters", "", "CUE filter set (directory or .cue file)")
	cmd.Flags().StringVar(&src.Name, "name", "", "filter name within --filters")
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.settings().Compile

	cond, err := opts.Source.Load(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	if opts.Dialect != "" {
		cfg.Dialect = opts.Dialect
	}
	if cmd.Flags().Changed("inline") {
		cfg.Mode = string(querysql.Parameterized)
		if opts.Inline {
			cfg.Mode = string(querysql.Inline)
		}
	}
	compiler, err := cfg.Compiler(querysql.WithPlaceholderOffset(opts.Offset))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	dialect, mode := compiler.Dialect(), compiler.Mode()

	cond, err = queryir.ChunkLists(cond, cfg.ChunkLimit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompileFailed, err.Error(), nil)
	}

	formatter.VerboseLog("Compiling for %s (%s)", dialect, mode)
	stmt, err := compiler.Compile(cond)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompileFailed, err.Error(), nil)
	}
	params, err := stmt.Args()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompileFailed, err.Error(), nil)
	}

	kinds := make([]string, len(stmt.Params))
	for i, p := range stmt.Params {
		kinds[i] = p.Kind().String()
	}
	result := CompileResult{
		SQL:     stmt.SQL,
		Params:  params,
		Kinds:   kinds,
		Dialect: string(dialect),
		Mode:    string(mode),
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(stmt.SQL+"\n"), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stmt.Params, opts.Output)
}

// outputCompileSuccess prints the fragment followed by one line per bound
// parameter.
func outputCompileSuccess(formatter *OutputFormatter, result CompileResult, params []ir.Literal, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	for i, p := range params {
		fmt.Fprintf(formatter.Writer, "  -- param %d (%s): %s\n", i+1, p.Kind(), ir.Format(p))
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote SQL to %s\n", outputFile)
	}
	return nil
}
