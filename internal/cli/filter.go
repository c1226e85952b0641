package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/compiler"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
	"github.com/roach88/tfql/internal/store"
)

// FilterOptions holds flags shared by the filter subcommands.
type FilterOptions struct {
	*RootOptions
	Store StoreFlags
}

// SavedFilterResult describes one saved filter.
type SavedFilterResult struct {
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint"`
	Condition   map[string]any `json:"condition,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// ImportResult reports the filters imported from a filter set.
type ImportResult struct {
	Imported []SavedFilterResult        `json:"imported"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewFilterCommand creates the filter command and its subcommands.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage filters saved in the store",
		Long: `Save, inspect and delete named conditions in the transcript store.

Saved filters can be used with "tfql query --saved NAME".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addStoreFlags(cmd.PersistentFlags(), &opts.Store)

	cmd.AddCommand(newFilterSaveCommand(opts))
	cmd.AddCommand(newFilterShowCommand(opts))
	cmd.AddCommand(newFilterListCommand(opts))
	cmd.AddCommand(newFilterDeleteCommand(opts))
	cmd.AddCommand(newFilterImportCommand(opts))

	return cmd
}

func newFilterSaveCommand(opts *FilterOptions) *cobra.Command {
	var src ConditionSource

	cmd := &cobra.Command{
		Use:   "save <name> [where-sql...]",
		Short: "Save a condition under a name",
		Long: `Save a condition under a name, replacing any filter with that name.

Examples:
  tfql filter save high_score "score > 0.9"
  tfql filter save pro_users --file pro.yaml
  tfql filter save gpt4 --filters ./filters --name gpt4`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterSave(opts, src, args[0], args[1:], cmd)
		},
	}
	addSourceFlags(cmd, &src)
	return cmd
}

func runFilterSave(opts *FilterOptions, src ConditionSource, name string, args []string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	cond, err := src.Load(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	if errs := compiler.Validate([]compiler.Filter{{Name: name, Condition: cond}}); len(errs) > 0 {
		for _, e := range errs {
			if e.Code == compiler.ErrInvalidFilterName || e.Code == compiler.ErrUncompilable {
				return formatter.Fail(ExitFailure, e.Code, e.Message, errs)
			}
		}
		for _, e := range errs {
			formatter.VerboseLog("warning: %s", e.Error())
		}
	}

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	fingerprint, err := st.SaveFilter(ctx, name, cond)
	if err != nil {
		return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(SavedFilterResult{Name: name, Fingerprint: fingerprint})
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved filter %s (%s)\n", name, fingerprint)
	return nil
}

func newFilterShowCommand(opts *FilterOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <name>",
		Short:         "Print a saved filter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterShow(opts, args[0], cmd)
		},
	}
}

func runFilterShow(opts *FilterOptions, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	saved, err := st.GetFilter(ctx, name)
	if err != nil {
		return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
	}
	result, err := savedFilterResult(saved)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidCondition, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	cond, err := queryir.UnmarshalJSON([]byte(saved.Condition))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidCondition, err.Error(), nil)
	}
	fmt.Fprintf(formatter.Writer, "name:        %s\n", saved.Name)
	fmt.Fprintf(formatter.Writer, "fingerprint: %s\n", saved.Fingerprint)
	fmt.Fprintf(formatter.Writer, "updated:     %s\n", result.UpdatedAt)
	stmt, err := querysql.ToSQL(cond, st.Dialect(), querysql.Inline)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompileFailed, err.Error(), nil)
	}
	fmt.Fprintf(formatter.Writer, "condition:   %s\n", stmt.SQL)
	return nil
}

func newFilterListCommand(opts *FilterOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved filters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterList(opts, cmd)
		},
	}
}

func runFilterList(opts *FilterOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	saved, err := st.ListFilters(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
	}

	if formatter.Format == "json" {
		results := make([]SavedFilterResult, 0, len(saved))
		for _, f := range saved {
			results = append(results, SavedFilterResult{
				Name:        f.Name,
				Fingerprint: f.Fingerprint,
				UpdatedAt:   f.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		return formatter.Success(results)
	}

	if len(saved) == 0 {
		fmt.Fprintln(formatter.Writer, "No saved filters")
		return nil
	}
	for _, f := range saved {
		fmt.Fprintf(formatter.Writer, "%s  %s\n", f.Name, f.Fingerprint)
	}
	return nil
}

func newFilterDeleteCommand(opts *FilterOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved filter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterDelete(opts, args[0], cmd)
		},
	}
}

func runFilterDelete(opts *FilterOptions, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteFilter(ctx, name); err != nil {
		return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(SavedFilterResult{Name: name})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted filter %s\n", name)
	return nil
}

func newFilterImportCommand(opts *FilterOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "import <filter-set>",
		Short: "Save every filter of a CUE filter set",
		Long: `Validate a CUE filter set (directory or .cue file) and save each of
its filters under its own name. Nothing is saved if validation fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilterImport(opts, args[0], strict, cmd)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat portability warnings as failures")
	return cmd
}

func runFilterImport(opts *FilterOptions, path string, strict bool, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadFilterSet(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	findings := classifyFindings(compiler.Validate(loadResult.Filters), strict)
	if !findings.Valid {
		return formatter.Fail(ExitFailure, findings.Errors[0].Code, findings.Errors[0].Error(), findings.Errors)
	}

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	result := ImportResult{Imported: []SavedFilterResult{}, Warnings: findings.Warnings}
	for _, f := range loadResult.Filters {
		fingerprint, err := st.SaveFilter(ctx, f.Name, f.Condition)
		if err != nil {
			return formatter.Fail(ExitCommandError, storeErrorCode(err), err.Error(), nil)
		}
		formatter.VerboseLog("Saved %s", f.Name)
		result.Imported = append(result.Imported, SavedFilterResult{Name: f.Name, Fingerprint: fingerprint})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, w := range findings.Warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Error())
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported %d filters\n", len(result.Imported))
	return nil
}

func savedFilterResult(f store.SavedFilter) (SavedFilterResult, error) {
	var plain map[string]any
	if err := json.Unmarshal([]byte(f.Condition), &plain); err != nil {
		return SavedFilterResult{}, fmt.Errorf("saved filter %q: %w", f.Name, err)
	}
	return SavedFilterResult{
		Name:        f.Name,
		Fingerprint: f.Fingerprint,
		Condition:   plain,
		UpdatedAt:   f.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
