package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Source ConditionSource
	Strict bool // portability warnings fail validation
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Filters  int                        `json:"filters"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [where-sql...]",
		Short: "Check a condition or filter set for portability problems",
		Long: `Validate a condition, or every filter in a CUE filter set when --filters
is given without --name.

Checks filter names, constant filters, conditions some dialect cannot
render, and portability warnings. Portability warnings only fail
validation with --strict.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	addSourceFlags(cmd, &opts.Source)
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat portability warnings as failures")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var filters []compiler.Filter
	if opts.Source.FilterSet != "" && opts.Source.Name == "" && len(args) == 0 && opts.Source.File == "" {
		loadResult, err := LoadFilterSet(opts.Source.FilterSet)
		if err != nil {
			return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
		}
		formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, opts.Source.FilterSet)
		filters = loadResult.Filters
	} else {
		cond, err := opts.Source.Load(args)
		if err != nil {
			return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
		}
		name := opts.Source.Name
		if name == "" {
			name = "condition"
		}
		filters = []compiler.Filter{{Name: name, Condition: cond}}
	}

	for _, f := range filters {
		formatter.VerboseLog("Validating filter: %s", f.Name)
	}
	result := classifyFindings(compiler.Validate(filters), opts.Strict)
	result.Filters = len(filters)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// classifyFindings splits findings into failures and warnings. Portability
// findings are warnings unless strict.
func classifyFindings(findings []compiler.ValidationError, strict bool) ValidationResult {
	result := ValidationResult{}
	for _, f := range findings {
		if f.Code == compiler.ErrNotPortable && !strict {
			result.Warnings = append(result.Warnings, f)
			continue
		}
		result.Errors = append(result.Errors, f)
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.Filters == 1 {
		fmt.Fprintln(formatter.Writer, "✓ Condition valid")
	} else {
		fmt.Fprintf(formatter.Writer, "✓ All %d filters valid\n", result.Filters)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s\n", w.Error())
	}
	return nil
}

// outputValidationErrors outputs validation failures.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), reported: true}
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s\n", w.Error())
	}

	// Validation failures = exit code 1
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), reported: true}
}
