package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/queryir"
)

// ParseResult is a condition in plain form with its fingerprint.
type ParseResult struct {
	Condition   map[string]any `json:"condition"`
	Fingerprint string         `json:"fingerprint"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	var src ConditionSource

	cmd := &cobra.Command{
		Use:   "parse [where-sql...]",
		Short: "Parse a condition and print its plain form",
		Long: `Parse WHERE text (or load a condition) and print the serialized plain
form used by every codec, plus the condition's fingerprint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, src, args, cmd)
		},
	}

	addSourceFlags(cmd, &src)
	return cmd
}

func runParse(opts *RootOptions, src ConditionSource, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cond, err := src.Load(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	plain, err := queryir.ToPlain(cond)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidCondition, err.Error(), nil)
	}
	fingerprint, err := queryir.Fingerprint(cond)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidCondition, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(ParseResult{Condition: plain, Fingerprint: fingerprint})
	}

	data, err := json.MarshalIndent(plain, "", "  ")
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	fmt.Fprintf(formatter.Writer, "fingerprint: %s\n", fingerprint)
	return nil
}
