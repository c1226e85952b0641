package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/codec"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	To     string // target format; inferred from --output when empty
	Output string // output file path; stdout when empty
}

// ConvertResult reports a written conversion.
type ConvertResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a serialized condition between formats",
		Long: `Read a condition from a file (format chosen by extension) and write it
in another format: json, yaml, msgpack, msgpack-zstd or cue.

Without --output the encoded condition is written to stdout.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.To, "to", "t", "", "target format (json|yaml|msgpack|msgpack-zstd|cue)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runConvert(opts *ConvertOptions, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var target codec.Format
	var err error
	switch {
	case opts.To != "":
		target, err = codec.ParseFormat(opts.To)
	case opts.Output != "":
		target, err = codec.FormatForPath(opts.Output)
	default:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "no target format: pass --to or --output", nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	cond, err := ConditionSource{File: input}.Load(nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	data, err := codec.Encode(cond, target)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Encoded %s as %s (%d bytes)", input, target, len(data))

	if opts.Output == "" {
		_, err := formatter.Writer.Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
	}

	result := ConvertResult{Input: input, Output: opts.Output, Format: string(target), Bytes: len(data)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %s (%s, %d bytes)\n", opts.Output, target, len(data))
	return nil
}
