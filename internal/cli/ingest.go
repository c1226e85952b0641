package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tfql/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Store      StoreFlags
	SourceType string // default source type for records without one
}

// IngestResult reports the transcripts written.
type IngestResult struct {
	Written int      `json:"written"`
	IDs     []string `json:"ids"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl | ->",
		Short: "Load transcripts from JSON Lines into the store",
		Long: `Read one transcript per line and write it to the store.

Each line is a JSON object with the fields id, source_type, source_id,
source_uri, task_id, model, score, success, total_tokens, created_at
(RFC 3339) and metadata. Missing ids are generated; rows whose id already
exists are left unchanged. Use "-" to read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	addStoreFlags(cmd.Flags(), &opts.Store)
	cmd.Flags().StringVar(&opts.SourceType, "source-type", "", "source type for records that do not set one")

	return cmd
}

func runIngest(opts *IngestOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
		}
		defer f.Close()
		in = f
	}

	records, err := readTranscripts(in, opts.SourceType)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidRecord, err.Error(), nil)
	}

	st, err := openStore(ctx, opts.RootOptions, opts.Store, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	result := IngestResult{IDs: make([]string, 0, len(records))}
	for _, t := range records {
		id, err := st.WriteTranscript(ctx, t)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.IDs = append(result.IDs, id)
	}
	result.Written = len(result.IDs)
	formatter.VerboseLog("Wrote %d transcripts", result.Written)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Ingested %d transcripts\n", result.Written)
	return nil
}

// readTranscripts decodes JSON Lines. Blank lines are skipped and
// metadata numbers keep their precision.
func readTranscripts(r io.Reader, sourceType string) ([]store.Transcript, error) {
	var records []store.Transcript
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		var t store.Transcript
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if t.SourceType == "" {
			t.SourceType = sourceType
		}
		if t.SourceType == "" {
			return nil, fmt.Errorf("line %d: source_type is required", line)
		}
		records = append(records, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
