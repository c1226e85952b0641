package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// executeWithInput is execute with stdin.
func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

// decodeResponse parses a --format json response.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

// decodeData re-decodes the data payload of a response into v.
func decodeData(t *testing.T, resp CLIResponse, v any) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const filterSetCUE = `package test

filter: {
	high_score: {sql: "score >= 0.8"}
	gpt4: {column: "model", operator: "EQ", value: "gpt-4"}
	good_gpt4: {all: [{ref: "high_score"}, {ref: "gpt4"}]}
	pro_users: {column: "metadata.user.tier", operator: "EQ", value: "pro"}
}
`

// writeFilterSet writes filterSetCUE into a fresh directory.
func writeFilterSet(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "filters.cue", filterSetCUE)
	return dir
}

const transcriptsJSONL = `{"id": "a", "source_type": "eval", "model": "gpt-4", "score": 0.9, "success": true, "total_tokens": 1500, "created_at": "2024-01-10T09:00:00Z", "metadata": {"user": {"tier": "pro", "age": 31}}}
{"id": "b", "source_type": "eval", "model": "claude", "score": 0.4, "success": false, "total_tokens": 300, "created_at": "2024-02-01T00:00:00Z", "metadata": {"user": {"tier": "free", "age": 19}}}

{"id": "c", "source_type": "prod", "created_at": "2024-03-05T18:30:00Z"}
`

// seededDB ingests transcriptsJSONL into a new sqlite database.
func seededDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := writeFile(t, dir, "transcripts.jsonl", transcriptsJSONL)
	db := filepath.Join(dir, "tfql.db")

	_, _, err := execute(t, "ingest", data, "--db", db)
	require.NoError(t, err)
	return db
}
