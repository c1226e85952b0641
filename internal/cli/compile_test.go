package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWhereText(t *testing.T) {
	out, _, err := execute(t, "compile", "score > 0.5 AND model = 'gpt-4'")
	require.NoError(t, err)

	want := `("score" > ? AND "model" = ?)
  -- param 1 (float): 0.5
  -- param 2 (str): "gpt-4"
`
	assert.Equal(t, want, out)
}

func TestCompileDialects(t *testing.T) {
	tests := []struct {
		dialect string
		args    []string
		want    string
	}{
		{"sqlite", nil, `CAST(json_extract("metadata", '$.user.age') AS INTEGER) >= ?`},
		{"duckdb", nil, `CAST(json_extract_string("metadata", '$.user.age') AS BIGINT) >= ?`},
		{"postgres", nil, `("metadata"->'user'->>'age')::bigint >= $1`},
		{"postgres", []string{"--offset", "3"}, `("metadata"->'user'->>'age')::bigint >= $4`},
		{"postgres", []string{"--inline"}, `("metadata"->'user'->>'age')::bigint >= 18`},
	}

	for _, tt := range tests {
		t.Run(tt.dialect+strings.Join(tt.args, ""), func(t *testing.T) {
			args := append([]string{"compile", "--dialect", tt.dialect, "metadata.user.age >= 18"}, tt.args...)
			out, _, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.SplitN(out, "\n", 2)[0])
		})
	}
}

func TestCompileJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", "--dialect", "postgres",
		"created_at >= DATE '2024-01-01' AND success = TRUE")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)

	var result CompileResult
	decodeData(t, resp, &result)
	assert.Equal(t, `("created_at" >= $1 AND "success" = $2)`, result.SQL)
	assert.Equal(t, []any{"2024-01-01", true}, result.Params)
	assert.Equal(t, []string{"date", "bool"}, result.Kinds)
	assert.Equal(t, "postgres", result.Dialect)
	assert.Equal(t, "parameterized", result.Mode)
}

func TestCompileInlineOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "tfql.yaml", "compile:\n  mode: inline\n")

	out, _, err := execute(t, "--config", cfgPath, "compile", "--inline=false", "a = 1")
	require.NoError(t, err)
	assert.Contains(t, out, `"a" = ?`)
}

func TestCompileChunksLongLists(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "tfql.yaml", "compile:\n  chunk_limit: 2\n  mode: inline\n")

	out, _, err := execute(t, "--config", cfgPath, "compile", "id IN (1, 2, 3)")
	require.NoError(t, err)
	assert.Equal(t, "(\"id\" IN (1, 2) OR \"id\" IN (3))\n", out)
}

func TestCompileFromFilterSet(t *testing.T) {
	dir := writeFilterSet(t)

	out, _, err := execute(t, "compile", "--inline", "--filters", dir, "--name", "good_gpt4")
	require.NoError(t, err)
	assert.Equal(t, "(\"score\" >= 0.8 AND \"model\" = 'gpt-4')\n", out)
}

func TestCompileFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cond.yaml", `type: simple
column: model
operator: IN
value: [a, b]
`)

	out, _, err := execute(t, "compile", "--inline", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "\"model\" IN ('a', 'b')\n", out)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "where.sql")

	out, _, err := execute(t, "compile", "score IS NULL", "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote SQL to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Equal(t, "\"score\" IS NULL\n", string(data))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"syntax", []string{"compile", "score >"}, ErrCodeSyntax},
		{"unsupported", []string{"compile", "a = b"}, ErrCodeUnsupported},
		{"no condition", []string{"compile"}, ErrCodeNoCondition},
		{"two sources", []string{"compile", "a = 1", "--file", "x.json"}, ErrCodeNoCondition},
		{"missing file", []string{"compile", "--file", "/nonexistent/cond.json"}, ErrCodeNotFound},
		{"unknown dialect", []string{"compile", "--dialect", "oracle", "a = 1"}, ErrCodeGeneric},
		{"name without filters", []string{"compile", "--name", "x"}, ErrCodeNoCondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.True(t, Reported(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCompileWithoutRoot(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"model = 'x'"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"model" = ?`)
}
