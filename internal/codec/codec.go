// Package codec moves conditions across process boundaries.
//
// Every format carries the plain form produced by queryir.ToPlain, so a
// condition encoded in one format decodes to the same tree from any other.
// CUE documents may also use the shorthand node forms accepted by
// compiler.CompileFilter, and .sql files hold WHERE-clause text.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tfql/internal/compiler"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/sqlparse"
)

// Format names a serialized representation of a condition.
type Format string

const (
	FormatJSON        Format = "json"
	FormatYAML        Format = "yaml"
	FormatMsgpack     Format = "msgpack"
	FormatMsgpackZstd Format = "msgpack-zstd"
	FormatCUE         Format = "cue"
	FormatSQL         Format = "sql" // decode only
)

// Formats lists the formats Encode accepts.
var Formats = []Format{FormatJSON, FormatYAML, FormatMsgpack, FormatMsgpackZstd, FormatCUE}

// extensions maps file suffixes to formats. Longer suffixes are matched
// first.
var extensions = []struct {
	suffix string
	format Format
}{
	{".msgpack.zst", FormatMsgpackZstd},
	{".mpk.zst", FormatMsgpackZstd},
	{".json", FormatJSON},
	{".yaml", FormatYAML},
	{".yml", FormatYAML},
	{".msgpack", FormatMsgpack},
	{".mpk", FormatMsgpack},
	{".cue", FormatCUE},
	{".sql", FormatSQL},
}

// ParseFormat converts a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatMsgpack, FormatMsgpackZstd, FormatCUE, FormatSQL:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "mpk", "messagepack":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// FormatForPath picks the format from a file name's extension.
func FormatForPath(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext.suffix) {
			return ext.format, nil
		}
	}
	return "", fmt.Errorf("cannot infer format from file name %q", filepath.Base(path))
}

// Encode serializes c in format f.
func Encode(c queryir.Condition, f Format) ([]byte, error) {
	plain, err := queryir.ToPlain(c)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatJSON:
		data, err := queryir.MarshalJSON(c)
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return nil, err
		}
		out.WriteByte('\n')
		return out.Bytes(), nil

	case FormatYAML:
		data, err := yaml.Marshal(plain)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil

	case FormatMsgpack:
		return encodeMsgpack(plain)

	case FormatMsgpackZstd:
		data, err := encodeMsgpack(plain)
		if err != nil {
			return nil, err
		}
		return compress(data)

	case FormatCUE:
		return encodeCUE(plain)

	case FormatSQL:
		return nil, fmt.Errorf("encoding to %s needs a dialect; use querysql", f)
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// Decode parses data in format f. name labels CUE source positions and
// may be empty.
func Decode(data []byte, f Format, name string) (queryir.Condition, error) {
	switch f {
	case FormatJSON:
		return queryir.UnmarshalJSON(data)

	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		if raw == nil {
			return nil, fmt.Errorf("empty YAML document")
		}
		return queryir.FromPlain(raw)

	case FormatMsgpack:
		raw, err := decodeMsgpack(data)
		if err != nil {
			return nil, err
		}
		return queryir.FromPlain(raw)

	case FormatMsgpackZstd:
		plain, err := decompress(data)
		if err != nil {
			return nil, err
		}
		raw, err := decodeMsgpack(plain)
		if err != nil {
			return nil, err
		}
		return queryir.FromPlain(raw)

	case FormatCUE:
		return decodeCUE(data, name)

	case FormatSQL:
		return sqlparse.Parse(string(data))
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// LoadFile reads a condition from path, choosing the format by extension.
func LoadFile(path string) (queryir.Condition, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cond, err := Decode(data, f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cond, nil
}

// WriteFile encodes c into path using the format its extension names.
func WriteFile(path string, c queryir.Condition) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(c, f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func encodeCUE(plain map[string]any) ([]byte, error) {
	v := cuecontext.New().Encode(plain)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode CUE: %w", err)
	}
	data, err := format.Node(v.Syntax(cue.Final(), cue.Concrete(true)))
	if err != nil {
		return nil, fmt.Errorf("failed to format CUE: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeCUE(data []byte, name string) (queryir.Condition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty CUE document")
	}
	var opts []cue.BuildOption
	if name != "" {
		opts = append(opts, cue.Filename(name))
	}
	v := cuecontext.New().CompileBytes(data, opts...)
	return compiler.CompileFilter(v)
}
