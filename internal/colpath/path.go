// Package colpath parses and renders column references with nested JSON
// steps: `metadata.user.name`, `items[0].name`, `data."user.name"`.
package colpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a root column plus an optional chain of object keys and
// array indices into the structured value stored in that column.
//
// A Path with no steps addresses the column itself. The zero Path has no
// column and is only used for constant membership tests.
type Path struct {
	Column string
	Steps  []Step
}

// Step is one hop into a nested value: an object key or an array index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeyStep returns an object-member step.
func KeyStep(key string) Step { return Step{Key: key} }

// IndexStep returns an array-index step.
func IndexStep(i int) Step { return Step{Index: i, IsIndex: true} }

// New builds a Path from a root column and steps.
func New(column string, steps ...Step) Path {
	return Path{Column: column, Steps: steps}
}

// SyntaxError reports a malformed column reference.
type SyntaxError struct {
	Text    string
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid column path %q at offset %d: %s", e.Text, e.Pos, e.Message)
}

// IsZero reports whether p is the column-less path.
func (p Path) IsZero() bool {
	return p.Column == "" && len(p.Steps) == 0
}

// IsNested reports whether p addresses a value inside its column.
func (p Path) IsNested() bool {
	return len(p.Steps) > 0
}

// Equal compares two paths step by step.
func (p Path) Equal(o Path) bool {
	if p.Column != o.Column || len(p.Steps) != len(o.Steps) {
		return false
	}
	for i := range p.Steps {
		if p.Steps[i] != o.Steps[i] {
			return false
		}
	}
	return true
}

// WithColumn returns a copy of p rooted at a different column.
func (p Path) WithColumn(column string) Path {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	return Path{Column: column, Steps: steps}
}

// Parse splits a column reference into its root column and steps.
//
// Grammar:
//
//	path    = segment { "." segment | "[" digits "]" }
//	segment = bare | '"' { char | '""' } '"'
//	bare    = one or more characters other than . [ ] "
//
// Bare segments may contain hyphens, spaces and other punctuation.
func Parse(text string) (Path, error) {
	p := &parser{text: text}

	root, err := p.segment()
	if err != nil {
		return Path{}, err
	}
	if root == "" {
		return Path{}, &SyntaxError{Text: text, Pos: 0, Message: "empty column name"}
	}
	path := Path{Column: root}

	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case '.':
			p.pos++
			key, err := p.segment()
			if err != nil {
				return Path{}, err
			}
			path.Steps = append(path.Steps, KeyStep(key))
		case '[':
			idx, err := p.index()
			if err != nil {
				return Path{}, err
			}
			path.Steps = append(path.Steps, IndexStep(idx))
		default:
			return Path{}, p.errorf("unexpected character %q", p.text[p.pos])
		}
	}

	return path, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or with constant inputs.
func MustParse(text string) Path {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	text string
	pos  int
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Text: p.text, Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) segment() (string, error) {
	if p.pos >= len(p.text) {
		return "", p.errorf("expected a name")
	}
	if p.text[p.pos] == '"' {
		return p.quoted()
	}

	start := p.pos
	for p.pos < len(p.text) && !strings.ContainsRune(`.[]"`, rune(p.text[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected a name")
	}
	return p.text[start:p.pos], nil
}

func (p *parser) quoted() (string, error) {
	open := p.pos
	p.pos++ // opening quote

	var b strings.Builder
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if c == '"' {
			if p.pos+1 < len(p.text) && p.text[p.pos+1] == '"' {
				b.WriteByte('"')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", &SyntaxError{Text: p.text, Pos: open, Message: "unterminated quoted name"}
}

func (p *parser) index() (int, error) {
	open := p.pos
	p.pos++ // [

	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] != ']' {
		p.pos++
	}
	if p.pos >= len(p.text) {
		return 0, &SyntaxError{Text: p.text, Pos: open, Message: "unterminated bracket"}
	}

	digits := p.text[start:p.pos]
	p.pos++ // ]

	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, &SyntaxError{Text: p.text, Pos: start,
			Message: fmt.Sprintf("array index must be a non-negative integer, got %q", digits)}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &SyntaxError{Text: p.text, Pos: start, Message: fmt.Sprintf("array index out of range: %s", digits)}
	}
	return n, nil
}

// String renders the path in the notation Parse accepts. Segments that
// would not survive a bare re-parse are quoted.
func (p Path) String() string {
	if p.IsZero() {
		return ""
	}
	var b strings.Builder
	writeSegment(&b, p.Column)
	for _, s := range p.Steps {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		b.WriteByte('.')
		writeSegment(&b, s.Key)
	}
	return b.String()
}

func writeSegment(b *strings.Builder, name string) {
	if !needsQuoting(name) {
		b.WriteString(name)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(name, `"`, `""`))
	b.WriteByte('"')
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for _, r := range name {
		switch r {
		case '.', '[', ']', '"', '\'', ' ', '\t', '\n', '\r':
			return true
		}
	}
	return false
}

// JSONPath renders the steps as a JSON path rooted at `$`, as used by
// json_extract: `$.user.name`, `$.items[0]`, `$."k.dot"`.
func (p Path) JSONPath() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.Steps {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		b.WriteByte('.')
		if isJSONIdentifier(s.Key) {
			b.WriteString(s.Key)
			continue
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(s.Key, `\`, `\\`), `"`, `\"`))
		b.WriteByte('"')
	}
	return b.String()
}

// ErrJSONPathKey marks a key that json_extract-style paths cannot spell.
var ErrJSONPathKey = errors.New("key cannot be written in a JSON path")

// CheckJSONPath reports keys holding a double quote or a backslash.
// SQLite and DuckDB end a quoted label at the next double quote and read
// no escapes inside it, so such keys are only reachable by operator
// chains (Postgres ->).
func (p Path) CheckJSONPath() error {
	for _, s := range p.Steps {
		if !s.IsIndex && strings.ContainsAny(s.Key, `"\`) {
			return fmt.Errorf("%w: %q in %s", ErrJSONPathKey, s.Key, p)
		}
	}
	return nil
}

func isJSONIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ParseJSONPath reads a `$`-rooted JSON path back into steps under column.
// It accepts the output of JSONPath plus bracketed quoted keys (`$["k"]`).
func ParseJSONPath(column, jsonPath string) (Path, error) {
	p := &parser{text: jsonPath}
	if !strings.HasPrefix(jsonPath, "$") {
		return Path{}, p.errorf("JSON path must start with $")
	}
	p.pos = 1

	path := Path{Column: column}
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case '.':
			p.pos++
			if p.pos < len(p.text) && p.text[p.pos] == '"' {
				key, err := p.jsonQuoted()
				if err != nil {
					return Path{}, err
				}
				path.Steps = append(path.Steps, KeyStep(key))
				continue
			}
			start := p.pos
			for p.pos < len(p.text) && !strings.ContainsRune(`.[`, rune(p.text[p.pos])) {
				p.pos++
			}
			if p.pos == start {
				return Path{}, p.errorf("expected a key")
			}
			path.Steps = append(path.Steps, KeyStep(p.text[start:p.pos]))
		case '[':
			if p.pos+1 < len(p.text) && p.text[p.pos+1] == '"' {
				p.pos++
				key, err := p.jsonQuoted()
				if err != nil {
					return Path{}, err
				}
				if p.pos >= len(p.text) || p.text[p.pos] != ']' {
					return Path{}, p.errorf("expected ]")
				}
				p.pos++
				path.Steps = append(path.Steps, KeyStep(key))
				continue
			}
			idx, err := p.index()
			if err != nil {
				return Path{}, err
			}
			path.Steps = append(path.Steps, IndexStep(idx))
		default:
			return Path{}, p.errorf("unexpected character %q", p.text[p.pos])
		}
	}
	return path, nil
}

// jsonQuoted reads a backslash-escaped double-quoted key.
func (p *parser) jsonQuoted() (string, error) {
	open := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.text) {
				return "", &SyntaxError{Text: p.text, Pos: p.pos, Message: "dangling escape"}
			}
			b.WriteByte(p.text[p.pos+1])
			p.pos += 2
		case '"':
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", &SyntaxError{Text: p.text, Pos: open, Message: "unterminated quoted key"}
}
