package sqlparse

import (
	"errors"
	"fmt"
)

// SyntaxError reports WHERE-clause text that could not be parsed.
type SyntaxError struct {
	Message  string
	Pos      int    // byte offset into the input
	Fragment string // input text at Pos, truncated
}

func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("syntax error at position %d near %q: %s", e.Pos, e.Fragment, e.Message)
}

// UnsupportedError reports valid SQL that has no Condition equivalent:
// sub-selects, bound placeholders, unknown functions, arithmetic and
// column-to-column comparisons.
type UnsupportedError struct {
	Message   string
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s: %s", e.Construct, e.Message)
}

// IsSyntaxError returns true if err is a SyntaxError.
// Uses errors.As to handle wrapped errors.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnsupported returns true if err is an UnsupportedError.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

const fragmentLen = 24

func fragment(text string, pos int) string {
	if pos >= len(text) {
		return ""
	}
	end := min(pos+fragmentLen, len(text))
	return text[pos:end]
}
