package sqlparse

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF         tokenKind = iota
	tokIdent                 // bare word, keywords included
	tokQuotedIdent           // "name"
	tokString                // 'text'
	tokNumber                // 42, 1.5, 1e-3
	tokOp                    // = <> != < <= > >=
	tokArith                 // + * / % ||
	tokMinus                 // -
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokLBracket
	tokRBracket
	tokArrow     // ->
	tokArrowText // ->>
	tokCast      // ::
	tokParam     // ? or $n
)

var tokenNames = map[tokenKind]string{
	tokEOF:         "end of input",
	tokIdent:       "identifier",
	tokQuotedIdent: "quoted identifier",
	tokString:      "string",
	tokNumber:      "number",
	tokOp:          "operator",
	tokArith:       "arithmetic operator",
	tokMinus:       "'-'",
	tokLParen:      "'('",
	tokRParen:      "')'",
	tokComma:       "','",
	tokDot:         "'.'",
	tokLBracket:    "'['",
	tokRBracket:    "']'",
	tokArrow:       "'->'",
	tokArrowText:   "'->>'",
	tokCast:        "'::'",
	tokParam:       "placeholder",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string // unescaped for strings and quoted identifiers
	pos  int
}

// is reports whether t is the keyword kw, case-insensitively.
func (t token) is(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// lex splits the whole input up front so the parser can backtrack freely.
func lex(text string) ([]token, error) {
	l := &lexer{text: text}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

type lexer struct {
	text string
	pos  int
}

func (l *lexer) errorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: pos, Fragment: fragment(l.text, pos)}
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.text) {
		return l.text[l.pos+offset]
	}
	return 0
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.text) && isSpace(l.text[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.text) {
		return token{kind: tokEOF, pos: start}, nil
	}

	emit := func(kind tokenKind, n int) (token, error) {
		l.pos += n
		return token{kind: kind, text: l.text[start:l.pos], pos: start}, nil
	}

	c := l.text[l.pos]
	switch {
	case c == '\'':
		s, err := l.quoted('\'')
		return token{kind: tokString, text: s, pos: start}, err
	case c == '"':
		s, err := l.quoted('"')
		return token{kind: tokQuotedIdent, text: s, pos: start}, err
	case isDigit(c):
		return l.number()
	case isIdentStart(c):
		for l.pos < len(l.text) && isIdentPart(l.text[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.text[start:l.pos], pos: start}, nil
	case c == '(':
		return emit(tokLParen, 1)
	case c == ')':
		return emit(tokRParen, 1)
	case c == ',':
		return emit(tokComma, 1)
	case c == '.':
		return emit(tokDot, 1)
	case c == '[':
		return emit(tokLBracket, 1)
	case c == ']':
		return emit(tokRBracket, 1)
	case c == '=':
		return emit(tokOp, 1)
	case c == '<':
		if n := l.peekByte(1); n == '=' || n == '>' {
			return emit(tokOp, 2)
		}
		return emit(tokOp, 1)
	case c == '>':
		if l.peekByte(1) == '=' {
			return emit(tokOp, 2)
		}
		return emit(tokOp, 1)
	case c == '!':
		if l.peekByte(1) == '=' {
			return emit(tokOp, 2)
		}
	case c == '-':
		if l.peekByte(1) == '>' {
			if l.peekByte(2) == '>' {
				return emit(tokArrowText, 3)
			}
			return emit(tokArrow, 2)
		}
		return emit(tokMinus, 1)
	case c == ':':
		if l.peekByte(1) == ':' {
			return emit(tokCast, 2)
		}
	case c == '+', c == '*', c == '/', c == '%':
		return emit(tokArith, 1)
	case c == '|':
		if l.peekByte(1) == '|' {
			return emit(tokArith, 2)
		}
	case c == '?':
		return emit(tokParam, 1)
	case c == '$':
		n := 1
		for isDigit(l.peekByte(n)) {
			n++
		}
		if n > 1 {
			return emit(tokParam, n)
		}
	}
	return token{}, l.errorf(start, "unexpected character %q", c)
}

// quoted reads a string or identifier delimited by q, where a doubled q
// stands for one literal q.
func (l *lexer) quoted(q byte) (string, error) {
	open := l.pos
	l.pos++

	var b strings.Builder
	for l.pos < len(l.text) {
		c := l.text[l.pos]
		if c == q {
			if l.peekByte(1) == q {
				b.WriteByte(q)
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		l.pos++
	}
	if q == '\'' {
		return "", l.errorf(open, "unterminated string literal")
	}
	return "", l.errorf(open, "unterminated quoted identifier")
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for isDigit(l.peekByte(0)) {
		l.pos++
	}
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		for isDigit(l.peekByte(0)) {
			l.pos++
		}
	}
	if e := l.peekByte(0); e == 'e' || e == 'E' {
		n := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			n++
		}
		if isDigit(l.peekByte(n)) {
			l.pos += n
			for isDigit(l.peekByte(0)) {
				l.pos++
			}
		}
	}
	if isIdentStart(l.peekByte(0)) {
		return token{}, l.errorf(start, "malformed number")
	}
	return token{kind: tokNumber, text: l.text[start:l.pos], pos: start}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
