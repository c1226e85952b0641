package sqlparse

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
)

// MaxDepth bounds nesting of parentheses and NOT.
const MaxDepth = 1000

// Parse reads a SQL WHERE clause (with or without the WHERE keyword) and
// rebuilds the condition it expresses.
//
// It accepts the output of querysql in every dialect and mode, plus the
// hand-written forms people usually type: bare or quoted column paths,
// `<>`/`!=`, literals on either side of a comparison and `x = NULL`.
func Parse(text string) (queryir.Condition, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{text: text, toks: toks}

	if p.peek().is("WHERE") {
		p.advance()
	}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty expression")
	}

	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		if tok.kind == tokArith || tok.kind == tokMinus {
			return nil, unsupported("arithmetic", "arithmetic expressions cannot be expressed as a filter")
		}
		return nil, p.errorf(tok, "unexpected %s after expression", tok.kind)
	}
	return cond, nil
}

type parser struct {
	text  string
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: tok.pos, Fragment: fragment(p.text, tok.pos)}
}

func unsupported(construct, format string, args ...any) *UnsupportedError {
	return &UnsupportedError{Construct: construct, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, tok.kind)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	tok := p.peek()
	if !tok.is(kw) {
		return p.errorf(tok, "expected %s", kw)
	}
	p.advance()
	return nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorf(p.peek(), "expression nested deeper than %d levels", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// parseOr: and { OR and }
func (p *parser) parseOr() (queryir.Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().is("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = mergeNullMembership(queryir.LogicOr, left, right)
	}
	return left, nil
}

// parseAnd: not { AND not }
func (p *parser) parseAnd() (queryir.Condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().is("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = mergeNullMembership(queryir.LogicAnd, left, right)
	}
	return left, nil
}

// parseNot: NOT not | primary
func (p *parser) parseNot() (queryir.Condition, error) {
	if !p.peek().is("NOT") {
		return p.parsePrimary()
	}
	p.advance()
	// NOT (x) counts once, at the parenthesis.
	if p.peek().kind != tokLParen {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
	}

	child, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return queryir.Not(child), nil
}

// parsePrimary: '(' or-expr ')' | predicate
//
// A leading parenthesis may open a group or a parenthesized operand such as
// `("m"->>'k')::bigint`; the operand reading is tried first.
func (p *parser) parsePrimary() (queryir.Condition, error) {
	if p.peek().kind != tokLParen {
		return p.parsePredicate()
	}
	if p.peekAt(1).is("SELECT") {
		return nil, unsupported("sub-select", "sub-queries cannot be expressed as a filter")
	}

	start := p.pos
	if _, err := p.parseOperand(); err == nil && p.startsTest() {
		p.pos = start
		return p.parsePredicate()
	}
	p.pos = start

	p.advance() // (
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return cond, nil
}

// startsTest reports whether the next token begins the operator half of a
// predicate.
func (p *parser) startsTest() bool {
	tok := p.peek()
	if tok.kind == tokOp {
		return true
	}
	for _, kw := range []string{"IN", "LIKE", "ILIKE", "IS", "BETWEEN"} {
		if tok.is(kw) {
			return true
		}
	}
	if tok.is("NOT") {
		next := p.peekAt(1)
		return next.is("IN") || next.is("LIKE") || next.is("ILIKE") || next.is("BETWEEN")
	}
	return false
}

// operand is the column side of a predicate.
type operand struct {
	path    colpath.Path
	lowered bool // wrapped in LOWER()
}

// parsePredicate: operand test | literal cmp (operand | literal)
func (p *parser) parsePredicate() (queryir.Condition, error) {
	if p.startsLiteral() {
		return p.parseLiteralFirst()
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokArith || tok.kind == tokMinus {
		return nil, unsupported("arithmetic", "arithmetic on %s cannot be expressed as a filter", lhs.path)
	}

	tok := p.peek()
	switch {
	case tok.kind == tokOp:
		return p.parseComparison(lhs)
	case tok.is("IS"):
		return p.parseIsNull(lhs)
	case tok.is("IN"):
		return p.parseIn(lhs, false)
	case tok.is("LIKE"), tok.is("ILIKE"):
		return p.parseLike(lhs, false)
	case tok.is("BETWEEN"):
		return p.parseBetween(lhs, false)
	case tok.is("NOT"):
		next := p.peekAt(1)
		switch {
		case next.is("IN"):
			p.advance()
			return p.parseIn(lhs, true)
		case next.is("LIKE"), next.is("ILIKE"):
			p.advance()
			return p.parseLike(lhs, true)
		case next.is("BETWEEN"):
			p.advance()
			return p.parseBetween(lhs, true)
		}
	}
	return nil, p.errorf(tok, "expected a comparison operator after %s", lhs.path)
}

var comparisonOps = map[string]queryir.Operator{
	"=":  queryir.OpEq,
	"<>": queryir.OpNe,
	"!=": queryir.OpNe,
	"<":  queryir.OpLt,
	"<=": queryir.OpLe,
	">":  queryir.OpGt,
	">=": queryir.OpGe,
}

func (p *parser) parseComparison(lhs operand) (queryir.Condition, error) {
	if err := p.plain(lhs); err != nil {
		return nil, err
	}
	op := comparisonOps[p.advance().text]

	if !p.startsLiteral() {
		return nil, p.valueError()
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return comparison(lhs.path, op, v), nil
}

// comparison builds `path op v`, with `= NULL` and `<> NULL` read as null
// checks.
func comparison(path colpath.Path, op queryir.Operator, v ir.Literal) queryir.Condition {
	col := queryir.ColumnOf(path)
	switch {
	case op == queryir.OpEq && ir.IsNull(v):
		return col.IsNull()
	case op == queryir.OpNe && ir.IsNull(v):
		return col.IsNotNull()
	}
	return queryir.Simple{Path: path, Op: op, Value: v}
}

// parseLiteralFirst handles `5 < x` and constant tests such as `1 = 0`.
func (p *parser) parseLiteralFirst() (queryir.Condition, error) {
	lhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOp {
		return nil, p.errorf(tok, "expected a comparison operator after literal")
	}
	op := comparisonOps[p.advance().text]

	if p.startsLiteral() {
		rhs, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return constant(lhs, op, rhs)
	}

	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if err := p.plain(rhs); err != nil {
		return nil, err
	}
	flipped, _ := op.Flip()
	return comparison(rhs.path, flipped, lhs), nil
}

// constant folds a comparison between two integer literals into the
// column-less MatchAll or MatchNone.
func constant(lhs ir.Literal, op queryir.Operator, rhs ir.Literal) (queryir.Condition, error) {
	a, aok := lhs.(ir.Int)
	b, bok := rhs.(ir.Int)
	if !aok || !bok {
		return nil, unsupported("constant comparison",
			"comparing %s with %s involves no column; only integer constants like 1 = 1 are accepted",
			ir.Format(lhs), ir.Format(rhs))
	}

	var holds bool
	switch op {
	case queryir.OpEq:
		holds = a == b
	case queryir.OpNe:
		holds = a != b
	case queryir.OpLt:
		holds = a < b
	case queryir.OpLe:
		holds = a <= b
	case queryir.OpGt:
		holds = a > b
	case queryir.OpGe:
		holds = a >= b
	}
	if holds {
		return queryir.MatchAll(), nil
	}
	return queryir.MatchNone(), nil
}

func (p *parser) parseIsNull(lhs operand) (queryir.Condition, error) {
	if err := p.plain(lhs); err != nil {
		return nil, err
	}
	p.advance() // IS
	negated := false
	if p.peek().is("NOT") {
		p.advance()
		negated = true
	}
	if err := p.expectKeyword("NULL"); err != nil {
		return nil, err
	}
	col := queryir.ColumnOf(lhs.path)
	if negated {
		return col.IsNotNull(), nil
	}
	return col.IsNull(), nil
}

func (p *parser) parseIn(lhs operand, negated bool) (queryir.Condition, error) {
	if err := p.plain(lhs); err != nil {
		return nil, err
	}
	p.advance() // IN
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if p.peek().is("SELECT") {
		return nil, unsupported("sub-select", "IN (SELECT ...) cannot be expressed as a filter")
	}

	values := []ir.Literal{}
	if p.peek().kind != tokRParen {
		for {
			if !p.startsLiteral() {
				return nil, p.valueError()
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.peek().kind != tokComma {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	col := queryir.ColumnOf(lhs.path)
	if negated {
		return col.NotIn(values...), nil
	}
	return col.In(values...), nil
}

// parseLike reads the LIKE family. `LOWER(x) LIKE LOWER('p')` is the
// portable spelling of ILIKE and is read back as one.
func (p *parser) parseLike(lhs operand, negated bool) (queryir.Condition, error) {
	kw := p.advance()
	insensitive := kw.is("ILIKE")

	lowered := false
	if p.peek().is("LOWER") && p.peekAt(1).kind == tokLParen {
		p.advance()
		p.advance()
		lowered = true
	}
	if !p.startsLiteral() {
		return nil, p.valueError()
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if lowered {
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	switch {
	case lhs.lowered && lowered && !insensitive:
		insensitive = true
	case lhs.lowered || lowered:
		return nil, unsupported("function LOWER", "LOWER() is only accepted as LOWER(column) LIKE LOWER(pattern)")
	}

	op := queryir.OpLike
	switch {
	case insensitive && negated:
		op = queryir.OpNotILike
	case insensitive:
		op = queryir.OpILike
	case negated:
		op = queryir.OpNotLike
	}
	return queryir.Simple{Path: lhs.path, Op: op, Value: v}, nil
}

func (p *parser) parseBetween(lhs operand, negated bool) (queryir.Condition, error) {
	if err := p.plain(lhs); err != nil {
		return nil, err
	}
	kw := p.advance() // BETWEEN

	var bounds [2]ir.Literal
	for i := range bounds {
		if i == 1 {
			if err := p.expectKeyword("AND"); err != nil {
				return nil, err
			}
		}
		if !p.startsLiteral() {
			return nil, p.valueError()
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		bounds[i] = v
	}

	col := queryir.ColumnOf(lhs.path)
	build := col.Between
	if negated {
		build = col.NotBetween
	}
	cond, err := build(bounds[0], bounds[1])
	if err != nil {
		return nil, p.errorf(kw, "%v", err)
	}
	return cond, nil
}

// plain rejects LOWER() outside the ILIKE spelling.
func (p *parser) plain(o operand) error {
	if o.lowered {
		return unsupported("function LOWER", "LOWER() is only accepted as LOWER(column) LIKE LOWER(pattern)")
	}
	return nil
}

// valueError explains why the next token cannot be a value.
func (p *parser) valueError() error {
	tok := p.peek()
	switch tok.kind {
	case tokQuotedIdent:
		return p.errorf(tok,
			"\"%s\" is an identifier in double quotes; use single quotes for string values ('%s')",
			tok.text, strings.ReplaceAll(tok.text, "'", "''"))
	case tokIdent:
		if p.peekAt(1).kind == tokLParen {
			return unsupported("function "+strings.ToUpper(tok.text), "function calls cannot be expressed as a filter value")
		}
		return unsupported("column comparison", "comparing against column %s is not supported; compare with a literal value", tok.text)
	case tokParam:
		return unsupported("placeholder", "bound parameter %s has no value; inline the literal", tok.text)
	case tokLParen:
		if p.peekAt(1).is("SELECT") {
			return unsupported("sub-select", "sub-queries cannot be expressed as a filter")
		}
	}
	return p.errorf(tok, "expected a literal value, found %s", tok.kind)
}

// startsLiteral reports whether the next tokens form a literal value.
func (p *parser) startsLiteral() bool {
	tok := p.peek()
	switch tok.kind {
	case tokString, tokNumber:
		return true
	case tokMinus:
		return p.peekAt(1).kind == tokNumber
	case tokIdent:
		if tok.is("TRUE") || tok.is("FALSE") || tok.is("NULL") {
			return true
		}
		if tok.is("DATE") || tok.is("TIMESTAMP") {
			return p.peekAt(1).kind == tokString
		}
		if tok.is("STRFTIME") || tok.is("DATE") {
			return p.peekAt(1).kind == tokLParen && p.peekAt(2).kind == tokString
		}
	}
	return false
}

// parseValue reads one literal. Callers check startsLiteral first.
func (p *parser) parseValue() (ir.Literal, error) {
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokArith || tok.kind == tokMinus {
		return nil, unsupported("arithmetic", "arithmetic on literals cannot be expressed as a filter")
	}
	return v, nil
}

func (p *parser) parseLiteral() (ir.Literal, error) {
	tok := p.advance()
	switch tok.kind {
	case tokString:
		return ir.Str(tok.text), nil
	case tokMinus:
		num := p.advance()
		return p.number(num, "-"+num.text)
	case tokNumber:
		return p.number(tok, tok.text)
	}

	if p.peek().kind == tokLParen {
		return p.parseDateCall(tok)
	}

	switch {
	case tok.is("TRUE"):
		return ir.Bool(true), nil
	case tok.is("FALSE"):
		return ir.Bool(false), nil
	case tok.is("NULL"):
		return ir.Null{}, nil
	case tok.is("DATE"):
		s := p.advance()
		d, err := ir.ParseDate(s.text)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		return d, nil
	case tok.is("TIMESTAMP"):
		s := p.advance()
		dt, err := ir.ParseDateTime(s.text)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		return dt, nil
	}
	return nil, p.errorf(tok, "expected a literal value, found %s", tok.kind)
}

// sqliteDateTimeFormats are the strftime formats read back as datetimes.
var sqliteDateTimeFormats = []string{"%Y-%m-%dT%H:%M:%S", "%Y-%m-%dT%H:%M:%f"}

// parseDateCall reads SQLite's typed date forms, date('YYYY-MM-DD') and
// strftime('<ISO format>', '...'). name has been consumed; the next token
// is the opening parenthesis.
func (p *parser) parseDateCall(name token) (ir.Literal, error) {
	p.advance() // (

	var lit ir.Literal
	if name.is("STRFTIME") {
		format, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(sqliteDateTimeFormats, format.text) {
			return nil, unsupported("function STRFTIME",
				"only the ISO formats %s are understood, got %q",
				strings.Join(sqliteDateTimeFormats, " and "), format.text)
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		dt, err := ir.ParseDateTime(s.text)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		lit = dt
	} else {
		s, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		d, err := ir.ParseDate(s.text)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		lit = d
	}

	if tok := p.peek(); tok.kind == tokComma {
		return nil, unsupported("function "+strings.ToUpper(name.text), "date modifiers are not supported")
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *parser) number(tok token, text string) (ir.Literal, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return ir.Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf(tok, "invalid number %s", text)
	}
	return ir.Float(f), nil
}
