package sqlparse

import (
	"strconv"
	"strings"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
)

// reserved words never start a column reference.
var reserved = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true, "NULL": true,
	"LIKE": true, "ILIKE": true, "BETWEEN": true, "TRUE": true, "FALSE": true,
	"AS": true, "WHERE": true,
}

// parseOperand reads a column reference and the wrappers the compiler
// puts around it: JSON extraction, arrow chains, casts and LOWER().
// Casts are dropped; the literal on the other side carries the type.
func (p *parser) parseOperand() (operand, error) {
	tok := p.peek()

	var (
		o   operand
		err error
	)
	switch {
	case tok.kind == tokLParen:
		o, err = p.parseParenOperand()
	case tok.kind == tokParam:
		return operand{}, unsupported("placeholder", "bound parameter %s has no value; inline the literal", tok.text)
	case tok.is("SELECT"):
		return operand{}, unsupported("sub-select", "sub-queries cannot be expressed as a filter")
	case tok.kind == tokIdent && p.peekAt(1).kind == tokLParen:
		o, err = p.parseCall()
	case tok.kind == tokIdent && reserved[strings.ToUpper(tok.text)]:
		return operand{}, p.errorf(tok, "expected a column, found keyword %s", strings.ToUpper(tok.text))
	case tok.kind == tokIdent, tok.kind == tokQuotedIdent:
		o.path, err = p.parseColumn()
		if err == nil {
			err = p.parseArrows(&o.path)
		}
	default:
		return operand{}, p.errorf(tok, "expected a column, found %s", tok.kind)
	}
	if err != nil {
		return operand{}, err
	}

	for p.peek().kind == tokCast {
		p.advance()
		if err := p.skipTypeName(tokEOF); err != nil {
			return operand{}, err
		}
	}
	return o, nil
}

func (p *parser) parseParenOperand() (operand, error) {
	p.advance() // (
	if err := p.enter(); err != nil {
		return operand{}, err
	}
	defer p.leave()

	o, err := p.parseOperand()
	if err != nil {
		return operand{}, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return operand{}, err
	}
	return o, nil
}

// parseCall reads the functions the compiler emits around columns.
func (p *parser) parseCall() (operand, error) {
	name := p.advance()
	p.advance() // (
	if err := p.enter(); err != nil {
		return operand{}, err
	}
	defer p.leave()

	var o operand
	switch strings.ToLower(name.text) {
	case "cast":
		inner, err := p.parseOperand()
		if err != nil {
			return operand{}, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return operand{}, err
		}
		if err := p.skipTypeName(tokRParen); err != nil {
			return operand{}, err
		}
		o = inner

	case "lower":
		inner, err := p.parseOperand()
		if err != nil {
			return operand{}, err
		}
		if inner.lowered {
			return operand{}, unsupported("function LOWER", "nested LOWER() calls are not supported")
		}
		inner.lowered = true
		o = inner

	case "json_extract", "json_extract_string":
		col, err := p.parseColumn()
		if err != nil {
			return operand{}, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return operand{}, err
		}
		jp, err := p.expect(tokString)
		if err != nil {
			return operand{}, err
		}
		extracted, err := colpath.ParseJSONPath(col.Column, jp.text)
		if err != nil {
			return operand{}, p.errorf(jp, "invalid JSON path: %v", err)
		}
		steps := append(append([]colpath.Step{}, col.Steps...), extracted.Steps...)
		o.path = colpath.New(col.Column, steps...)

	default:
		return operand{}, unsupported("function "+strings.ToUpper(name.text),
			"only CAST, LOWER, json_extract and json_extract_string are understood")
	}

	if _, err := p.expect(tokRParen); err != nil {
		return operand{}, err
	}
	return o, nil
}

// parseColumn reads name { .name | [n] } where names are bare or
// double-quoted.
func (p *parser) parseColumn() (colpath.Path, error) {
	tok := p.peek()
	if tok.kind != tokIdent && tok.kind != tokQuotedIdent {
		return colpath.Path{}, p.errorf(tok, "expected a column, found %s", tok.kind)
	}
	p.advance()
	if tok.text == "" {
		return colpath.Path{}, p.errorf(tok, "empty column name")
	}

	var steps []colpath.Step
	for {
		switch p.peek().kind {
		case tokDot:
			key := p.peekAt(1)
			if key.kind != tokIdent && key.kind != tokQuotedIdent {
				return colpath.Path{}, p.errorf(key, "expected a key after '.'")
			}
			p.advance()
			p.advance()
			steps = append(steps, colpath.KeyStep(key.text))
		case tokLBracket:
			p.advance()
			idx, err := p.index()
			if err != nil {
				return colpath.Path{}, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return colpath.Path{}, err
			}
			steps = append(steps, colpath.IndexStep(idx))
		default:
			return colpath.New(tok.text, steps...), nil
		}
	}
}

// parseArrows appends postgres `->` / `->>` hops to path.
func (p *parser) parseArrows(path *colpath.Path) error {
	for p.peek().kind == tokArrow || p.peek().kind == tokArrowText {
		p.advance()
		switch tok := p.peek(); tok.kind {
		case tokString:
			p.advance()
			path.Steps = append(path.Steps, colpath.KeyStep(tok.text))
		case tokNumber:
			idx, err := p.index()
			if err != nil {
				return err
			}
			path.Steps = append(path.Steps, colpath.IndexStep(idx))
		default:
			return p.errorf(tok, "expected a key or index after arrow, found %s", tok.kind)
		}
	}
	return nil
}

func (p *parser) index() (int, error) {
	tok := p.peek()
	if tok.kind != tokNumber || strings.ContainsAny(tok.text, ".eE") {
		return 0, p.errorf(tok, "array index must be a non-negative integer")
	}
	p.advance()
	n, err := strconv.Atoi(tok.text)
	if err != nil {
		return 0, p.errorf(tok, "array index out of range: %s", tok.text)
	}
	return n, nil
}

// skipTypeName consumes a SQL type such as BIGINT, double precision or
// VARCHAR(255). With until set to tokRParen it reads up to (not including)
// the closing parenthesis of CAST(... AS type).
func (p *parser) skipTypeName(until tokenKind) error {
	first := p.peek()
	if first.kind != tokIdent {
		return p.errorf(first, "expected a type name, found %s", first.kind)
	}
	p.advance()

	for {
		tok := p.peek()
		switch {
		case tok.kind == tokLParen:
			// Length or precision arguments.
			p.advance()
			for p.peek().kind == tokNumber || p.peek().kind == tokComma {
				p.advance()
			}
			if _, err := p.expect(tokRParen); err != nil {
				return err
			}
		case tok.kind == tokIdent && until == tokRParen:
			p.advance()
		case tok.is("PRECISION") && first.is("DOUBLE"):
			p.advance()
		default:
			return nil
		}
	}
}

// mergeNullMembership folds the compiler's spelling of a membership test
// with a NULL element back into one node:
//
//	(c IN (...) OR c IS NULL)          -> c IN (..., NULL)
//	(c NOT IN (...) AND c IS NOT NULL) -> c NOT IN (..., NULL)
func mergeNullMembership(op queryir.LogicalOperator, left, right queryir.Condition) queryir.Condition {
	l, lok := left.(queryir.Simple)
	r, rok := right.(queryir.Simple)
	if lok && rok && !l.Path.IsZero() && l.Path.Equal(r.Path) {
		list, ok := l.Value.(ir.List)
		inWithNull := op == queryir.LogicOr && l.Op == queryir.OpIn && r.Op == queryir.OpIsNull
		notInWithoutNull := op == queryir.LogicAnd && l.Op == queryir.OpNotIn && r.Op == queryir.OpIsNotNull
		if ok && len(list) > 0 && (inWithNull || notInWithoutNull) {
			merged := append(append(ir.List{}, list...), ir.Null{})
			return queryir.Simple{Path: l.Path, Op: l.Op, Value: merged}
		}
	}
	return queryir.Compound{Op: op, Left: left, Right: right}
}
