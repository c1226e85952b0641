package querysql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
)

// Statement is a rendered WHERE-clause fragment.
type Statement struct {
	// SQL is the fragment text, without the WHERE keyword.
	SQL string

	// Params holds the bound values in placeholder order. Empty in
	// Inline mode.
	Params []ir.Literal
}

// Args converts Params to driver values for database/sql.
func (s Statement) Args() ([]any, error) {
	args := make([]any, len(s.Params))
	for i, p := range s.Params {
		v, err := ir.ToParam(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		args[i] = v
	}
	return args, nil
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMode selects parameterized or inline rendering.
func WithMode(m Mode) Option {
	return func(c *Compiler) { c.mode = m }
}

// WithPlaceholderOffset starts postgres placeholder numbering after n, for
// fragments embedded in a statement that already binds n values.
func WithPlaceholderOffset(n int) Option {
	return func(c *Compiler) { c.offset = n }
}

// WithColumnMapping renames root columns before quoting. Columns missing
// from the map are used as written.
func WithColumnMapping(m map[string]string) Option {
	return func(c *Compiler) {
		c.columns = make(map[string]string, len(m))
		for k, v := range m {
			c.columns[k] = v
		}
	}
}

// Compiler renders conditions as SQL for one dialect.
//
// A Compiler is immutable after construction and safe for concurrent use.
type Compiler struct {
	dialect Dialect
	mode    Mode
	offset  int
	columns map[string]string
}

// NewCompiler creates a Compiler for dialect. Mode defaults to
// Parameterized.
func NewCompiler(dialect Dialect, opts ...Option) (*Compiler, error) {
	c := &Compiler{dialect: dialect, mode: Parameterized}
	for _, opt := range opts {
		opt(c)
	}
	if !c.dialect.valid() {
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
	if c.mode != Parameterized && c.mode != Inline {
		return nil, fmt.Errorf("unknown mode %q", c.mode)
	}
	if c.offset < 0 {
		return nil, fmt.Errorf("placeholder offset must not be negative, got %d", c.offset)
	}
	return c, nil
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Mode returns the compiler's mode.
func (c *Compiler) Mode() Mode { return c.mode }

// ToSQL renders cond for dialect in mode.
func ToSQL(cond queryir.Condition, dialect Dialect, mode Mode) (Statement, error) {
	c, err := NewCompiler(dialect, WithMode(mode))
	if err != nil {
		return Statement{}, err
	}
	return c.Compile(cond)
}

// Compile renders cond as a WHERE-clause fragment.
//
// CRITICAL: In Parameterized mode values are NEVER interpolated; every
// literal except NULL becomes a placeholder.
// Any tree produced by the builder or the parser renders except malformed
// trees (nil children, wrong value shapes) and, outside Postgres, JSON keys
// containing a double quote or backslash (colpath.ErrJSONPathKey).
func (c *Compiler) Compile(cond queryir.Condition) (Statement, error) {
	r := &renderer{Compiler: c, params: []ir.Literal{}}
	sql, err := r.render(cond)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Params: r.params}, nil
}

// renderer holds the state of one Compile call.
type renderer struct {
	*Compiler
	params []ir.Literal
}

// render walks the tree with an explicit stack and streams the SQL into a
// single builder. A frame carries either a node or the literal text that
// follows a finished child, so output is written strictly left to right
// and placeholders number in the same order.
func (r *renderer) render(root queryir.Condition) (string, error) {
	type frame struct {
		c      queryir.Condition
		text   string
		isText bool
	}
	var sb strings.Builder
	stack := []frame{{c: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.isText {
			sb.WriteString(f.text)
			continue
		}

		n, err := queryir.Node(f.c)
		if err != nil {
			return "", err
		}

		switch n := n.(type) {
		case queryir.Simple:
			sql, err := r.simple(n)
			if err != nil {
				return "", err
			}
			sb.WriteString(sql)

		case queryir.Compound:
			if err := checkCompound(n); err != nil {
				return "", err
			}
			if n.Op == queryir.LogicNot {
				sb.WriteString("NOT (")
				stack = append(stack, frame{text: ")", isText: true}, frame{c: n.Left})
				continue
			}
			sb.WriteByte('(')
			stack = append(stack,
				frame{text: ")", isText: true},
				frame{c: n.Right},
				frame{text: " " + string(n.Op) + " ", isText: true},
				frame{c: n.Left},
			)
		}
	}

	return sb.String(), nil
}

func checkCompound(n queryir.Compound) error {
	switch n.Op {
	case queryir.LogicAnd, queryir.LogicOr:
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("%w: %s needs two operands", queryir.ErrMalformed, n.Op)
		}
	case queryir.LogicNot:
		if n.Left == nil || n.Right != nil {
			return fmt.Errorf("%w: NOT needs exactly one operand", queryir.ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown logical operator %q", queryir.ErrMalformed, n.Op)
	}
	return nil
}

var comparisonSQL = map[queryir.Operator]string{
	queryir.OpEq: "=",
	queryir.OpNe: "<>",
	queryir.OpLt: "<",
	queryir.OpLe: "<=",
	queryir.OpGt: ">",
	queryir.OpGe: ">=",
}

func (r *renderer) simple(s queryir.Simple) (string, error) {
	if err := queryir.CheckSimple(s); err != nil {
		return "", err
	}
	if r.dialect != Postgres {
		if err := s.Path.CheckJSONPath(); err != nil {
			return "", fmt.Errorf("%s: %w", r.dialect, err)
		}
	}

	// Column-less constants: empty IN / NOT IN.
	if s.Path.IsZero() {
		if s.Op == queryir.OpIn {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}

	switch {
	case s.Op.IsComparison():
		lhs := r.operand(s.Path, castKind(s.Value))
		rhs, err := r.value(s.Value)
		if err != nil {
			return "", err
		}
		return lhs + " " + comparisonSQL[s.Op] + " " + rhs, nil

	case s.Op.IsMembership():
		return r.membership(s)

	case s.Op.IsPattern():
		return r.pattern(s)

	case s.Op == queryir.OpIsNull:
		return r.operand(s.Path, ir.KindNull) + " IS NULL", nil

	case s.Op == queryir.OpIsNotNull:
		return r.operand(s.Path, ir.KindNull) + " IS NOT NULL", nil

	case s.Op.IsRange():
		bounds := s.Value.(ir.List)
		lhs := r.operand(s.Path, castKind(bounds))
		lo, err := r.value(bounds[0])
		if err != nil {
			return "", err
		}
		hi, err := r.value(bounds[1])
		if err != nil {
			return "", err
		}
		keyword := " BETWEEN "
		if s.Op == queryir.OpNotBetween {
			keyword = " NOT BETWEEN "
		}
		return lhs + keyword + lo + " AND " + hi, nil
	}

	return "", fmt.Errorf("%w: unhandled operator %s", queryir.ErrMalformed, s.Op)
}

// membership renders IN / NOT IN. NULL never matches inside an IN list, so
// null elements are pulled out into an explicit IS [NOT] NULL test.
func (r *renderer) membership(s queryir.Simple) (string, error) {
	list := s.Value.(ir.List)
	if len(list) == 0 {
		if s.Op == queryir.OpIn {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}

	values := make(ir.List, 0, len(list))
	hasNull := false
	for _, v := range list {
		if ir.IsNull(v) {
			hasNull = true
			continue
		}
		values = append(values, v)
	}

	lhs := r.operand(s.Path, castKind(values))
	nullCheck := lhs + " IS NULL"
	if s.Op == queryir.OpNotIn {
		nullCheck = lhs + " IS NOT NULL"
	}
	if len(values) == 0 {
		return nullCheck, nil
	}

	items := make([]string, len(values))
	for i, v := range values {
		item, err := r.value(v)
		if err != nil {
			return "", err
		}
		items[i] = item
	}

	keyword := " IN ("
	if s.Op == queryir.OpNotIn {
		keyword = " NOT IN ("
	}
	sql := lhs + keyword + strings.Join(items, ", ") + ")"

	switch {
	case !hasNull:
		return sql, nil
	case s.Op == queryir.OpIn:
		return "(" + sql + " OR " + nullCheck + ")", nil
	default:
		return "(" + sql + " AND " + nullCheck + ")", nil
	}
}

// pattern renders the LIKE family. Patterns compare as text, so nested
// values are never cast to the literal's type.
func (r *renderer) pattern(s queryir.Simple) (string, error) {
	lhs := r.extract(s.Path)
	if r.dialect == DuckDB && s.Path.IsNested() {
		lhs = "CAST(" + lhs + " AS VARCHAR)"
	}
	rhs, err := r.value(s.Value)
	if err != nil {
		return "", err
	}

	negated := s.Op == queryir.OpNotLike || s.Op == queryir.OpNotILike
	keyword := "LIKE"
	if s.Op == queryir.OpILike || s.Op == queryir.OpNotILike {
		if r.dialect.nativeILike() {
			keyword = "ILIKE"
		} else {
			lhs = "LOWER(" + lhs + ")"
			rhs = "LOWER(" + rhs + ")"
		}
	}
	if negated {
		keyword = "NOT " + keyword
	}
	return lhs + " " + keyword + " " + rhs, nil
}

// operand renders the left-hand side of a test, cast for comparison with
// a literal of the given kind when the path reaches into a JSON value.
func (r *renderer) operand(p colpath.Path, kind ir.Kind) string {
	expr := r.extract(p)
	if !p.IsNested() {
		return expr
	}
	return r.cast(expr, kind)
}

// extract renders the value addressed by p as text.
func (r *renderer) extract(p colpath.Path) string {
	col := quoteIdent(r.column(p.Column))
	if !p.IsNested() {
		return col
	}

	switch r.dialect {
	case Postgres:
		var b strings.Builder
		b.WriteString(col)
		for i, step := range p.Steps {
			if i == len(p.Steps)-1 {
				b.WriteString("->>")
			} else {
				b.WriteString("->")
			}
			if step.IsIndex {
				b.WriteString(strconv.Itoa(step.Index))
			} else {
				b.WriteString(quoteString(step.Key))
			}
		}
		return b.String()
	case DuckDB:
		return "json_extract_string(" + col + ", " + quoteString(p.JSONPath()) + ")"
	default:
		return "json_extract(" + col + ", " + quoteString(p.JSONPath()) + ")"
	}
}

func (r *renderer) column(name string) string {
	if mapped, ok := r.columns[name]; ok {
		return mapped
	}
	return name
}

// cast wraps a JSON-extracted expression so it compares as kind.
func (r *renderer) cast(expr string, kind ir.Kind) string {
	var sqlType string
	switch r.dialect {
	case SQLite:
		switch kind {
		case ir.KindInt, ir.KindBool:
			sqlType = "INTEGER"
		case ir.KindFloat:
			sqlType = "REAL"
		}
	case DuckDB:
		switch kind {
		case ir.KindInt:
			sqlType = "BIGINT"
		case ir.KindFloat:
			sqlType = "DOUBLE"
		case ir.KindBool:
			sqlType = "BOOLEAN"
		case ir.KindDate:
			sqlType = "DATE"
		case ir.KindDateTime:
			sqlType = "TIMESTAMP"
		}
	case Postgres:
		switch kind {
		case ir.KindInt:
			sqlType = "bigint"
		case ir.KindFloat:
			sqlType = "double precision"
		case ir.KindBool:
			sqlType = "boolean"
		case ir.KindDate:
			sqlType = "date"
		case ir.KindDateTime:
			sqlType = "timestamp"
		}
		if sqlType != "" {
			return "(" + expr + ")::" + sqlType
		}
	}
	if sqlType == "" {
		return expr
	}
	return "CAST(" + expr + " AS " + sqlType + ")"
}

// castKind picks the comparison type for a literal. Lists use their common
// element kind; integers mixed with floats compare as floats; any other mix
// compares as text.
func castKind(v ir.Literal) ir.Kind {
	list, ok := v.(ir.List)
	if !ok {
		if v == nil {
			return ir.KindNull
		}
		return v.Kind()
	}

	kind := ir.KindNull
	for _, elem := range list {
		k := elem.Kind()
		switch {
		case k == ir.KindNull, k == kind:
		case kind == ir.KindNull:
			kind = k
		case (kind == ir.KindInt && k == ir.KindFloat) || (kind == ir.KindFloat && k == ir.KindInt):
			kind = ir.KindFloat
		default:
			return ir.KindStr
		}
	}
	return kind
}

// value renders a literal as a placeholder (recording the parameter) or
// inline text. NULL is always written as the keyword.
func (r *renderer) value(v ir.Literal) (string, error) {
	if ir.IsNull(v) {
		return "NULL", nil
	}
	if r.mode == Parameterized {
		r.params = append(r.params, v)
		return r.dialect.Placeholder(r.offset + len(r.params)), nil
	}
	return r.inline(v)
}

func (r *renderer) inline(v ir.Literal) (string, error) {
	switch val := v.(type) {
	case ir.Bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.Float:
		return formatFloat(float64(val))
	case ir.Str:
		return quoteString(string(val)), nil
	case ir.Date:
		if r.dialect == SQLite {
			return "date(" + quoteString(val.String()) + ")", nil
		}
		return "DATE " + quoteString(val.String()), nil
	case ir.DateTime:
		if r.dialect == SQLite {
			return "strftime(" + quoteString(sqliteDateTimeFormat(val)) + ", " + quoteString(val.String()) + ")", nil
		}
		return "TIMESTAMP " + quoteString(val.String()), nil
	}
	return "", fmt.Errorf("%w: cannot inline %T", queryir.ErrMalformed, v)
}

// SQLite has no typed date literals. Inline dates render as date('...')
// and datetimes as strftime with one of these formats; both evaluate to
// the same ISO text a bound parameter carries.
const (
	sqliteDateTimeSeconds  = "%Y-%m-%dT%H:%M:%S"
	sqliteDateTimeFraction = "%Y-%m-%dT%H:%M:%f"
)

// sqliteDateTimeFormat picks the strftime format for dt. %f keeps
// milliseconds only.
func sqliteDateTimeFormat(dt ir.DateTime) string {
	if dt.Nanosecond() == 0 {
		return sqliteDateTimeSeconds
	}
	return sqliteDateTimeFraction
}

// formatFloat renders f so it always reads back as a float: a decimal
// point or exponent is always present.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("cannot inline non-finite float %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString single-quotes a string literal, doubling embedded quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
