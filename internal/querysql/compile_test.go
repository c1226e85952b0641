package querysql

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tfql/internal/colpath"
	"github.com/roach88/tfql/internal/ir"
	"github.com/roach88/tfql/internal/queryir"
)

func col(ref string) queryir.ColumnRef { return queryir.MustColumn(ref) }

func mustBetween(t *testing.T, c queryir.ColumnRef, lo, hi ir.Literal) queryir.Condition {
	t.Helper()
	cond, err := c.Between(lo, hi)
	require.NoError(t, err)
	return cond
}

func TestToSQL_ParameterizedEquality(t *testing.T) {
	stmt, err := ToSQL(col("count").Eq(ir.Int(42)), SQLite, Parameterized)
	require.NoError(t, err)

	assert.Equal(t, `"count" = ?`, stmt.SQL)
	assert.Equal(t, []ir.Literal{ir.Int(42)}, stmt.Params)

	args, err := stmt.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42)}, args)
}

func TestToSQL_InlineStrings(t *testing.T) {
	stmt, err := ToSQL(col("model").Eq(ir.Str("gpt-4")), SQLite, Inline)
	require.NoError(t, err)
	assert.Equal(t, `"model" = 'gpt-4'`, stmt.SQL)
	assert.Empty(t, stmt.Params)

	for _, d := range Dialects {
		stmt, err := ToSQL(col("model").Eq(ir.Str("it's a test")), d, Inline)
		require.NoError(t, err)
		assert.Equal(t, `"model" = 'it''s a test'`, stmt.SQL, "dialect %s", d)
	}
}

func TestToSQL_EmptyMembership(t *testing.T) {
	for _, d := range Dialects {
		for _, m := range []Mode{Parameterized, Inline} {
			stmt, err := ToSQL(col("model").In(), d, m)
			require.NoError(t, err)
			assert.Equal(t, "1 = 0", stmt.SQL)
			assert.Empty(t, stmt.Params)

			stmt, err = ToSQL(col("model").NotIn(), d, m)
			require.NoError(t, err)
			assert.Equal(t, "1 = 1", stmt.SQL)

			stmt, err = ToSQL(queryir.MatchNone(), d, m)
			require.NoError(t, err)
			assert.Equal(t, "1 = 0", stmt.SQL)

			stmt, err = ToSQL(queryir.MatchAll(), d, m)
			require.NoError(t, err)
			assert.Equal(t, "1 = 1", stmt.SQL)
		}
	}
}

func TestToSQL_MembershipWithNull(t *testing.T) {
	cond := col("model").In(ir.Str("a"), ir.Null{}, ir.Str("b"))

	stmt, err := ToSQL(cond, SQLite, Inline)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `IN ('a', 'b')`)
	assert.Contains(t, stmt.SQL, `OR "model" IS NULL`)

	stmt, err = ToSQL(cond, SQLite, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `("model" IN (?, ?) OR "model" IS NULL)`, stmt.SQL)
	assert.Equal(t, []ir.Literal{ir.Str("a"), ir.Str("b")}, stmt.Params)

	stmt, err = ToSQL(col("model").NotIn(ir.Str("a"), ir.Null{}), Postgres, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `("model" NOT IN ($1) AND "model" IS NOT NULL)`, stmt.SQL)
}

func TestToSQL_MembershipOnlyNulls(t *testing.T) {
	stmt, err := ToSQL(col("model").In(ir.Null{}, nil), DuckDB, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `"model" IS NULL`, stmt.SQL)
	assert.Empty(t, stmt.Params)

	stmt, err = ToSQL(col("model").NotIn(ir.Null{}), DuckDB, Inline)
	require.NoError(t, err)
	assert.Equal(t, `"model" IS NOT NULL`, stmt.SQL)
}

func TestToSQL_PostgresNumbering(t *testing.T) {
	cond := queryir.And(
		queryir.Or(col("a").Eq(ir.Int(1)), col("b").In(ir.Int(2), ir.Int(3))),
		queryir.Not(mustBetween(t, col("c"), ir.Int(4), ir.Int(5))),
	)

	stmt, err := ToSQL(cond, Postgres, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `(("a" = $1 OR "b" IN ($2, $3)) AND NOT ("c" BETWEEN $4 AND $5))`, stmt.SQL)
	assert.Equal(t, []ir.Literal{ir.Int(1), ir.Int(2), ir.Int(3), ir.Int(4), ir.Int(5)}, stmt.Params)
}

func TestCompiler_PlaceholderOffset(t *testing.T) {
	c, err := NewCompiler(Postgres, WithPlaceholderOffset(2))
	require.NoError(t, err)

	stmt, err := c.Compile(queryir.And(col("a").Eq(ir.Int(1)), col("b").Ne(ir.Str("x"))))
	require.NoError(t, err)
	assert.Equal(t, `("a" = $3 AND "b" <> $4)`, stmt.SQL)

	// Offsets do not change positional markers.
	c, err = NewCompiler(SQLite, WithPlaceholderOffset(2))
	require.NoError(t, err)
	stmt, err = c.Compile(col("a").Eq(ir.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, `"a" = ?`, stmt.SQL)
}

func TestCompiler_ColumnMapping(t *testing.T) {
	mapping := map[string]string{"id": "transcript_id", "meta": "metadata"}
	c, err := NewCompiler(SQLite, WithColumnMapping(mapping), WithMode(Inline))
	require.NoError(t, err)

	mapping["id"] = "changed"

	stmt, err := c.Compile(queryir.And(col("id").Eq(ir.Str("t1")), col("meta.k").IsNull()))
	require.NoError(t, err)
	assert.Equal(t, `("transcript_id" = 't1' AND json_extract("metadata", '$.k') IS NULL)`, stmt.SQL)
}

func TestToSQL_InlineLiterals(t *testing.T) {
	tests := []struct {
		name string
		lit  ir.Literal
		want string
	}{
		{"true", ir.Bool(true), `"v" = TRUE`},
		{"false", ir.Bool(false), `"v" = FALSE`},
		{"negative int", ir.Int(-7), `"v" = -7`},
		{"whole float", ir.Float(2), `"v" = 2.0`},
		{"fraction", ir.Float(0.25), `"v" = 0.25`},
		{"large float", ir.Float(1e21), `"v" = 1e+21`},
		{"negative float", ir.Float(-1.5), `"v" = -1.5`},
		{"date", ir.NewDate(2024, 2, 29), `"v" = DATE '2024-02-29'`},
		{"datetime", ir.NewDateTime(2024, 1, 2, 3, 4, 5), `"v" = TIMESTAMP '2024-01-02T03:04:05'`},
		{"null", ir.Null{}, `"v" IS NULL`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := ToSQL(col("v").Eq(tt.lit), DuckDB, Inline)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestToSQL_SQLiteDatesInline(t *testing.T) {
	tests := []struct {
		name string
		lit  ir.Literal
		want string
	}{
		{"date", ir.NewDate(2024, 1, 1), `"d" >= date('2024-01-01')`},
		{"datetime", ir.NewDateTime(2024, 1, 1, 10, 0, 0), `"d" >= strftime('%Y-%m-%dT%H:%M:%S', '2024-01-01T10:00:00')`},
		{
			"datetime fraction",
			ir.DateTime{Time: time.Date(2024, 1, 1, 10, 0, 0, 250_000_000, time.UTC)},
			`"d" >= strftime('%Y-%m-%dT%H:%M:%f', '2024-01-01T10:00:00.25')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := ToSQL(col("d").Ge(tt.lit), SQLite, Inline)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestToSQL_DatesParameterized(t *testing.T) {
	stmt, err := ToSQL(col("d").Ge(ir.NewDate(2024, 1, 1)), Postgres, Parameterized)
	require.NoError(t, err)

	args, err := stmt.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{"2024-01-01"}, args)
}

func TestToSQL_NonFiniteFloat(t *testing.T) {
	_, err := ToSQL(col("v").Eq(ir.Float(math.NaN())), SQLite, Inline)
	assert.Error(t, err)

	// Binding is left to the driver.
	stmt, err := ToSQL(col("v").Eq(ir.Float(math.Inf(1))), SQLite, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `"v" = ?`, stmt.SQL)
}

func TestToSQL_OrderingAgainstNull(t *testing.T) {
	stmt, err := ToSQL(col("v").Lt(ir.Null{}), Postgres, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `"v" < NULL`, stmt.SQL)
	assert.Empty(t, stmt.Params)
}

func TestToSQL_NestedCastsByKind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		lit     ir.Literal
		want    string
	}{
		{SQLite, ir.Str("x"), `json_extract("m", '$.k') = ?`},
		{SQLite, ir.Int(1), `CAST(json_extract("m", '$.k') AS INTEGER) = ?`},
		{SQLite, ir.Float(1), `CAST(json_extract("m", '$.k') AS REAL) = ?`},
		{SQLite, ir.Bool(true), `CAST(json_extract("m", '$.k') AS INTEGER) = ?`},
		{SQLite, ir.NewDate(2024, 1, 1), `json_extract("m", '$.k') = ?`},
		{DuckDB, ir.Int(1), `CAST(json_extract_string("m", '$.k') AS BIGINT) = ?`},
		{DuckDB, ir.Float(1), `CAST(json_extract_string("m", '$.k') AS DOUBLE) = ?`},
		{DuckDB, ir.Bool(true), `CAST(json_extract_string("m", '$.k') AS BOOLEAN) = ?`},
		{DuckDB, ir.NewDateTime(2024, 1, 1, 0, 0, 0), `CAST(json_extract_string("m", '$.k') AS TIMESTAMP) = ?`},
		{Postgres, ir.Str("x"), `"m"->>'k' = $1`},
		{Postgres, ir.Int(1), `("m"->>'k')::bigint = $1`},
		{Postgres, ir.Float(1), `("m"->>'k')::double precision = $1`},
		{Postgres, ir.Bool(true), `("m"->>'k')::boolean = $1`},
		{Postgres, ir.NewDate(2024, 1, 1), `("m"->>'k')::date = $1`},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.dialect, tt.lit.Kind()), func(t *testing.T) {
			stmt, err := ToSQL(col("m.k").Eq(tt.lit), tt.dialect, Parameterized)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestToSQL_PostgresArrowChain(t *testing.T) {
	stmt, err := ToSQL(col(`data.items[2]."it's".name[0]`).IsNotNull(), Postgres, Inline)
	require.NoError(t, err)
	assert.Equal(t, `"data"->'items'->2->'it''s'->'name'->>0 IS NOT NULL`, stmt.SQL)
}

func TestToSQL_ILike(t *testing.T) {
	stmt, err := ToSQL(col("model").NotILike("GPT%"), SQLite, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `LOWER("model") NOT LIKE LOWER(?)`, stmt.SQL)

	stmt, err = ToSQL(col("model").NotILike("GPT%"), Postgres, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `"model" NOT ILIKE $1`, stmt.SQL)

	// Top-level columns are already text in the columnar dialect.
	stmt, err = ToSQL(col("model").ILike("GPT%"), DuckDB, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `"model" ILIKE ?`, stmt.SQL)
}

func TestToSQL_PatternsNeverCast(t *testing.T) {
	// A numeric pattern still compares as text.
	cond := queryir.Simple{Path: colpath.MustParse("m.k"), Op: queryir.OpLike, Value: ir.Int(5)}

	stmt, err := ToSQL(cond, Postgres, Inline)
	require.NoError(t, err)
	assert.Equal(t, `"m"->>'k' LIKE 5`, stmt.SQL)
}

func TestToSQL_DeepTree(t *testing.T) {
	var cond queryir.Condition = col("a").Eq(ir.Int(1))
	const depth = 100_000
	for i := 0; i < depth; i++ {
		cond = queryir.Not(cond)
	}

	stmt, err := ToSQL(cond, Postgres, Parameterized)
	require.NoError(t, err)
	want := strings.Repeat("NOT (", depth) + `"a" = $1` + strings.Repeat(")", depth)
	assert.Equal(t, want, stmt.SQL)
}

func TestToSQL_DeepLeftChain(t *testing.T) {
	const depth = 50_000
	var cond queryir.Condition = col("a").Eq(ir.Int(0))
	for i := 1; i <= depth; i++ {
		cond = queryir.And(cond, col("a").Eq(ir.Int(int64(i))))
	}

	stmt, err := ToSQL(cond, Postgres, Parameterized)
	require.NoError(t, err)
	require.Len(t, stmt.Params, depth+1)
	assert.Equal(t, ir.Int(depth), stmt.Params[depth])
	assert.True(t, strings.HasPrefix(stmt.SQL, strings.Repeat("(", depth)+`"a" = $1 AND "a" = $2)`))
	assert.True(t, strings.HasSuffix(stmt.SQL, fmt.Sprintf(` AND "a" = $%d)`, depth+1)))
	assert.Equal(t, depth, strings.Count(stmt.SQL, " AND "))
}

func TestToSQL_PointerNodes(t *testing.T) {
	left := queryir.Simple{Path: colpath.MustParse("a"), Op: queryir.OpEq, Value: ir.Int(1)}
	right := &queryir.Compound{Op: queryir.LogicNot, Left: &queryir.Simple{Path: colpath.MustParse("b"), Op: queryir.OpIsNull, Value: ir.Null{}}}
	cond := &queryir.Compound{Op: queryir.LogicOr, Left: &left, Right: right}

	stmt, err := ToSQL(cond, SQLite, Parameterized)
	require.NoError(t, err)
	assert.Equal(t, `("a" = ? OR NOT ("b" IS NULL))`, stmt.SQL)
	assert.Equal(t, []ir.Literal{ir.Int(1)}, stmt.Params)
}

func TestToSQL_Malformed(t *testing.T) {
	tests := []struct {
		name string
		cond queryir.Condition
	}{
		{"nil", nil},
		{"and missing right", queryir.Compound{Op: queryir.LogicAnd, Left: col("a").IsNull()}},
		{"not with right", queryir.Compound{Op: queryir.LogicNot, Left: col("a").IsNull(), Right: col("b").IsNull()}},
		{"scalar in", queryir.Simple{Path: colpath.MustParse("a"), Op: queryir.OpIn, Value: ir.Int(1)}},
		{"nil pointer", (*queryir.Simple)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToSQL(tt.cond, SQLite, Parameterized)
			require.Error(t, err)
			assert.ErrorIs(t, err, queryir.ErrMalformed)
		})
	}
}

func TestToSQL_JSONKeyWithQuote(t *testing.T) {
	cond := col(`metadata."say ""hi"""`).Eq(ir.Str("x"))

	for _, d := range []Dialect{SQLite, DuckDB} {
		_, err := ToSQL(cond, d, Inline)
		assert.ErrorIs(t, err, colpath.ErrJSONPathKey, d)
	}

	stmt, err := ToSQL(cond, Postgres, Inline)
	require.NoError(t, err)
	assert.Equal(t, `"metadata"->>'say "hi"' = 'x'`, stmt.SQL)
}

func TestNewCompiler_Errors(t *testing.T) {
	_, err := NewCompiler(Dialect("mysql"))
	assert.Error(t, err)

	_, err = NewCompiler(SQLite, WithMode(Mode("both")))
	assert.Error(t, err)

	_, err = NewCompiler(Postgres, WithPlaceholderOffset(-1))
	assert.Error(t, err)
}

func TestParseDialectAndMode(t *testing.T) {
	for input, want := range map[string]Dialect{
		"sqlite":            SQLite,
		"sqlite-like":       SQLite,
		"DuckDB":            DuckDB,
		"columnar-analytic": DuckDB,
		"postgres-like":     Postgres,
		" postgresql ":      Postgres,
	} {
		got, err := ParseDialect(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseDialect("oracle")
	assert.Error(t, err)

	m, err := ParseMode("inline-literal")
	require.NoError(t, err)
	assert.Equal(t, Inline, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Parameterized, m)
	_, err = ParseMode("literal")
	assert.Error(t, err)
}

func TestStatement_ArgsRejectsList(t *testing.T) {
	_, err := Statement{Params: []ir.Literal{ir.List{}}}.Args()
	assert.Error(t, err)
}

func TestToSQL_SerializedRoundTrip(t *testing.T) {
	conds := []queryir.Condition{
		col("model").Eq(ir.Str("gpt-4")),
		col("metadata.user.age").Ge(ir.Int(18)),
		col("score").Lt(ir.Float(0.5)),
		col("metadata.released").Le(ir.NewDate(2024, 1, 1)),
		col("created_at").Gt(ir.NewDateTime(2024, 1, 1, 8, 0, 0)),
		col("metadata.flag").Ne(ir.Bool(false)),
		col("model").In(ir.Str("a"), ir.Null{}, ir.Str("b")),
		col("metadata.n").NotIn(ir.Int(1), ir.Int(2)),
		col("task_id").Like("math%"),
		col("task_id").NotLike("%x"),
		col("metadata.task").ILike("A%"),
		col("model").NotILike("b%"),
		col("error").IsNull(),
		col("metadata.error").IsNotNull(),
		mustBetween(t, col("score"), ir.Float(0.1), ir.Float(0.9)),
		queryir.Not(queryir.Or(col("a").In(), col("b").NotIn())),
	}

	for _, cond := range conds {
		plain, err := queryir.ToPlain(cond)
		require.NoError(t, err)
		back, err := queryir.FromPlain(plain)
		require.NoError(t, err)

		for _, d := range Dialects {
			for _, m := range []Mode{Parameterized, Inline} {
				want, err := ToSQL(cond, d, m)
				require.NoError(t, err)
				got, err := ToSQL(back, d, m)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}
	}
}

// renderAll renders cond in every dialect and mode for golden comparison.
func renderAll(t *testing.T, cond queryir.Condition) []byte {
	t.Helper()
	var b bytes.Buffer
	for _, d := range Dialects {
		for _, m := range []Mode{Parameterized, Inline} {
			stmt, err := ToSQL(cond, d, m)
			require.NoError(t, err)
			fmt.Fprintf(&b, "-- %s %s\n%s\n", d, m, stmt.SQL)
			if m == Parameterized {
				params := make([]string, len(stmt.Params))
				for i, p := range stmt.Params {
					params[i] = ir.Format(p)
				}
				fmt.Fprintf(&b, "params: [%s]\n", strings.Join(params, ", "))
			}
		}
	}
	return b.Bytes()
}

func TestToSQL_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := map[string]queryir.Condition{
		"nested_cast": queryir.And(
			col("metadata.user.age").Ge(ir.Int(18)),
			col("metadata.tags[0]").Eq(ir.Str("prod")),
		),
		"membership_nulls": queryir.Or(
			col("model").NotIn(ir.Str("a"), ir.Null{}),
			col("metadata.score").In(ir.Float(0.5), ir.Null{}, ir.Int(1)),
		),
		"patterns": queryir.And(
			col("metadata.task").ILike("Math%"),
			queryir.Not(col("task_id").NotLike("it's%")),
		),
		"dates": queryir.And(
			mustBetween(t, col("created_at"), ir.NewDate(2024, 1, 1), ir.NewDateTime(2024, 6, 30, 23, 59, 59)),
			col("metadata.released").Lt(ir.NewDate(2024, 3, 1)),
		),
		"quoting": queryir.Or(
			col(`"we""ird col"."a.b"`).Eq(ir.Bool(true)),
			col("x").Gt(ir.Null{}),
		),
	}

	for name, cond := range tests {
		t.Run(name, func(t *testing.T) {
			g.Assert(t, name, renderAll(t, cond))
		})
	}
}
