package colpath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Path
	}{
		{"plain column", "model", New("model")},
		{"dotted keys", "a.b.c", New("a", KeyStep("b"), KeyStep("c"))},
		{"indices then key", "a[0][2].b", New("a", IndexStep(0), IndexStep(2), KeyStep("b"))},
		{"quoted key with dots", `a."k.with.dot"`, New("a", KeyStep("k.with.dot"))},
		{"quoted key with doubled quote", `a."say ""hi"""`, New("a", KeyStep(`say "hi"`))},
		{"items index", "items[0].name", New("items", IndexStep(0), KeyStep("name"))},
		{"hyphenated column", "task-id", New("task-id")},
		{"column with space", "my col.x", New("my col", KeyStep("x"))},
		{"quoted root", `"a.b".c`, New("a.b", KeyStep("c"))},
		{"empty quoted key", `m.""`, New("m", KeyStep(""))},
		{"multi digit index", "a[12]", New("a", IndexStep(12))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %#v", got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		message string
	}{
		{"empty", "", "expected a name"},
		{"trailing dot", "a.", "expected a name"},
		{"double dot", "a..b", "expected a name"},
		{"non numeric index", "a[x]", "non-negative integer"},
		{"negative index", "a[-1]", "non-negative integer"},
		{"empty index", "a[]", "non-negative integer"},
		{"unterminated bracket", "a[1", "unterminated bracket"},
		{"unterminated quote", `a."x`, "unterminated quoted name"},
		{"stray bracket", "a]", "unexpected character"},
		{"garbage after quote", `"a"b`, "unexpected character"},
		{"empty quoted root", `""`, "empty column name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Contains(t, syntaxErr.Message, tt.message)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"items[0].name",
		`data."user.name"`,
		"a[0][2].b",
		"task-id",
		"my col",
		`a."say ""hi"""`,
		`m.""`,
		`m."it's"`,
		"metadata.config.model_args[3]",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, err := Parse(in)
			require.NoError(t, err)

			rendered := first.String()
			second, err := Parse(rendered)
			require.NoError(t, err, "rendered %q must re-parse", rendered)
			assert.True(t, first.Equal(second), "%q -> %q", in, rendered)
		})
	}
}

func TestStringQuoting(t *testing.T) {
	assert.Equal(t, "a.b.c", MustParse("a.b.c").String())
	assert.Equal(t, `data."user.name"`, MustParse(`data."user.name"`).String())
	assert.Equal(t, `"my col".x`, MustParse("my col.x").String())
	assert.Equal(t, "a[0][2].b", MustParse("a[0][2].b").String())
	assert.Equal(t, "", Path{}.String())
}

func TestJSONPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"metadata.user.name", "$.user.name"},
		{"items[0].name", "$[0].name"},
		{`data."user.name"`, `$."user.name"`},
		{`data."say ""hi"""`, `$."say \"hi\""`},
		{"m.a1.b_2", "$.a1.b_2"},
		{"m.1st", `$."1st"`},
		{"m", "$"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := MustParse(tt.path)
			assert.Equal(t, tt.want, p.JSONPath())

			back, err := ParseJSONPath(p.Column, p.JSONPath())
			require.NoError(t, err)
			assert.True(t, p.Equal(back))
		})
	}
}

func TestCheckJSONPath(t *testing.T) {
	for _, ok := range []string{"m", "m.a.b", `m."a.b"[0]`, `m."it's"`} {
		assert.NoError(t, MustParse(ok).CheckJSONPath(), ok)
	}
	for _, bad := range []string{`m."say ""hi"""`, `m.a."back\\slash"`, `m."x"""[2]`} {
		err := MustParse(bad).CheckJSONPath()
		assert.ErrorIs(t, err, ErrJSONPathKey, bad)
	}
}

func TestParseJSONPathBracketKeys(t *testing.T) {
	got, err := ParseJSONPath("m", `$["a.b"][1].c`)
	require.NoError(t, err)
	assert.True(t, New("m", KeyStep("a.b"), IndexStep(1), KeyStep("c")).Equal(got))

	_, err = ParseJSONPath("m", "user.name")
	assert.Error(t, err)

	_, err = ParseJSONPath("m", `$."open`)
	assert.Error(t, err)
}

func TestPathHelpers(t *testing.T) {
	assert.True(t, Path{}.IsZero())
	assert.False(t, MustParse("a").IsZero())
	assert.False(t, MustParse("a").IsNested())
	assert.True(t, MustParse("a.b").IsNested())

	orig := MustParse("a.b[1]")
	moved := orig.WithColumn("z")
	assert.Equal(t, "z.b[1]", moved.String())
	assert.Equal(t, "a.b[1]", orig.String())
}
