package querytext

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamhub/internal/streamquery"
)

func mustParse(t *testing.T, s string) streamquery.StreamQuery {
	t.Helper()
	q, err := streamquery.Parse([]byte(s))
	require.NoError(t, err)
	return q
}

func TestCompile_AnyOfThree(t *testing.T) {
	q := mustParse(t, `[{"any":["A","B","C"]}]`)
	assert.Equal(t, `("A" OR "B" OR "C")`, Compile(q))
}

func TestCompile_AnyNestedAndNot(t *testing.T) {
	q := mustParse(t, `[{"any":["A","E"],"and":[{"any":["D"]},{"any":["C"]}],"not":["D","F"]}]`)
	assert.Equal(t, `("A" OR "E") AND "D" AND "C" NOT "D" NOT "F"`, Compile(q))
}

func TestCompile_SingleAnyIsUnparenthesized(t *testing.T) {
	q := mustParse(t, `[{"any":["A"]}]`)
	assert.Equal(t, `"A"`, Compile(q))
}

func TestCompile_EmptyAnyUsesAllEventsTag(t *testing.T) {
	assert.Equal(t, `".."`, Compile(mustParse(t, `[{}]`)))
	assert.Equal(t, `".." NOT "x"`, Compile(mustParse(t, `[{"not":["x"]}]`)))
	assert.Equal(t, `".." NOT "x"`, Compile(mustParse(t, `[{"any":[],"not":["x"]}]`)))
}

// A wildcard in any leaves the any-part unconstrained; it does not make the
// block unmatchable.
func TestCompile_WildcardInAnyIsMatchAll(t *testing.T) {
	assert.Equal(t, `".."`, Compile(mustParse(t, `[{"any":["*"]}]`)))
	assert.Equal(t, `".."`, Compile(mustParse(t, `[{"any":["A","*"]}]`)))
	assert.Equal(t, `".." NOT "B"`, Compile(mustParse(t, `[{"any":["*"],"not":["B"]}]`)))
	assert.Equal(t, `".." AND "C"`, Compile(mustParse(t, `[{"any":["*"],"and":[{"any":["C"]}]}]`)))
}

func TestCompile_MultipleBlocks(t *testing.T) {
	q := mustParse(t, `[{"any":["A","B"]},{"any":["C"],"not":["D"]}]`)
	assert.Equal(t, `(("A" OR "B")) OR ("C" NOT "D")`, Compile(q))
}

func TestCompile_LegacyString(t *testing.T) {
	assert.Equal(t, `"A"`, Compile(mustParse(t, `"A"`)))
	assert.Equal(t, `("A") OR ("B")`, Compile(mustParse(t, `["A","B"]`)))
}

func TestCompile_NestedWithNotIsParenthesized(t *testing.T) {
	q := mustParse(t, `[{"any":["A"],"and":[{"any":["B"],"not":["C"]}]}]`)
	assert.Equal(t, `"A" AND ("B" NOT "C")`, Compile(q))
}

func TestCompile_NestedMultiBlock(t *testing.T) {
	q := mustParse(t, `[{"any":["A"],"and":[[{"any":["B"]},{"any":["C"]}]]}]`)
	assert.Equal(t, `"A" AND (("B") OR ("C"))`, Compile(q))
}

func TestCompile_Empty(t *testing.T) {
	assert.Equal(t, "", Compile(nil))
	assert.Equal(t, "", Compile(streamquery.StreamQuery{}))
}

func TestQuote_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, Quote(`a"b`))

	ok, err := Eval(Compile(streamquery.StreamQuery{{Any: []string{`a"b`}}}), []string{`a"b`})
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestCompile_Golden pins the rendered form of a representative query set.
// Regenerate with: go test ./internal/querytext -update
func TestCompile_Golden(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"any", `[{"any":["A","B","C"]}]`},
		{"nested", `[{"any":["A","E"],"and":[{"any":["D"]},{"any":["C"]}],"not":["D","F"]}]`},
		{"not-only", `[{"not":["A","B"]}]`},
		{"wildcard", `[{"any":["*"],"not":["B"]}]`},
		{"or-of-blocks", `[{"any":["A"]},{"any":["B","C"],"not":["D"]}]`},
		{"legacy", `"A"`},
		{"deep", `[{"any":["A"],"and":[{"any":["B"],"and":[{"any":["C","D"]}]}]}]`},
	}

	var sb strings.Builder
	for _, c := range cases {
		sb.WriteString(c.name)
		sb.WriteString(": ")
		sb.WriteString(Compile(mustParse(t, c.query)))
		sb.WriteString("\n")
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile", []byte(sb.String()))
}
