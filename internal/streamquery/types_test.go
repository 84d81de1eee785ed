package streamquery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ArrayOfBlocks(t *testing.T) {
	q, err := Parse([]byte(`[{"any":["A","B"],"not":["C"]},{"any":["D"]}]`))
	require.NoError(t, err)
	require.Len(t, q, 2)

	assert.Equal(t, []string{"A", "B"}, q[0].Any)
	assert.Equal(t, []string{"C"}, q[0].Not)
	assert.Equal(t, []string{"D"}, q[1].Any)
}

func TestParse_NestedAnd(t *testing.T) {
	q, err := Parse([]byte(`[{"any":["A"],"and":[{"any":["D"]},[{"any":["E"]},{"any":["F"]}]]}]`))
	require.NoError(t, err)
	require.Len(t, q, 1)
	require.Len(t, q[0].And, 2)

	// Object entry is a one-block query.
	require.Len(t, q[0].And[0], 1)
	assert.Equal(t, []string{"D"}, q[0].And[0][0].Any)

	// Array entry is a multi-block query.
	require.Len(t, q[0].And[1], 2)
	assert.Equal(t, []string{"F"}, q[0].And[1][1].Any)
}

func TestParse_LegacyForms(t *testing.T) {
	t.Run("bare string query", func(t *testing.T) {
		q, err := Parse([]byte(`"A"`))
		require.NoError(t, err)
		require.Len(t, q, 1)
		assert.True(t, q[0].IsLegacy())
		assert.Equal(t, "A", q[0].Legacy)
	})

	t.Run("string block in array", func(t *testing.T) {
		q, err := Parse([]byte(`["A", {"any":["B"]}]`))
		require.NoError(t, err)
		require.Len(t, q, 2)
		assert.Equal(t, "A", q[0].Legacy)
		assert.False(t, q[1].IsLegacy())
	})

	t.Run("single object", func(t *testing.T) {
		q, err := Parse([]byte(`{"any":["A"]}`))
		require.NoError(t, err)
		require.Len(t, q, 1)
		assert.Equal(t, []string{"A"}, q[0].Any)
	})
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		`[42]`,
		`[""]`,
		`[{"any":"A"}]`,
		`[{"and":[42]}]`,
		`{`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestParse_Null(t *testing.T) {
	q, err := Parse([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	in := `[{"any":["A","E"],"not":["D","F"],"and":[{"any":["D"]},[{"any":["X"]},{"any":["Y"]}]]},"L"]`

	q, err := Parse([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestBlock_Unconstrained(t *testing.T) {
	assert.True(t, Block{}.Unconstrained())
	assert.True(t, Block{Any: []string{"A", Wildcard}}.Unconstrained())
	assert.False(t, Block{Any: []string{"A"}}.Unconstrained())
	assert.False(t, Block{Legacy: "A"}.Unconstrained())
}

func TestClone_IsDeep(t *testing.T) {
	q := StreamQuery{{Any: []string{"A"}, And: []StreamQuery{{{Any: []string{"B"}}}}}}
	c := q.Clone()

	c[0].Any[0] = "changed"
	c[0].And[0][0].Any[0] = "changed"

	assert.Equal(t, "A", q[0].Any[0])
	assert.Equal(t, "B", q[0].And[0][0].Any[0])
}

func TestIDs(t *testing.T) {
	q := StreamQuery{
		{Any: []string{"A", "E"}, Not: []string{"F"}, And: []StreamQuery{{{Any: []string{"D"}}}}},
		{Legacy: "L"},
	}
	assert.Equal(t, []string{"A", "E", "D", "F", "L"}, q.IDs())
}

func TestMap(t *testing.T) {
	q := StreamQuery{
		{Any: []string{"A"}, Not: []string{"B"}, And: []StreamQuery{{{Any: []string{"C"}}}}},
		{Legacy: "D"},
	}
	got := q.Map(func(id string) string { return id + "!" })

	assert.Equal(t, []string{"A!", "C!", "B!", "D!"}, got.IDs())
	assert.Equal(t, []string{"A", "C", "B", "D"}, q.IDs())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(StreamQuery{{Any: []string{"A"}, Not: []string{"B"}}}))
	assert.NoError(t, Validate(StreamQuery{{Any: []string{Wildcard}}}))

	err := Validate(StreamQuery{
		{Any: []string{""}, Not: []string{Wildcard}, And: []StreamQuery{{}}},
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
	assert.Contains(t, err.Error(), "streams[0].any[0]")
	assert.Contains(t, err.Error(), "streams[0].and[0]")
}

func TestEventsGetQuery_Clone(t *testing.T) {
	from := 10.0
	running := true
	q := EventsGetQuery{
		Streams:  StreamQuery{{Any: []string{"A"}}},
		Types:    []string{"note/txt"},
		FromTime: &from,
		Running:  &running,
	}
	c := q.Clone()
	*c.FromTime = 20
	*c.Running = false
	c.Types[0] = "x"
	c.Streams[0].Any[0] = "B"

	assert.Equal(t, 10.0, *q.FromTime)
	assert.True(t, *q.Running)
	assert.Equal(t, "note/txt", q.Types[0])
	assert.Equal(t, "A", q.Streams[0].Any[0])
}

func TestEventsGetQuery_JSON(t *testing.T) {
	var q EventsGetQuery
	err := json.Unmarshal([]byte(`{"id":":dummy:e1","streams":[{"any":["A"]}],"limit":10,"state":"all"}`), &q)
	require.NoError(t, err)

	assert.Equal(t, ":dummy:e1", q.ID)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, StateAll, q.EffectiveState())
	require.Len(t, q.Streams, 1)
	assert.Equal(t, StateDefault, EventsGetQuery{}.EffectiveState())
}
