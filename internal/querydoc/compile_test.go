package querydoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/streamhub/internal/streamquery"
)

func mustParse(t *testing.T, s string) streamquery.StreamQuery {
	t.Helper()
	q, err := streamquery.Parse([]byte(s))
	require.NoError(t, err)
	return q
}

func TestCompile_Any(t *testing.T) {
	got := Compile(mustParse(t, `[{"any":["A","B","C"]}]`))
	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "streamIds", Value: "A"}},
		bson.D{{Key: "streamIds", Value: "B"}},
		bson.D{{Key: "streamIds", Value: "C"}},
	}}}
	assert.Equal(t, want, got)
}

func TestCompile_SingleAny(t *testing.T) {
	got := Compile(mustParse(t, `[{"any":["A"]}]`))
	assert.Equal(t, bson.D{{Key: "streamIds", Value: "A"}}, got)
}

func TestCompile_AnyNestedAndNot(t *testing.T) {
	got := Compile(mustParse(t, `[{"any":["A","E"],"and":[{"any":["D"]},{"any":["C"]}],"not":["D","F"]}]`))
	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "streamIds", Value: "A"}},
			bson.D{{Key: "streamIds", Value: "E"}},
		}}},
		bson.D{{Key: "streamIds", Value: "D"}},
		bson.D{{Key: "streamIds", Value: "C"}},
		bson.D{{Key: "streamIds", Value: bson.D{{Key: "$nin", Value: bson.A{"D", "F"}}}}},
	}}}
	assert.Equal(t, want, got)
}

func TestCompile_NotOnly(t *testing.T) {
	got := Compile(mustParse(t, `[{"not":["A"]}]`))
	assert.Equal(t, bson.D{{Key: "streamIds", Value: bson.D{{Key: "$nin", Value: bson.A{"A"}}}}}, got)
}

func TestCompile_WildcardAnyIsUnconstrained(t *testing.T) {
	assert.Equal(t, bson.D{}, Compile(mustParse(t, `[{"any":["*"]}]`)))
	assert.Equal(t, bson.D{}, Compile(mustParse(t, `[{"any":["A","*"]}]`)))
}

func TestCompile_MultipleBlocks(t *testing.T) {
	got := Compile(mustParse(t, `[{"any":["A"]},{"any":["B"]}]`))
	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "streamIds", Value: "A"}},
		bson.D{{Key: "streamIds", Value: "B"}},
	}}}
	assert.Equal(t, want, got)
}

func TestCompile_Legacy(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "streamIds", Value: "A"}}, Compile(mustParse(t, `"A"`)))
}

func TestCompile_Empty(t *testing.T) {
	assert.Equal(t, bson.D{}, Compile(nil))
}

func TestMatch(t *testing.T) {
	filter := Compile(mustParse(t, `[{"any":["A","E"],"and":[{"any":["D"]}],"not":["F"]}]`))

	ok, err := Match(filter, []string{"A", "D"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(filter, []string{"A", "D", "F"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Match(filter, []string{"E"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_Operators(t *testing.T) {
	tags := []string{"A", "B"}
	tests := []struct {
		name   string
		filter bson.D
		want   bool
	}{
		{"empty", bson.D{}, true},
		{"eq", bson.D{{Key: "streamIds", Value: bson.D{{Key: "$eq", Value: "A"}}}}, true},
		{"ne", bson.D{{Key: "streamIds", Value: bson.D{{Key: "$ne", Value: "A"}}}}, false},
		{"in", bson.D{{Key: "streamIds", Value: bson.D{{Key: "$in", Value: bson.A{"C", "B"}}}}}, true},
		{"all", bson.D{{Key: "streamIds", Value: bson.D{{Key: "$all", Value: bson.A{"A", "C"}}}}}, false},
		{"nor", bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "streamIds", Value: "C"}}}}}, true},
		{"map form", bson.D{{Key: "streamIds", Value: bson.M{"$in": bson.A{"A"}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.filter, tags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_Unsupported(t *testing.T) {
	_, err := Match(bson.D{{Key: "type", Value: "note/txt"}}, nil)
	assert.Error(t, err)

	_, err = Match(bson.D{{Key: "streamIds", Value: bson.D{{Key: "$regex", Value: "A"}}}}, nil)
	assert.Error(t, err)

	_, err = Match(bson.D{{Key: "$or", Value: "A"}}, nil)
	assert.Error(t, err)
}
