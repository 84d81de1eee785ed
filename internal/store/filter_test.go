package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool { return &v }

func TestMatchEvent(t *testing.T) {
	base := model.Event{ID: "e1", Type: "note/txt", Time: 100, Duration: f(10), Modified: 150}

	trashed := base
	trashed.Trashed = true

	deleted := base
	deleted.Deleted = f(200)

	history := base
	history.ID = "h1"
	history.HeadID = "e1"

	running := base
	running.Running = true

	tests := []struct {
		name  string
		event model.Event
		query streamquery.EventsGetQuery
		want  bool
	}{
		{"no conditions", base, streamquery.EventsGetQuery{}, true},
		{"type exact", base, streamquery.EventsGetQuery{Types: []string{"note/txt"}}, true},
		{"type class wildcard", base, streamquery.EventsGetQuery{Types: []string{"note/*"}}, true},
		{"type mismatch", base, streamquery.EventsGetQuery{Types: []string{"mass/kg", "notes/*"}}, false},
		{"before window", base, streamquery.EventsGetQuery{FromTime: f(111)}, false},
		{"overlaps window start", base, streamquery.EventsGetQuery{FromTime: f(105), ToTime: f(200)}, true},
		{"after window", base, streamquery.EventsGetQuery{ToTime: f(99)}, false},
		{"running never ends", running, streamquery.EventsGetQuery{FromTime: f(10_000)}, true},
		{"running filter", base, streamquery.EventsGetQuery{Running: b(true)}, false},
		{"running filter match", running, streamquery.EventsGetQuery{Running: b(true)}, true},
		{"modified since", base, streamquery.EventsGetQuery{ModifiedSince: f(151)}, false},
		{"trashed hidden by default", trashed, streamquery.EventsGetQuery{}, false},
		{"trashed state", trashed, streamquery.EventsGetQuery{State: streamquery.StateTrashed}, true},
		{"trashed state hides active", base, streamquery.EventsGetQuery{State: streamquery.StateTrashed}, false},
		{"all state", trashed, streamquery.EventsGetQuery{State: streamquery.StateAll}, true},
		{"deleted hidden", deleted, streamquery.EventsGetQuery{}, false},
		{"deleted included", deleted, streamquery.EventsGetQuery{IncludeDeletions: true}, true},
		{"deleted since", deleted, streamquery.EventsGetQuery{DeletedSince: f(150)}, true},
		{"deleted before since", deleted, streamquery.EventsGetQuery{DeletedSince: f(250)}, false},
		{"deleted since excludes live", base, streamquery.EventsGetQuery{DeletedSince: f(0)}, false},
		{"history hidden", history, streamquery.EventsGetQuery{}, false},
		{"history by head", history, streamquery.EventsGetQuery{HeadID: "e1"}, true},
		{"head excluded from history query", base, streamquery.EventsGetQuery{HeadID: "e1"}, false},
		{"by id", base, streamquery.EventsGetQuery{ID: "e1"}, true},
		{"by id with history", history, streamquery.EventsGetQuery{ID: "e1", IncludeHistory: true}, true},
		{"by id without history", history, streamquery.EventsGetQuery{ID: "e1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.MatchEvent(tt.event, tt.query))
		})
	}
}

func TestSortAndPage(t *testing.T) {
	events := func() []model.Event {
		return []model.Event{
			{ID: "b", Time: 2},
			{ID: "a", Time: 2},
			{ID: "c", Time: 3},
			{ID: "d", Time: 1},
		}
	}
	ids := func(es []model.Event) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.ID
		}
		return out
	}

	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(store.SortAndPage(events(), streamquery.EventsGetQuery{})))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(store.SortAndPage(events(), streamquery.EventsGetQuery{SortAscending: true})))
	assert.Equal(t, []string{"a", "b"}, ids(store.SortAndPage(events(), streamquery.EventsGetQuery{Skip: 1, Limit: 2})))
	assert.Empty(t, store.SortAndPage(events(), streamquery.EventsGetQuery{Skip: 10}))
}
