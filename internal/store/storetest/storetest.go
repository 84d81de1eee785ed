// Package storetest is the behavior every store.Backend must share, run by
// each backend's own tests against a fresh, initialized instance.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

// Factory returns an empty, initialized backend. Cleanup is the caller's.
type Factory func(t *testing.T) store.Backend

// Run runs the whole suite.
func Run(t *testing.T, newBackend Factory) {
	t.Run("streams", func(t *testing.T) { RunStreams(t, newBackend) })
	t.Run("events", func(t *testing.T) { RunEvents(t, newBackend) })
}

func ptr(s string) *string { return &s }
func f(v float64) *float64 { return &v }

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func query(t *testing.T, streams string) streamquery.StreamQuery {
	t.Helper()
	q, err := streamquery.Parse([]byte(streams))
	require.NoError(t, err)
	return q
}

// RunStreams checks tree assembly, parent checks, updates and deletions.
func RunStreams(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t)
	s := b.Streams()

	for _, st := range []model.Stream{
		{ID: "root1", Name: "B-root"},
		{ID: "root2", Name: "A-root"},
		{ID: "child", Name: "Child", ParentID: ptr("root1")},
		{ID: "grand", Name: "Grand", ParentID: ptr("child")},
	} {
		created, err := s.Create(ctx, "u1", st)
		require.NoError(t, err)
		assert.NotZero(t, created.Created)
		assert.NotZero(t, created.Modified)
	}

	t.Run("tree ordered by name", func(t *testing.T) {
		tree, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		require.Len(t, tree, 2)
		assert.Equal(t, "root2", tree[0].ID)
		assert.Equal(t, "root1", tree[1].ID)
		require.Len(t, tree[1].Children, 1)
		assert.Equal(t, "grand", tree[1].Children[0].Children[0].ID)
	})

	t.Run("wildcard parent is the whole tree", func(t *testing.T) {
		all, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		wild, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{ParentID: streamquery.Wildcard})
		require.NoError(t, err)
		assert.Equal(t, all, wild)
	})

	t.Run("subtree", func(t *testing.T) {
		sub, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{ParentID: "root1"})
		require.NoError(t, err)
		require.Len(t, sub, 1)
		assert.Equal(t, "child", sub[0].ID)
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{ParentID: "nope"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("other user sees nothing", func(t *testing.T) {
		tree, err := s.Get(ctx, "u2", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		assert.Empty(t, tree)
	})

	t.Run("create under missing parent", func(t *testing.T) {
		_, err := s.Create(ctx, "u1", model.Stream{ID: "orphan", Name: "Orphan", ParentID: ptr("nope")})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create duplicate", func(t *testing.T) {
		_, err := s.Create(ctx, "u1", model.Stream{ID: "root1", Name: "Again"})
		assert.Error(t, err)
	})

	t.Run("get one with children", func(t *testing.T) {
		one, err := s.GetOne(ctx, "u1", "child", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		require.Len(t, one.Children, 1)
		assert.Equal(t, "grand", one.Children[0].ID)

		_, err = s.GetOne(ctx, "u1", "nope", streamquery.StreamsGetQuery{})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("reparent", func(t *testing.T) {
		one, err := s.GetOne(ctx, "u1", "child", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		moved := *one
		moved.Children = nil
		moved.ParentID = ptr("root2")
		_, err = s.Update(ctx, "u1", moved)
		require.NoError(t, err)

		sub, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{ParentID: "root2"})
		require.NoError(t, err)
		require.Len(t, sub, 1)
		assert.Equal(t, "child", sub[0].ID)

		_, err = s.Update(ctx, "u1", model.Stream{ID: "nope", Name: "Nope"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "u1", "grand"))
		_, err := s.GetOne(ctx, "u1", "grand", streamquery.StreamsGetQuery{})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "u1", "nope"), store.ErrNotFound)
	})

	t.Run("trashed subtree hidden by default", func(t *testing.T) {
		one, err := s.GetOne(ctx, "u1", "root1", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		trashed := *one
		trashed.Children = nil
		trashed.Trashed = true
		_, err = s.Update(ctx, "u1", trashed)
		require.NoError(t, err)

		tree, err := s.Get(ctx, "u1", streamquery.StreamsGetQuery{})
		require.NoError(t, err)
		_, found := model.FindStream(tree, "root1")
		assert.False(t, found)

		tree, err = s.Get(ctx, "u1", streamquery.StreamsGetQuery{State: streamquery.StateAll})
		require.NoError(t, err)
		_, found = model.FindStream(tree, "root1")
		assert.True(t, found)
	})
}

// RunEvents checks the streams query, the other filters, paging and the
// streamed form.
func RunEvents(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t)
	s := b.Events()

	seed := []struct {
		user string
		e    model.Event
	}{
		{"u1", model.Event{ID: "e1", StreamIDs: []string{"A"}, Type: "note/txt", Time: 10}},
		{"u1", model.Event{ID: "e2", StreamIDs: []string{"B"}, Type: "note/txt", Time: 20}},
		{"u1", model.Event{ID: "e3", StreamIDs: []string{"A", "C"}, Type: "mass/kg", Time: 30}},
		{"u1", model.Event{ID: "e4", StreamIDs: []string{"D"}, Type: "note/txt", Time: 40, Trashed: true}},
		{"u1", model.Event{ID: "e5", HeadID: "e1", StreamIDs: []string{"A"}, Type: "note/txt", Time: 50}},
		{"u1", model.Event{ID: "e6", StreamIDs: []string{"B"}, Type: "note/txt", Time: 60}},
		{"u2", model.Event{ID: "x1", StreamIDs: []string{"A"}, Type: "note/txt", Time: 15}},
	}
	for _, sd := range seed {
		_, err := s.Create(ctx, sd.user, sd.e)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, "u1", "e6"))

	tests := []struct {
		name  string
		query streamquery.EventsGetQuery
		want  []string
	}{
		{"everything live, newest first", streamquery.EventsGetQuery{}, []string{"e3", "e2", "e1"}},
		{"any", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["A"]}]`)}, []string{"e3", "e1"}},
		{"any not", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["A"],"not":["C"]}]`)}, []string{"e1"}},
		{"wildcard not", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["*"],"not":["A"]}]`)}, []string{"e2"}},
		{"blocks are alternatives", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["A"]},{"any":["B"]}]`)}, []string{"e3", "e2", "e1"}},
		{"nested and", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["A"],"and":[{"any":["C"]}]}]`)}, []string{"e3"}},
		{"types", streamquery.EventsGetQuery{Types: []string{"note/*"}}, []string{"e2", "e1"}},
		{"time window", streamquery.EventsGetQuery{FromTime: f(15), ToTime: f(35)}, []string{"e3", "e2"}},
		{"trashed", streamquery.EventsGetQuery{State: streamquery.StateTrashed}, []string{"e4"}},
		{"all states", streamquery.EventsGetQuery{State: streamquery.StateAll}, []string{"e4", "e3", "e2", "e1"}},
		{"include deletions", streamquery.EventsGetQuery{IncludeDeletions: true}, []string{"e6", "e3", "e2", "e1"}},
		{"deleted since", streamquery.EventsGetQuery{DeletedSince: f(0)}, []string{"e6"}},
		{"history of head", streamquery.EventsGetQuery{HeadID: "e1"}, []string{"e5"}},
		{"id with history", streamquery.EventsGetQuery{ID: "e1", IncludeHistory: true}, []string{"e5", "e1"}},
		{"modified in the future", streamquery.EventsGetQuery{ModifiedSince: f(1e12)}, []string{}},
		{"ascending page", streamquery.EventsGetQuery{SortAscending: true, Skip: 1, Limit: 2}, []string{"e2", "e3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Get(ctx, "u1", tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))

			it, err := s.GetStreamed(ctx, "u1", tt.query)
			require.NoError(t, err)
			streamed, err := store.CollectEvents(it)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(streamed), "streamed")
		})
	}

	t.Run("users are isolated", func(t *testing.T) {
		got, err := s.Get(ctx, "u2", streamquery.EventsGetQuery{})
		require.NoError(t, err)
		assert.Equal(t, []string{"x1"}, ids(got))
	})

	t.Run("get one", func(t *testing.T) {
		e, err := s.GetOne(ctx, "u1", "e3")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C"}, e.StreamIDs)

		_, err = s.GetOne(ctx, "u1", "e6")
		assert.ErrorIs(t, err, store.ErrNotFound, "deleted")
		_, err = s.GetOne(ctx, "u2", "e3")
		assert.ErrorIs(t, err, store.ErrNotFound, "other user")
	})

	t.Run("update", func(t *testing.T) {
		e, err := s.GetOne(ctx, "u1", "e2")
		require.NoError(t, err)
		e.StreamIDs = []string{"C"}
		_, err = s.Update(ctx, "u1", *e)
		require.NoError(t, err)

		got, err := s.Get(ctx, "u1", streamquery.EventsGetQuery{Streams: query(t, `[{"any":["C"]}]`)})
		require.NoError(t, err)
		assert.Equal(t, []string{"e3", "e2"}, ids(got))

		_, err = s.Update(ctx, "u1", model.Event{ID: "nope", StreamIDs: []string{"A"}})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create duplicate", func(t *testing.T) {
		_, err := s.Create(ctx, "u1", model.Event{ID: "e1", StreamIDs: []string{"A"}, Type: "note/txt"})
		assert.Error(t, err)
	})

	t.Run("create assigns id", func(t *testing.T) {
		e, err := s.Create(ctx, "u3", model.Event{StreamIDs: []string{"A"}, Type: "note/txt", Time: 1})
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		one, err := s.GetOne(ctx, "u3", e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, one.ID)
	})

	t.Run("delete unknown", func(t *testing.T) {
		assert.ErrorIs(t, s.Delete(ctx, "u1", "nope"), store.ErrNotFound)
	})
}
