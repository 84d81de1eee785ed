package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/querydoc"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

// MemoryBackend is a store.Backend kept entirely in maps. Stream filtering
// uses the compiled document filter, like the document-store backends.
//
// FailStreams and FailEvents make the corresponding store return an error,
// to exercise the registry and router error policies.
type MemoryBackend struct {
	id   string
	name string

	mu        sync.RWMutex
	streams   map[string]map[string]model.Stream
	events    map[string]map[string]model.Event
	stamps    store.Stamps
	streamErr error
	eventErr  error
	closed    bool
}

// NewMemoryBackend creates an empty backend with deterministic ids and
// timestamps.
func NewMemoryBackend(id, name string) *MemoryBackend {
	return &MemoryBackend{
		id:      id,
		name:    name,
		streams: make(map[string]map[string]model.Stream),
		events:  make(map[string]map[string]model.Event),
		stamps: store.Stamps{
			IDs:   NewSequenceIDs(id),
			Clock: NewDeterministicClock(1_700_000_000),
		},
	}
}

func (b *MemoryBackend) ID() string { return b.id }
func (b *MemoryBackend) Name() string { return b.name }
func (b *MemoryBackend) Init(context.Context, store.Settings) error { return nil }
func (b *MemoryBackend) Streams() store.StreamsStore { return memStreams{b} }
func (b *MemoryBackend) Events() store.EventsStore { return memEvents{b} }

// Close marks the backend closed.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *MemoryBackend) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// FailStreams makes every streams call return err. A nil err restores
// normal operation.
func (b *MemoryBackend) FailStreams(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamErr = err
}

// FailEvents makes every events call return err.
func (b *MemoryBackend) FailEvents(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventErr = err
}

// SeedStreams stores streams as given, without stamping.
func (b *MemoryBackend) SeedStreams(userID string, streams ...model.Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range streams {
		b.userStreams(userID)[s.ID] = s.Clone()
	}
}

// SeedEvents stores events as given, without stamping.
func (b *MemoryBackend) SeedEvents(userID string, events ...model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		b.userEvents(userID)[e.ID] = e.Clone()
	}
}

func (b *MemoryBackend) userStreams(userID string) map[string]model.Stream {
	m, ok := b.streams[userID]
	if !ok {
		m = make(map[string]model.Stream)
		b.streams[userID] = m
	}
	return m
}

func (b *MemoryBackend) userEvents(userID string) map[string]model.Event {
	m, ok := b.events[userID]
	if !ok {
		m = make(map[string]model.Event)
		b.events[userID] = m
	}
	return m
}

type memStreams struct{ b *MemoryBackend }

func (s memStreams) flat(userID string) ([]model.Stream, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if s.b.streamErr != nil {
		return nil, s.b.streamErr
	}
	out := make([]model.Stream, 0, len(s.b.streams[userID]))
	for _, st := range s.b.streams[userID] {
		out = append(out, st.Clone())
	}
	return out, nil
}

func (s memStreams) Get(_ context.Context, userID string, q streamquery.StreamsGetQuery) ([]model.Stream, error) {
	flat, err := s.flat(userID)
	if err != nil {
		return nil, err
	}
	return store.SelectStreams(flat, q)
}

func (s memStreams) GetOne(_ context.Context, userID, streamID string, q streamquery.StreamsGetQuery) (*model.Stream, error) {
	flat, err := s.flat(userID)
	if err != nil {
		return nil, err
	}
	q.ParentID = ""
	tree, err := store.SelectStreams(flat, q)
	if err != nil {
		return nil, err
	}
	found, ok := model.FindStream(tree, streamID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &found, nil
}

func (s memStreams) Create(_ context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.streamErr != nil {
		return model.Stream{}, s.b.streamErr
	}
	s.b.stamps.NewStream(&st)
	streams := s.b.userStreams(userID)
	if _, exists := streams[st.ID]; exists {
		return model.Stream{}, fmt.Errorf("create stream %q: already exists", st.ID)
	}
	if st.ParentID != nil {
		if _, ok := streams[*st.ParentID]; !ok {
			return model.Stream{}, fmt.Errorf("create stream %q: parent %q: %w", st.ID, *st.ParentID, store.ErrNotFound)
		}
	}
	st.Children = nil
	streams[st.ID] = st.Clone()
	return st, nil
}

func (s memStreams) Update(_ context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.streamErr != nil {
		return model.Stream{}, s.b.streamErr
	}
	streams := s.b.userStreams(userID)
	if _, ok := streams[st.ID]; !ok {
		return model.Stream{}, store.ErrNotFound
	}
	s.b.stamps.TouchStream(&st)
	st.Children = nil
	streams[st.ID] = st.Clone()
	return st, nil
}

func (s memStreams) Delete(_ context.Context, userID, streamID string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.streamErr != nil {
		return s.b.streamErr
	}
	streams := s.b.userStreams(userID)
	st, ok := streams[streamID]
	if !ok {
		return store.ErrNotFound
	}
	now := s.b.stamps.Clock.Now()
	st.Deleted = &now
	streams[streamID] = st
	return nil
}

type memEvents struct{ b *MemoryBackend }

func (s memEvents) Get(_ context.Context, userID string, q streamquery.EventsGetQuery) ([]model.Event, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if s.b.eventErr != nil {
		return nil, s.b.eventErr
	}

	filter := querydoc.Compile(q.Streams)
	out := []model.Event{}
	for _, e := range s.b.events[userID] {
		if !store.MatchEvent(e, q) {
			continue
		}
		ok, err := querydoc.Match(filter, e.StreamIDs)
		if err != nil {
			return nil, fmt.Errorf("match streams: %w", err)
		}
		if ok {
			out = append(out, e.Clone())
		}
	}
	return store.SortAndPage(out, q), nil
}

func (s memEvents) GetOne(_ context.Context, userID, eventID string) (*model.Event, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if s.b.eventErr != nil {
		return nil, s.b.eventErr
	}
	e, ok := s.b.events[userID][eventID]
	if !ok || e.Deleted != nil {
		return nil, store.ErrNotFound
	}
	c := e.Clone()
	return &c, nil
}

func (s memEvents) GetStreamed(ctx context.Context, userID string, q streamquery.EventsGetQuery) (store.EventIterator, error) {
	events, err := s.Get(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return store.NewSliceIterator(events), nil
}

func (s memEvents) Create(_ context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.eventErr != nil {
		return model.Event{}, s.b.eventErr
	}
	s.b.stamps.NewEvent(&e)
	events := s.b.userEvents(userID)
	if _, exists := events[e.ID]; exists {
		return model.Event{}, fmt.Errorf("create event %q: already exists", e.ID)
	}
	events[e.ID] = e.Clone()
	return e, nil
}

func (s memEvents) Update(_ context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.eventErr != nil {
		return model.Event{}, s.b.eventErr
	}
	events := s.b.userEvents(userID)
	if _, ok := events[e.ID]; !ok {
		return model.Event{}, store.ErrNotFound
	}
	s.b.stamps.Touch(&e)
	events[e.ID] = e.Clone()
	return e, nil
}

func (s memEvents) Delete(_ context.Context, userID, eventID string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.eventErr != nil {
		return s.b.eventErr
	}
	events := s.b.userEvents(userID)
	e, ok := events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	now := s.b.stamps.Clock.Now()
	e.Deleted = &now
	events[eventID] = e
	return nil
}
