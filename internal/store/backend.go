package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamquery"
)

// Stream and Event are the record types every backend stores.
type (
	Stream = model.Stream
	Event  = model.Event
)

// ErrNotFound is returned by GetOne, Update and Delete for unknown ids.
var ErrNotFound = errors.New("not found")

// Settings carries backend-specific initialization parameters.
type Settings map[string]any

// String returns the string setting key, or def when absent.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Backend is one independently addressable store.
type Backend interface {
	// ID is the store id used in namespaced stream ids.
	ID() string
	// Name is the display name of the store's root pseudo-stream.
	Name() string
	// Init opens connections and prepares storage. It is called once,
	// before any other method except ID and Name.
	Init(ctx context.Context, settings Settings) error
	Streams() StreamsStore
	Events() EventsStore
	Close() error
}

// StreamsStore manages per-user stream trees.
type StreamsStore interface {
	// Get returns the subtree selected by q as a tree.
	Get(ctx context.Context, userID string, q streamquery.StreamsGetQuery) ([]model.Stream, error)
	// GetOne returns one stream with its children.
	GetOne(ctx context.Context, userID, streamID string, q streamquery.StreamsGetQuery) (*model.Stream, error)
	Create(ctx context.Context, userID string, s model.Stream) (model.Stream, error)
	Update(ctx context.Context, userID string, s model.Stream) (model.Stream, error)
	Delete(ctx context.Context, userID, streamID string) error
}

// EventsStore manages per-user events.
type EventsStore interface {
	Get(ctx context.Context, userID string, q streamquery.EventsGetQuery) ([]model.Event, error)
	GetOne(ctx context.Context, userID, eventID string) (*model.Event, error)
	// GetStreamed returns the same events as Get, one at a time. The caller
	// must Close the iterator.
	GetStreamed(ctx context.Context, userID string, q streamquery.EventsGetQuery) (EventIterator, error)
	Create(ctx context.Context, userID string, e model.Event) (model.Event, error)
	Update(ctx context.Context, userID string, e model.Event) (model.Event, error)
	Delete(ctx context.Context, userID, eventID string) error
}

// EventIterator walks query results.
//
//	for it.Next() {
//	    ev := it.Event()
//	}
//	if err := it.Err(); err != nil { ... }
type EventIterator interface {
	Next() bool
	Event() model.Event
	Err() error
	Close() error
}

// SliceIterator iterates over events already in memory.
type SliceIterator struct {
	events []model.Event
	pos    int
}

// NewSliceIterator returns an iterator over events.
func NewSliceIterator(events []model.Event) *SliceIterator {
	return &SliceIterator{events: events, pos: -1}
}

// Next advances to the next event.
func (it *SliceIterator) Next() bool {
	if it.pos+1 >= len(it.events) {
		it.pos = len(it.events)
		return false
	}
	it.pos++
	return true
}

// Event returns the current event.
func (it *SliceIterator) Event() model.Event {
	return it.events[it.pos]
}

// Err always returns nil.
func (it *SliceIterator) Err() error { return nil }

// Close releases nothing.
func (it *SliceIterator) Close() error { return nil }

// CollectEvents drains an iterator and closes it.
func CollectEvents(it EventIterator) ([]model.Event, error) {
	defer it.Close()
	events := []model.Event{}
	for it.Next() {
		events = append(events, it.Event())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
