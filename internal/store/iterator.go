package store

import (
	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamquery"
)

// Source yields candidate events in query order. It returns ok=false when
// exhausted.
type Source func() (e model.Event, ok bool, err error)

// FilterIterator applies MatchEvent, Skip and Limit to a Source whose
// events already arrive sorted. Backends that push the sort down to their
// engine use it to stream results without loading them all.
type FilterIterator struct {
	src     Source
	closeFn func() error
	q       streamquery.EventsGetQuery

	skipped  int
	returned int
	cur      model.Event
	err      error
	done     bool
}

// NewFilterIterator wraps src. closeFn, when not nil, is called once by
// Close.
func NewFilterIterator(q streamquery.EventsGetQuery, src Source, closeFn func() error) *FilterIterator {
	return &FilterIterator{src: src, closeFn: closeFn, q: q}
}

// Next advances to the next matching event.
func (it *FilterIterator) Next() bool {
	if it.done {
		return false
	}
	if it.q.Limit > 0 && it.returned >= it.q.Limit {
		it.done = true
		return false
	}
	for {
		e, ok, err := it.src()
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		if !ok {
			it.done = true
			return false
		}
		if !MatchEvent(e, it.q) {
			continue
		}
		if it.skipped < it.q.Skip {
			it.skipped++
			continue
		}
		it.cur = e
		it.returned++
		return true
	}
}

// Event returns the current event.
func (it *FilterIterator) Event() model.Event { return it.cur }

// Err returns the first source error.
func (it *FilterIterator) Err() error { return it.err }

// Close releases the source.
func (it *FilterIterator) Close() error {
	it.done = true
	if it.closeFn == nil {
		return nil
	}
	fn := it.closeFn
	it.closeFn = nil
	return fn()
}
