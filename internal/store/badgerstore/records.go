package badgerstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/querydoc"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

type streamsStore struct{ b *Backend }

func (s streamsStore) flat(userID string) ([]model.Stream, error) {
	streams := []model.Stream{}
	err := s.b.view(func(txn *badger.Txn) error {
		return scan(txn, userPrefix(kindStream, userID), func(st model.Stream) error {
			streams = append(streams, st)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read streams: %w", err)
	}
	return streams, nil
}

func (s streamsStore) Get(_ context.Context, userID string, q streamquery.StreamsGetQuery) ([]model.Stream, error) {
	flat, err := s.flat(userID)
	if err != nil {
		return nil, err
	}
	return store.SelectStreams(flat, q)
}

func (s streamsStore) GetOne(_ context.Context, userID, streamID string, q streamquery.StreamsGetQuery) (*model.Stream, error) {
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

func (s streamsStore) Create(_ context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.stamps.NewStream(&st)
	st.Children = nil

	err := s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindStream, userID, st.ID)
		taken, err := exists(txn, key)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("create stream %q: already exists", st.ID)
		}
		if st.ParentID != nil {
			var parent model.Stream
			err := load(txn, recordKey(kindStream, userID, *st.ParentID), &parent)
			if err == nil && parent.Deleted != nil {
				err = store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("create stream %q: parent %q: %w", st.ID, *st.ParentID, err)
			}
		}
		return put(txn, key, st)
	})
	if err != nil {
		return model.Stream{}, err
	}
	return st, nil
}

func (s streamsStore) Update(_ context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.stamps.TouchStream(&st)
	st.Children = nil

	err := s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindStream, userID, st.ID)
		found, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}
		return put(txn, key, st)
	})
	if err != nil {
		return model.Stream{}, err
	}
	return st, nil
}

func (s streamsStore) Delete(_ context.Context, userID, streamID string) error {
	return s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindStream, userID, streamID)
		var st model.Stream
		if err := load(txn, key, &st); err != nil {
			return err
		}
		now := s.b.stamps.Clock.Now()
		st.Deleted = &now
		return put(txn, key, st)
	})
}

type eventsStore struct{ b *Backend }

// Get scans the user's events. Badger keeps them in id order, so results are
// collected and sorted in memory.
func (s eventsStore) Get(_ context.Context, userID string, q streamquery.EventsGetQuery) ([]model.Event, error) {
	filter := querydoc.Compile(q.Streams)
	events := []model.Event{}

	err := s.b.view(func(txn *badger.Txn) error {
		return scan(txn, userPrefix(kindEvent, userID), func(e model.Event) error {
			if !store.MatchEvent(e, q) {
				return nil
			}
			ok, err := querydoc.Match(filter, e.StreamIDs)
			if err != nil {
				return fmt.Errorf("match streams: %w", err)
			}
			if ok {
				events = append(events, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return store.SortAndPage(events, q), nil
}

func (s eventsStore) GetStreamed(ctx context.Context, userID string, q streamquery.EventsGetQuery) (store.EventIterator, error) {
	events, err := s.Get(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return store.NewSliceIterator(events), nil
}

func (s eventsStore) GetOne(_ context.Context, userID, eventID string) (*model.Event, error) {
	var e model.Event
	err := s.b.view(func(txn *badger.Txn) error {
		return load(txn, recordKey(kindEvent, userID, eventID), &e)
	})
	if err != nil {
		return nil, err
	}
	if e.Deleted != nil {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s eventsStore) Create(_ context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.NewEvent(&e)

	err := s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindEvent, userID, e.ID)
		taken, err := exists(txn, key)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("create event %q: already exists", e.ID)
		}
		return put(txn, key, e)
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (s eventsStore) Update(_ context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.Touch(&e)

	err := s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindEvent, userID, e.ID)
		found, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}
		return put(txn, key, e)
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (s eventsStore) Delete(_ context.Context, userID, eventID string) error {
	return s.b.update(func(txn *badger.Txn) error {
		key := recordKey(kindEvent, userID, eventID)
		var e model.Event
		if err := load(txn, key, &e); err != nil {
			return err
		}
		now := s.b.stamps.Clock.Now()
		e.Deleted = &now
		return put(txn, key, e)
	})
}
