package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

type streamDoc struct {
	UserID       string `bson:"userId"`
	model.Stream `bson:",inline"`
}

type eventDoc struct {
	UserID      string `bson:"userId"`
	model.Event `bson:",inline"`
}

func byID(userID, id string) bson.D {
	return bson.D{{Key: "userId", Value: userID}, {Key: "id", Value: id}}
}

type streamsStore struct{ b *Backend }

func (s streamsStore) flat(ctx context.Context, userID string) ([]model.Stream, error) {
	cursor, err := s.b.streams().Find(ctx, bson.D{{Key: "userId", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("find streams: %w", err)
	}
	var docs []streamDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}
	streams := make([]model.Stream, len(docs))
	for i, d := range docs {
		streams[i] = d.Stream
	}
	return streams, nil
}

func (s streamsStore) Get(ctx context.Context, userID string, q streamquery.StreamsGetQuery) ([]model.Stream, error) {
	flat, err := s.flat(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.SelectStreams(flat, q)
}

func (s streamsStore) GetOne(ctx context.Context, userID, streamID string, q streamquery.StreamsGetQuery) (*model.Stream, error) {
	flat, err := s.flat(ctx, userID)
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

func (s streamsStore) Create(ctx context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.stamps.NewStream(&st)
	st.Children = nil

	if st.ParentID != nil {
		filter := append(byID(userID, *st.ParentID), bson.E{Key: "deleted", Value: bson.D{{Key: "$exists", Value: false}}})
		err := s.b.streams().FindOne(ctx, filter).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Stream{}, fmt.Errorf("create stream %q: parent %q: %w", st.ID, *st.ParentID, store.ErrNotFound)
		}
		if err != nil {
			return model.Stream{}, fmt.Errorf("find parent stream: %w", err)
		}
	}

	_, err := s.b.streams().InsertOne(ctx, streamDoc{UserID: userID, Stream: st})
	if mongo.IsDuplicateKeyError(err) {
		return model.Stream{}, fmt.Errorf("create stream %q: already exists", st.ID)
	}
	if err != nil {
		return model.Stream{}, fmt.Errorf("insert stream: %w", err)
	}
	return st, nil
}

func (s streamsStore) Update(ctx context.Context, userID string, st model.Stream) (model.Stream, error) {
	s.b.stamps.TouchStream(&st)
	st.Children = nil

	res, err := s.b.streams().ReplaceOne(ctx, byID(userID, st.ID), streamDoc{UserID: userID, Stream: st})
	if err != nil {
		return model.Stream{}, fmt.Errorf("replace stream: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.Stream{}, store.ErrNotFound
	}
	return st, nil
}

func (s streamsStore) Delete(ctx context.Context, userID, streamID string) error {
	now := s.b.stamps.Clock.Now()
	res, err := s.b.streams().UpdateOne(ctx, byID(userID, streamID),
		bson.D{{Key: "$set", Value: bson.D{{Key: "deleted", Value: now}}}})
	if err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type eventsStore struct{ b *Backend }

func (s eventsStore) Get(ctx context.Context, userID string, q streamquery.EventsGetQuery) ([]model.Event, error) {
	it, err := s.GetStreamed(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return store.CollectEvents(it)
}

func (s eventsStore) GetStreamed(ctx context.Context, userID string, q streamquery.EventsGetQuery) (store.EventIterator, error) {
	cursor, err := s.b.events().Find(ctx, eventsFilter(userID, q), options.Find().SetSort(eventsSort(q)))
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	src := func() (model.Event, bool, error) {
		if !cursor.Next(ctx) {
			if err := cursor.Err(); err != nil {
				return model.Event{}, false, fmt.Errorf("iterate events: %w", err)
			}
			return model.Event{}, false, nil
		}
		var d eventDoc
		if err := cursor.Decode(&d); err != nil {
			return model.Event{}, false, fmt.Errorf("decode event: %w", err)
		}
		return d.Event, true, nil
	}
	return store.NewFilterIterator(q, src, func() error { return cursor.Close(ctx) }), nil
}

func (s eventsStore) GetOne(ctx context.Context, userID, eventID string) (*model.Event, error) {
	filter := append(byID(userID, eventID), bson.E{Key: "deleted", Value: bson.D{{Key: "$exists", Value: false}}})
	var d eventDoc
	err := s.b.events().FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &d.Event, nil
}

func (s eventsStore) Create(ctx context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.NewEvent(&e)
	_, err := s.b.events().InsertOne(ctx, eventDoc{UserID: userID, Event: e})
	if mongo.IsDuplicateKeyError(err) {
		return model.Event{}, fmt.Errorf("create event %q: already exists", e.ID)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

func (s eventsStore) Update(ctx context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.Touch(&e)
	res, err := s.b.events().ReplaceOne(ctx, byID(userID, e.ID), eventDoc{UserID: userID, Event: e})
	if err != nil {
		return model.Event{}, fmt.Errorf("replace event: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.Event{}, store.ErrNotFound
	}
	return e, nil
}

func (s eventsStore) Delete(ctx context.Context, userID, eventID string) error {
	now := s.b.stamps.Clock.Now()
	res, err := s.b.events().UpdateOne(ctx, byID(userID, eventID),
		bson.D{{Key: "$set", Value: bson.D{{Key: "deleted", Value: now}}}})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
