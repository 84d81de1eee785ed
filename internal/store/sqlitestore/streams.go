package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

type streamsStore struct{ b *Backend }

// flat loads every stream of the user, deleted ones included.
func (s streamsStore) flat(ctx context.Context, userID string) ([]model.Stream, error) {
	rows, err := s.b.db.QueryContext(ctx, `
		SELECT data FROM streams
		WHERE user_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	streams := []model.Stream{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		var st model.Stream
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decode stream: %w", err)
		}
		streams = append(streams, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
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
		var one int
		err := s.b.db.QueryRowContext(ctx, `
			SELECT 1 FROM streams WHERE user_id = ? AND id = ? AND deleted IS NULL
		`, userID, *st.ParentID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Stream{}, fmt.Errorf("create stream %q: parent %q: %w", st.ID, *st.ParentID, store.ErrNotFound)
		}
		if err != nil {
			return model.Stream{}, fmt.Errorf("look up parent stream: %w", err)
		}
	}

	data, err := json.Marshal(st)
	if err != nil {
		return model.Stream{}, fmt.Errorf("encode stream: %w", err)
	}
	_, err = s.b.db.ExecContext(ctx, `
		INSERT INTO streams (user_id, id, parent_id, deleted, data)
		VALUES (?, ?, ?, ?, ?)
	`, userID, st.ID, st.ParentID, st.Deleted, string(data))
	if isConstraint(err) {
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
	if err := s.write(ctx, userID, st); err != nil {
		return model.Stream{}, err
	}
	return st, nil
}

func (s streamsStore) Delete(ctx context.Context, userID, streamID string) error {
	st, err := s.getRaw(ctx, userID, streamID)
	if err != nil {
		return err
	}
	now := s.b.stamps.Clock.Now()
	st.Deleted = &now
	return s.write(ctx, userID, st)
}

func (s streamsStore) getRaw(ctx context.Context, userID, streamID string) (model.Stream, error) {
	var data string
	err := s.b.db.QueryRowContext(ctx, `
		SELECT data FROM streams WHERE user_id = ? AND id = ?
	`, userID, streamID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stream{}, store.ErrNotFound
	}
	if err != nil {
		return model.Stream{}, fmt.Errorf("query stream: %w", err)
	}
	var st model.Stream
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return model.Stream{}, fmt.Errorf("decode stream: %w", err)
	}
	return st, nil
}

func (s streamsStore) write(ctx context.Context, userID string, st model.Stream) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode stream: %w", err)
	}
	res, err := s.b.db.ExecContext(ctx, `
		UPDATE streams SET parent_id = ?, deleted = ?, data = ?
		WHERE user_id = ? AND id = ?
	`, st.ParentID, st.Deleted, string(data), userID, st.ID)
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
