package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/querytext"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/streamquery"
)

type eventsStore struct{ b *Backend }

// selectEvents builds the SQL for q. The streams query, user and the cheap
// indexed conditions are pushed down; store.MatchEvent applies the rest.
func selectEvents(userID string, q streamquery.EventsGetQuery) (string, []any) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if expr := querytext.Compile(q.Streams); expr != "" {
		where = append(where, matchFuncName+"(?, stream_tags)")
		args = append(args, expr)
	}
	switch {
	case q.HeadID != "":
		where = append(where, "head_id = ?")
		args = append(args, q.HeadID)
	case q.ID != "" && q.IncludeHistory:
		where = append(where, "(id = ? OR head_id = ?)")
		args = append(args, q.ID, q.ID)
	case q.ID != "":
		where = append(where, "id = ?")
		args = append(args, q.ID)
	}
	switch {
	case q.DeletedSince != nil:
		where = append(where, "deleted >= ?")
		args = append(args, *q.DeletedSince)
	case !q.IncludeDeletions:
		where = append(where, "deleted IS NULL")
	}
	if q.ModifiedSince != nil {
		where = append(where, "modified >= ?")
		args = append(args, *q.ModifiedSince)
	}
	if q.ToTime != nil {
		where = append(where, "time <= ?")
		args = append(args, *q.ToTime)
	}

	order := "time DESC"
	if q.SortAscending {
		order = "time ASC"
	}
	query := "SELECT data FROM events WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + ", id COLLATE BINARY ASC"
	return query, args
}

func (s eventsStore) Get(ctx context.Context, userID string, q streamquery.EventsGetQuery) ([]model.Event, error) {
	it, err := s.GetStreamed(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return store.CollectEvents(it)
}

func (s eventsStore) GetStreamed(ctx context.Context, userID string, q streamquery.EventsGetQuery) (store.EventIterator, error) {
	query, args := selectEvents(userID, q)
	rows, err := s.b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	src := func() (model.Event, bool, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return model.Event{}, false, fmt.Errorf("iterate events: %w", err)
			}
			return model.Event{}, false, nil
		}
		e, err := scanEvent(rows)
		if err != nil {
			return model.Event{}, false, err
		}
		return e, true, nil
	}
	return store.NewFilterIterator(q, src, rows.Close), nil
}

func (s eventsStore) GetOne(ctx context.Context, userID, eventID string) (*model.Event, error) {
	row := s.b.db.QueryRowContext(ctx, `
		SELECT data FROM events WHERE user_id = ? AND id = ? AND deleted IS NULL
	`, userID, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s eventsStore) Create(ctx context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.NewEvent(&e)
	cols, err := eventColumns(e)
	if err != nil {
		return model.Event{}, err
	}
	_, err = s.b.db.ExecContext(ctx, `
		INSERT INTO events (user_id, id, head_id, stream_tags, time, trashed, deleted, modified, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, e.ID, cols.headID, cols.tags, e.Time, e.Trashed, e.Deleted, e.Modified, cols.data)
	if isConstraint(err) {
		return model.Event{}, fmt.Errorf("create event %q: already exists", e.ID)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

func (s eventsStore) Update(ctx context.Context, userID string, e model.Event) (model.Event, error) {
	s.b.stamps.Touch(&e)
	if err := s.write(ctx, userID, e); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (s eventsStore) Delete(ctx context.Context, userID, eventID string) error {
	row := s.b.db.QueryRowContext(ctx, `
		SELECT data FROM events WHERE user_id = ? AND id = ?
	`, userID, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	now := s.b.stamps.Clock.Now()
	e.Deleted = &now
	return s.write(ctx, userID, e)
}

func (s eventsStore) write(ctx context.Context, userID string, e model.Event) error {
	cols, err := eventColumns(e)
	if err != nil {
		return err
	}
	res, err := s.b.db.ExecContext(ctx, `
		UPDATE events
		SET head_id = ?, stream_tags = ?, time = ?, trashed = ?, deleted = ?, modified = ?, data = ?
		WHERE user_id = ? AND id = ?
	`, cols.headID, cols.tags, e.Time, e.Trashed, e.Deleted, e.Modified, cols.data, userID, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type columns struct {
	headID sql.NullString
	tags   string
	data   string
}

func eventColumns(e model.Event) (columns, error) {
	tags, err := encodeTags(e.StreamIDs)
	if err != nil {
		return columns{}, fmt.Errorf("encode stream tags: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return columns{}, fmt.Errorf("encode event: %w", err)
	}
	return columns{
		headID: sql.NullString{String: e.HeadID, Valid: e.HeadID != ""},
		tags:   tags,
		data:   string(data),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, err
		}
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}
	var e model.Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return model.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
