// Package badgerstore is a store backend on an embedded Badger key-value
// database. Records are JSON values under per-user key prefixes; event
// stream queries are evaluated with querydoc.Match.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/streamhub/internal/store"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("badger store closed")

// Key layout: <kind> 0x00 <userID> 0x00 <recordID>.
const (
	kindStream = 's'
	kindEvent  = 'e'
	sep        = 0x00
)

func userPrefix(kind byte, userID string) []byte {
	k := make([]byte, 0, len(userID)+3)
	k = append(k, kind, sep)
	k = append(k, userID...)
	return append(k, sep)
}

func recordKey(kind byte, userID, id string) []byte {
	return append(userPrefix(kind, userID), id...)
}

// Backend is a store.Backend on one Badger database.
type Backend struct {
	id     string
	name   string
	stamps store.Stamps
	logger *slog.Logger

	mu     sync.RWMutex
	db     *badger.DB
	closed bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithStamps sets the id generator and clock used for new records.
func WithStamps(s store.Stamps) Option {
	return func(b *Backend) {
		b.stamps = s
	}
}

// WithLogger sets the backend logger. Badger's own messages go to it too.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// New creates an uninitialized backend.
func New(id, name string, opts ...Option) *Backend {
	b := &Backend{
		id:     id,
		name:   name,
		stamps: store.DefaultStamps(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) ID() string   { return b.id }
func (b *Backend) Name() string { return b.name }

// Init opens the database in the "path" directory, or in memory when the
// setting is absent.
func (b *Backend) Init(_ context.Context, settings store.Settings) error {
	path := settings.String("path", "")

	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{b.logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger store %q: %w", b.id, err)
	}

	b.mu.Lock()
	b.db = db
	b.closed = false
	b.mu.Unlock()
	return nil
}

func (b *Backend) Streams() store.StreamsStore { return streamsStore{b} }
func (b *Backend) Events() store.EventsStore   { return eventsStore{b} }

// Close closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.db == nil {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *Backend) handle() (*badger.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || b.db == nil {
		return nil, ErrClosed
	}
	return b.db, nil
}

func (b *Backend) view(fn func(txn *badger.Txn) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return db.View(fn)
}

func (b *Backend) update(fn func(txn *badger.Txn) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return db.Update(fn)
}

// scan decodes every value under prefix into a new T and passes it to fn.
func scan[T any](txn *badger.Txn, prefix []byte, fn func(T) error) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// load decodes the value at key into v. It returns store.ErrNotFound for a
// missing key.
func load(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// badgerLogger routes Badger's printf-style logging to slog.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
