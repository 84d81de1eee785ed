// Package mongostore is a store backend on MongoDB. Event stream queries use
// the querydoc filter directly; the remaining conditions are pushed down
// where the query language expresses them and re-checked in memory.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/streamhub/internal/store"
)

// Defaults for the "database" and "timeout" settings.
const (
	DefaultDatabase = "streamhub"
	DefaultTimeout  = 10 * time.Second
)

const (
	streamsCollection = "streams"
	eventsCollection  = "events"
)

// Backend is a store.Backend on one MongoDB database.
type Backend struct {
	id     string
	name   string
	stamps store.Stamps
	logger *slog.Logger

	client *mongo.Client
	db     *mongo.Database
}

// Option configures a Backend.
type Option func(*Backend)

// WithStamps sets the id generator and clock used for new records.
func WithStamps(s store.Stamps) Option {
	return func(b *Backend) {
		b.stamps = s
	}
}

// WithLogger sets the backend logger.
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

// Init connects to the "uri" setting, pings the server and creates the
// indexes of the "database" setting.
func (b *Backend) Init(ctx context.Context, settings store.Settings) error {
	uri := settings.String("uri", "")
	if uri == "" {
		return fmt.Errorf("mongo store %q: missing uri setting", b.id)
	}
	dbName := settings.String("database", DefaultDatabase)

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetTimeout(DefaultTimeout))
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	b.client = client
	b.db = db
	b.logger.Debug("mongo store opened", "store", b.id, "database", dbName)
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	collections := map[string][]mongo.IndexModel{
		streamsCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		eventsCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "time", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "streamIds", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "headId", Value: 1}}},
		},
	}
	for name, indexes := range collections {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}
	return nil
}

func (b *Backend) Streams() store.StreamsStore { return streamsStore{b} }
func (b *Backend) Events() store.EventsStore   { return eventsStore{b} }

// Close disconnects the client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return b.client.Disconnect(ctx)
}

// Drop removes the backend's database. Tests use it to clean up.
func (b *Backend) Drop(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.Drop(ctx)
}

func (b *Backend) streams() *mongo.Collection { return b.db.Collection(streamsCollection) }
func (b *Backend) events() *mongo.Collection  { return b.db.Collection(eventsCollection) }
