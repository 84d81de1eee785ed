package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/streamhub/internal/cluster"
	"github.com/roach88/streamhub/internal/cluster/natsbroker"
	"github.com/roach88/streamhub/internal/config"
	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/store/badgerstore"
	"github.com/roach88/streamhub/internal/store/mongostore"
	"github.com/roach88/streamhub/internal/store/sqlitestore"
)

// errNoBroker is returned by commands that need the cluster when none is
// configured.
var errNoBroker = errors.New("no broker configured (set broker.kind or STREAMHUB_BROKER_URL)")

// newBackend creates the uninitialized backend declared by sc.
func newBackend(sc config.StoreConfig, logger *slog.Logger) (store.Backend, error) {
	switch sc.Kind {
	case config.KindSQLite:
		return sqlitestore.New(sc.ID, sc.Name, sqlitestore.WithLogger(logger)), nil
	case config.KindBadger:
		return badgerstore.New(sc.ID, sc.Name, badgerstore.WithLogger(logger)), nil
	case config.KindMongo:
		return mongostore.New(sc.ID, sc.Name, mongostore.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("store %q: unknown kind %q", sc.ID, sc.Kind)
	}
}

// openRegistry initializes every configured store. On failure the stores
// opened so far are closed.
func openRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Registry, error) {
	reg := store.NewRegistry(store.WithLogger(logger))
	for _, sc := range cfg.Stores {
		b, err := newBackend(sc, logger)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		if err := b.Init(ctx, sc.Settings); err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("init store %q: %w", sc.ID, err)
		}
		if err := reg.Register(b); err != nil {
			_ = b.Close()
			_ = reg.Close()
			return nil, err
		}
		logger.Debug("store ready", "store", sc.ID, "kind", sc.Kind)
	}
	return reg, nil
}

// storeIDs is the set of configured store ids, for routing without opening
// the stores.
type storeIDs map[string]bool

func (s storeIDs) Has(id string) bool { return s[id] }

func configuredStores(cfg *config.Config) storeIDs {
	ids := make(storeIDs, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		ids[sc.ID] = true
	}
	return ids
}

func connectNATS(cfg config.BrokerConfig, logger *slog.Logger) (cluster.Broker, error) {
	if cfg.Kind != config.BrokerNATS {
		return nil, errNoBroker
	}
	b, err := natsbroker.Connect(cfg.URL, natsbroker.Options{Name: cfg.Name, Logger: logger})
	if err != nil {
		return nil, err
	}
	return b, nil
}
