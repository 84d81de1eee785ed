// Package cachesys assembles the cache of one process: the user cache, the
// local bus, the cluster relay and the synchro between them.
//
// A System is built once at process start and passed to request handlers.
// Tests build several Systems on one in-memory broker to act as separate
// processes.
package cachesys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/cache"
	"github.com/roach88/streamhub/internal/cluster"
	"github.com/roach88/streamhub/internal/synchro"
)

// Config holds the cache settings of a process.
type Config struct {
	// CacheEnabled turns the user cache on. Disabled, every read misses.
	CacheEnabled bool

	// Subject is the broker subject for cache traffic.
	// Default: cluster.DefaultSubject.
	Subject string

	// QueueSize bounds the relay's outbound queue.
	// Default: cluster.DefaultQueueSize.
	QueueSize int

	Logger *slog.Logger
}

// System is the cache of one process.
//
// Lifecycle: New, Start, Close. Relay is nil when the system runs without a
// broker; invalidations then stay within the process.
type System struct {
	Cache   *cache.Cache
	Bus     *bus.Bus
	Relay   *cluster.Relay
	Synchro *synchro.Synchro

	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New wires a System. broker may be nil for a single-process deployment.
func New(cfg Config, broker cluster.Broker) *System {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := bus.New(bus.WithLogger(logger))
	c := cache.New(
		cache.WithPublisher(b),
		cache.WithEnabled(cfg.CacheEnabled),
		cache.WithLogger(logger),
	)
	s := synchro.New(b, c, synchro.WithLogger(logger))
	c.SetListener(s)

	sys := &System{
		Cache:   c,
		Bus:     b,
		Synchro: s,
		logger:  logger,
	}

	if broker != nil {
		opts := []cluster.RelayOption{cluster.WithLogger(logger)}
		if cfg.Subject != "" {
			opts = append(opts, cluster.WithSubject(cfg.Subject))
		}
		if cfg.QueueSize > 0 {
			opts = append(opts, cluster.WithQueueSize(cfg.QueueSize))
		}
		sys.Relay = cluster.NewRelay(broker, b, opts...)
		b.SetForwarder(sys.Relay)
	}
	return sys
}

// Start begins listening for invalidations, local and remote.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("cache system already started")
	}
	ctx, cancel := context.WithCancel(ctx)

	s.Synchro.Start()
	if s.Relay != nil {
		if err := s.Relay.Start(ctx); err != nil {
			cancel()
			s.Synchro.Stop()
			return fmt.Errorf("start cluster relay: %w", err)
		}
	}
	s.cancel = cancel

	s.logger.Info("cache system started",
		"cache_enabled", s.Cache.Enabled(),
		"clustered", s.Relay != nil)
	return nil
}

// Close stops listening and flushes pending outbound invalidations. The
// broker itself is left open for its owner to close.
func (s *System) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	var err error
	if s.Relay != nil {
		err = s.Relay.Close()
	}
	s.Synchro.Stop()
	if cancel != nil {
		cancel()
	}
	return err
}
