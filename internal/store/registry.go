package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamid"
	"github.com/roach88/streamhub/internal/streamquery"
)

// Registry holds the backends of one process, keyed by store id.
//
// Registration happens at startup; lookups are safe from any goroutine.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	order    []string
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report failing stores.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		backends: make(map[string]Backend),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an initialized backend. Store ids must be unique.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := b.ID()
	if id == "" {
		return errors.New("register store: empty id")
	}
	if _, exists := r.backends[id]; exists {
		return fmt.Errorf("register store: duplicate id %q", id)
	}
	r.backends[id] = b
	r.order = append(r.order, id)
	return nil
}

// Get returns the backend for storeID, or an *UnknownStoreError.
func (r *Registry) Get(storeID string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[storeID]
	if !ok {
		return nil, &UnknownStoreError{StoreID: storeID}
	}
	return b, nil
}

// Has reports whether storeID is registered.
func (r *Registry) Has(storeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[storeID]
	return ok
}

// Local returns the default store.
func (r *Registry) Local() (Backend, error) {
	return r.Get(streamid.LocalStoreID)
}

// IDs returns the registered store ids, local first, then in registration
// order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := append([]string(nil), r.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return ids[i] == streamid.LocalStoreID && ids[j] != streamid.LocalStoreID
	})
	return ids
}

// AggregateRootStreams returns the root streams of every store as one tree.
//
// Local roots are listed as-is. Every other store contributes a single node
// with the store root id whose children are the store's roots, namespaced.
// A failing non-local store is logged and omitted; a failing local store
// fails the whole call.
func (r *Registry) AggregateRootStreams(ctx context.Context, userID string) ([]model.Stream, error) {
	all := streamquery.StreamsGetQuery{ParentID: streamquery.Wildcard}
	var result []model.Stream

	for _, id := range r.IDs() {
		b, err := r.Get(id)
		if err != nil {
			continue
		}

		roots, err := b.Streams().Get(ctx, userID, all)
		if id == streamid.LocalStoreID {
			if err != nil {
				return nil, fmt.Errorf("get root streams of local store: %w", err)
			}
			result = append(result, roots...)
			continue
		}
		if err != nil {
			r.logger.Warn("omitting store from root streams",
				"store", id,
				"user", userID,
				"error", err)
			continue
		}

		result = append(result, model.Stream{
			ID:       streamid.Encode(id, streamid.Wildcard),
			Name:     b.Name(),
			Children: streamid.AddStoreIDToTree(id, roots),
		})
	}

	if result == nil {
		result = []model.Stream{}
	}
	return result, nil
}

// Close closes every backend and joins their errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range r.order {
		if err := r.backends[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
