// Package router splits client queries that reference namespaced stream ids
// into one query per store, and re-namespaces what the stores return.
//
// Every AND-block of a stream query must stay within one store: the stores
// evaluate blocks independently and the router merges nothing but whole
// result sets.
package router

import (
	"log/slog"
	"sort"

	"github.com/roach88/streamhub/internal/streamid"
	"github.com/roach88/streamhub/internal/streamquery"
)

// StoreSet reports which store ids have a backend. *store.Registry
// implements it.
type StoreSet interface {
	Has(storeID string) bool
}

// Router splits queries by store.
//
// A Router without a StoreSet accepts any store id; with one, ids of
// unregistered stores fail with UnknownStoreError.
//
// Thread-safety: Router is immutable after New and safe for concurrent use.
type Router struct {
	stores StoreSet
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRegistry makes the router reject ids of stores missing from stores.
func WithRegistry(stores StoreSet) Option {
	return func(r *Router) {
		r.stores = stores
	}
}

// WithLogger sets the logger used for debug tracing of splits.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a Router.
func New(opts ...Option) *Router {
	r := &Router{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// target is the single-store constraint carried by id or headId.
type target struct {
	storeID string
	subID   string
}

// SplitByStore returns one events query per store referenced by q.
//
// The store of q.ID or q.HeadID constrains the whole query: stream blocks
// may not reference another store. Each returned query has its ids stripped
// of their store prefix. A query that references no store at all is routed
// unchanged to the local store.
func (r *Router) SplitByStore(q streamquery.EventsGetQuery) (map[string]streamquery.EventsGetQuery, error) {
	var constraint *target
	switch {
	case q.ID != "" && q.HeadID != "":
		return nil, newShapeError(-1, "id and headId are mutually exclusive")
	case q.ID != "":
		storeID, subID := streamid.Decode(q.ID)
		constraint = &target{storeID: storeID, subID: subID}
	case q.HeadID != "":
		storeID, subID := streamid.Decode(q.HeadID)
		constraint = &target{storeID: storeID, subID: subID}
	}

	if err := streamquery.Validate(q.Streams); err != nil {
		return nil, &QueryShapeError{Message: "invalid streams query", Block: -1, Err: err}
	}

	groups, order, err := groupBlocks(q.Streams)
	if err != nil {
		return nil, err
	}

	if constraint != nil && len(order) > 0 {
		if len(order) > 1 || order[0] != constraint.storeID {
			return nil, &QueryShapeError{
				Message: "streams must be from the same store as the requested event",
				Block:   -1,
				Stores:  append([]string{constraint.storeID}, order...),
			}
		}
	}

	if constraint != nil && len(order) == 0 {
		order = []string{constraint.storeID}
	}
	if len(order) == 0 {
		order = []string{streamid.LocalStoreID}
	}

	out := make(map[string]streamquery.EventsGetQuery, len(order))
	for _, storeID := range order {
		if r.stores != nil && !r.stores.Has(storeID) {
			return nil, &UnknownStoreError{StoreID: storeID}
		}

		sub := q.Clone()
		sub.Streams = groups[storeID]
		if constraint != nil {
			sub.ID, sub.HeadID = "", ""
			if q.ID != "" {
				sub.ID = constraint.subID
			} else {
				sub.HeadID = constraint.subID
			}
		}
		if err := streamquery.Validate(sub.Streams); err != nil {
			return nil, &QueryShapeError{Message: "invalid streams query for store " + storeID, Block: -1, Err: err}
		}
		out[storeID] = sub
	}

	r.logger.Debug("split query by store", "stores", order)
	return out, nil
}

// groupBlocks assigns each AND-block to its store and strips the store
// prefix from its ids. order lists store ids by first appearance.
func groupBlocks(q streamquery.StreamQuery) (map[string]streamquery.StreamQuery, []string, error) {
	groups := make(map[string]streamquery.StreamQuery)
	var order []string

	for i, b := range q {
		storeID, err := blockStore(i, b)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := groups[storeID]; !seen {
			order = append(order, storeID)
		}
		groups[storeID] = append(groups[storeID], b.Map(stripStore))
	}
	return groups, order, nil
}

// blockStore returns the single store referenced by b. Blocks without ids
// belong to the local store.
func blockStore(index int, b streamquery.Block) (string, error) {
	stores := make(map[string]bool)
	for _, id := range b.IDs() {
		stores[streamid.StoreOf(id)] = true
	}

	switch len(stores) {
	case 0:
		return streamid.LocalStoreID, nil
	case 1:
		for id := range stores {
			return id, nil
		}
	}

	ids := make([]string, 0, len(stores))
	for id := range stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	err := newShapeError(index, "streams must be from the same store per AND-block")
	err.Stores = ids
	return "", err
}

func stripStore(id string) string {
	_, subID := streamid.Decode(id)
	return subID
}

// SplitStreamsQuery resolves the store a streams.get query targets. The
// returned query has its parent id stripped of the store prefix; a store
// root parent becomes Wildcard.
func (r *Router) SplitStreamsQuery(q streamquery.StreamsGetQuery) (string, streamquery.StreamsGetQuery, error) {
	if q.AllRoots() {
		return streamid.LocalStoreID, q, nil
	}
	storeID, subID := streamid.Decode(q.ParentID)
	if r.stores != nil && !r.stores.Has(storeID) {
		return "", q, &UnknownStoreError{StoreID: storeID}
	}
	q.ParentID = subID
	return storeID, q, nil
}

// ResolveID returns the store and in-store id of a single record id, as used
// by getOne, update and delete requests.
func (r *Router) ResolveID(fullID string) (storeID, subID string, err error) {
	storeID, subID = streamid.Decode(fullID)
	if r.stores != nil && !r.stores.Has(storeID) {
		return "", "", &UnknownStoreError{StoreID: storeID}
	}
	return storeID, subID, nil
}
