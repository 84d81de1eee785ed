// Package store defines the capability interface every storage backend
// implements and the Registry that holds the backends of one process.
//
// # Backends
//
// A Backend exposes a streams store and an events store for many users. It
// only ever sees in-store ids: the router strips the ":store:" prefix before
// a query reaches it and re-adds it to results.
//
// Implementations in this module:
//   - sqlitestore: SQL backend, boolean-expression stream filtering
//   - badgerstore: embedded key-value backend, document-filter matching
//   - mongostore: document backend, native filter pushdown
//
// # Registry
//
// The Registry maps store ids to initialized backends. The local store is
// the default: un-namespaced ids resolve to it, and its failure is fatal for
// operations that span stores. Other stores are best effort during root
// aggregation.
//
// # Sentinel tag
//
// Stores that filter with boolean expressions append querytext.AllEventsTag
// to every record's stream ids at write time and strip it on read.
package store
