// Package streamquery defines the client-facing stream query and the
// events.get query that carries it.
//
// A StreamQuery is the abstraction boundary between clients and store
// backends. Each backend compiles it to its own filter language:
//
//	[client JSON] → [StreamQuery] → [querydoc]  (document filter, BSON)
//	                              → [querytext] (boolean expression)
//
// SEMANTICS:
//
// A StreamQuery is a list of AND-blocks OR'd together. Within one block:
//   - Any: the record carries at least one of the ids (empty = no constraint)
//   - Not: the record carries none of the ids
//   - And: every nested query also matches
//
// A block may also be a bare string (legacy shorthand for one id).
//
// The wildcard id "*" inside Any means "every stream of the store". A block
// whose Any contains it is unconstrained on Any rather than unmatched.
//
// STORE HOMOGENEITY:
//
// All ids of one AND-block, nested blocks included, must live in the same
// store. The router enforces this before backends ever see a query; this
// package only exposes the traversal helpers it needs (IDs, Map).
package streamquery
