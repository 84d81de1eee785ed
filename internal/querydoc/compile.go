// Package querydoc compiles stream queries to document-store filters on the
// streamIds array field, in the MongoDB query language:
//
//	[{any:["A","B"], not:["C"]}]
//	  →  {$and: [{$or: [{streamIds: "A"}, {streamIds: "B"}]}, {streamIds: {$nin: ["C"]}}]}
//
// Filters are built as bson.D so field order, and therefore the rendered
// filter, is deterministic.
//
// Match evaluates a compiled filter against an in-memory tag list, which lets
// non-document stores (and tests) share the exact semantics the document
// store gets from its query engine.
package querydoc

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/streamhub/internal/streamquery"
)

// StreamIDsField is the document field holding an event's stream ids.
const StreamIDsField = "streamIds"

// Compile converts a stream query to a filter. An empty query compiles to an
// empty filter, which matches every document.
func Compile(q streamquery.StreamQuery) bson.D {
	switch len(q) {
	case 0:
		return bson.D{}
	case 1:
		return CompileBlock(q[0])
	}
	alternatives := make(bson.A, len(q))
	for i, b := range q {
		alternatives[i] = CompileBlock(b)
	}
	return bson.D{{Key: "$or", Value: alternatives}}
}

// CompileBlock converts one AND-block.
func CompileBlock(b streamquery.Block) bson.D {
	if b.IsLegacy() {
		return bson.D{{Key: StreamIDsField, Value: b.Legacy}}
	}

	var conds []bson.D

	if !b.Unconstrained() {
		if len(b.Any) == 1 {
			conds = append(conds, bson.D{{Key: StreamIDsField, Value: b.Any[0]}})
		} else {
			alternatives := make(bson.A, len(b.Any))
			for i, id := range b.Any {
				alternatives[i] = bson.D{{Key: StreamIDsField, Value: id}}
			}
			conds = append(conds, bson.D{{Key: "$or", Value: alternatives}})
		}
	}

	for _, nested := range b.And {
		if c := Compile(nested); len(c) > 0 {
			conds = append(conds, c)
		}
	}

	if len(b.Not) > 0 {
		excluded := make(bson.A, len(b.Not))
		for i, id := range b.Not {
			excluded[i] = id
		}
		conds = append(conds, bson.D{{Key: StreamIDsField, Value: bson.D{{Key: "$nin", Value: excluded}}}})
	}

	switch len(conds) {
	case 0:
		return bson.D{}
	case 1:
		return conds[0]
	}
	all := make(bson.A, len(conds))
	for i, c := range conds {
		all[i] = c
	}
	return bson.D{{Key: "$and", Value: all}}
}
