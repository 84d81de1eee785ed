// Package streamid encodes and decodes namespaced stream identifiers.
//
// A stream id seen by clients is one of:
//
//	foo              an id in the local store
//	:store:foo       id "foo" in store "store"
//	:store:          the root pseudo-stream of store "store"
//
// Ids under the reserved system namespaces (":_system:", ":system:") predate
// store namespacing and always belong to the local store.
package streamid

import (
	"strings"

	"github.com/roach88/streamhub/internal/model"
)

const (
	// LocalStoreID identifies the default store. Its ids are never prefixed.
	LocalStoreID = "local"

	// Wildcard is the sub-id meaning "every item of the store".
	Wildcard = "*"

	marker = ":"
)

// reservedPrefixes are namespaces that look like store references but are
// local ids.
var reservedPrefixes = []string{":_system:", ":system:"}

// Decode splits a client-facing id into its store id and in-store id.
//
// Decode never fails: ids that are not namespaced, reserved, or malformed
// (no closing marker, empty store id) resolve to the local store unchanged.
// A store root (":store:") decodes to sub-id Wildcard.
func Decode(fullID string) (storeID, subID string) {
	if !strings.HasPrefix(fullID, marker) || isReserved(fullID) {
		return LocalStoreID, fullID
	}
	end := strings.Index(fullID[1:], marker)
	if end <= 0 {
		return LocalStoreID, fullID
	}
	storeID = fullID[1 : end+1]
	subID = fullID[end+2:]
	if subID == "" {
		subID = Wildcard
	}
	return storeID, subID
}

// Encode builds the client-facing id for subID in storeID.
func Encode(storeID, subID string) string {
	if storeID == LocalStoreID {
		return subID
	}
	if subID == Wildcard {
		return marker + storeID + marker
	}
	return marker + storeID + marker + subID
}

// StoreOf returns the store id an id belongs to.
func StoreOf(fullID string) string {
	storeID, _ := Decode(fullID)
	return storeID
}

// IsStoreRoot reports whether id is the root pseudo-stream of a non-local store.
func IsStoreRoot(fullID string) bool {
	storeID, subID := Decode(fullID)
	return storeID != LocalStoreID && subID == Wildcard
}

// AddStoreIDToTree returns a copy of streams with every id and parent id
// namespaced under storeID. Root streams get the store root as parent, so
// each store contributes a single subtree to an aggregated tree.
func AddStoreIDToTree(storeID string, streams []model.Stream) []model.Stream {
	if streams == nil {
		return nil
	}
	out := make([]model.Stream, len(streams))
	for i, s := range streams {
		c := s.Clone()
		c.ID = Encode(storeID, s.ID)
		parent := Encode(storeID, Wildcard)
		if s.ParentID != nil {
			parent = Encode(storeID, *s.ParentID)
		}
		c.ParentID = &parent
		c.Children = AddStoreIDToTree(storeID, s.Children)
		out[i] = c
	}
	return out
}

func isReserved(id string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
