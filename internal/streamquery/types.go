package streamquery

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wildcard matches every stream of a store when it appears in Any.
const Wildcard = "*"

// StreamQuery is an OR of AND-blocks.
//
// A nil or empty StreamQuery places no constraint on stream membership.
type StreamQuery []Block

// Block is one AND-block of a StreamQuery.
//
// Semantics:
//
//	(Any[0] OR Any[1] OR ...) AND And[0] AND And[1] ... AND NOT Not[0] AND NOT Not[1] ...
//
// Legacy holds the id of a bare-string block. When Legacy is set the other
// fields are empty.
type Block struct {
	Any    []string
	Not    []string
	And    []StreamQuery
	Legacy string
}

// IsLegacy reports whether the block was given as a bare string.
func (b Block) IsLegacy() bool {
	return b.Legacy != ""
}

// HasWildcard reports whether Any contains the wildcard id.
func (b Block) HasWildcard() bool {
	for _, id := range b.Any {
		if id == Wildcard {
			return true
		}
	}
	return false
}

// Unconstrained reports whether Any places no constraint: it is empty or
// contains the wildcard.
func (b Block) Unconstrained() bool {
	return !b.IsLegacy() && (len(b.Any) == 0 || b.HasWildcard())
}

// Clone returns a deep copy of the query.
func (q StreamQuery) Clone() StreamQuery {
	if q == nil {
		return nil
	}
	out := make(StreamQuery, len(q))
	for i, b := range q {
		out[i] = b.Clone()
	}
	return out
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	c := Block{Legacy: b.Legacy}
	if b.Any != nil {
		c.Any = append([]string{}, b.Any...)
	}
	if b.Not != nil {
		c.Not = append([]string{}, b.Not...)
	}
	if b.And != nil {
		c.And = make([]StreamQuery, len(b.And))
		for i, q := range b.And {
			c.And[i] = q.Clone()
		}
	}
	return c
}

// blockJSON is the object wire form of a block. And entries are kept raw
// because each one may be an object (one block) or an array (a query).
type blockJSON struct {
	Any []string          `json:"any,omitempty"`
	Not []string          `json:"not,omitempty"`
	And []json.RawMessage `json:"and,omitempty"`
}

// UnmarshalJSON accepts an object block or a bare string id.
func (b *Block) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty stream query block")
	}

	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("stream query block: %w", err)
		}
		if id == "" {
			return fmt.Errorf("stream query block: empty stream id")
		}
		*b = Block{Legacy: id}
		return nil
	case '{':
		var raw blockJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("stream query block: %w", err)
		}
		out := Block{Any: raw.Any, Not: raw.Not}
		for i, entry := range raw.And {
			var nested StreamQuery
			if err := json.Unmarshal(entry, &nested); err != nil {
				return fmt.Errorf("stream query block: and[%d]: %w", i, err)
			}
			out.And = append(out.And, nested)
		}
		*b = out
		return nil
	default:
		return fmt.Errorf("stream query block: expected object or string, got %q", data[0])
	}
}

// MarshalJSON writes legacy blocks as strings and single-block nested
// queries as objects.
func (b Block) MarshalJSON() ([]byte, error) {
	if b.IsLegacy() {
		return json.Marshal(b.Legacy)
	}
	out := struct {
		Any []string `json:"any,omitempty"`
		Not []string `json:"not,omitempty"`
		And []any    `json:"and,omitempty"`
	}{Any: b.Any, Not: b.Not}
	for _, nested := range b.And {
		if len(nested) == 1 {
			out.And = append(out.And, nested[0])
		} else {
			out.And = append(out.And, nested)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an array of blocks, a single object block, or a bare
// string id.
func (q *StreamQuery) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = nil
		return nil
	}

	if data[0] != '[' {
		var b Block
		if err := b.UnmarshalJSON(data); err != nil {
			return err
		}
		*q = StreamQuery{b}
		return nil
	}

	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*q = blocks
	return nil
}

// Parse decodes a StreamQuery from its JSON wire form.
func Parse(data []byte) (StreamQuery, error) {
	var q StreamQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse stream query: %w", err)
	}
	return q, nil
}
