package streamquery

// IDs returns every stream id referenced by the block, nested blocks
// included, in document order. Duplicates are kept.
func (b Block) IDs() []string {
	if b.IsLegacy() {
		return []string{b.Legacy}
	}
	ids := make([]string, 0, len(b.Any)+len(b.Not))
	ids = append(ids, b.Any...)
	for _, nested := range b.And {
		ids = append(ids, nested.IDs()...)
	}
	ids = append(ids, b.Not...)
	return ids
}

// IDs returns every stream id referenced by the query.
func (q StreamQuery) IDs() []string {
	var ids []string
	for _, b := range q {
		ids = append(ids, b.IDs()...)
	}
	return ids
}

// Map returns a copy of the block with every id replaced by fn(id).
func (b Block) Map(fn func(string) string) Block {
	if b.IsLegacy() {
		return Block{Legacy: fn(b.Legacy)}
	}
	out := Block{}
	if b.Any != nil {
		out.Any = make([]string, len(b.Any))
		for i, id := range b.Any {
			out.Any[i] = fn(id)
		}
	}
	if b.Not != nil {
		out.Not = make([]string, len(b.Not))
		for i, id := range b.Not {
			out.Not[i] = fn(id)
		}
	}
	if b.And != nil {
		out.And = make([]StreamQuery, len(b.And))
		for i, nested := range b.And {
			out.And[i] = nested.Map(fn)
		}
	}
	return out
}

// Map returns a copy of the query with every id replaced by fn(id).
func (q StreamQuery) Map(fn func(string) string) StreamQuery {
	if q == nil {
		return nil
	}
	out := make(StreamQuery, len(q))
	for i, b := range q {
		out[i] = b.Map(fn)
	}
	return out
}
