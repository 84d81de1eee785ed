package store

import (
	"sort"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamquery"
)

// BuildTree assembles flat streams into a forest. Streams whose parent is
// not in the list become roots. Siblings are ordered by name, then id.
func BuildTree(flat []model.Stream) []model.Stream {
	byID := make(map[string]bool, len(flat))
	for _, s := range flat {
		byID[s.ID] = true
	}

	children := make(map[string][]model.Stream)
	var roots []model.Stream
	for _, s := range flat {
		s.Children = nil
		if s.ParentID == nil || !byID[*s.ParentID] {
			roots = append(roots, s)
			continue
		}
		children[*s.ParentID] = append(children[*s.ParentID], s)
	}

	var attach func(nodes []model.Stream) []model.Stream
	attach = func(nodes []model.Stream) []model.Stream {
		sortStreams(nodes)
		for i := range nodes {
			if kids, ok := children[nodes[i].ID]; ok {
				nodes[i].Children = attach(kids)
			}
		}
		return nodes
	}
	if roots == nil {
		return []model.Stream{}
	}
	return attach(roots)
}

func sortStreams(s []model.Stream) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID < s[j].ID
	})
}

// SelectStreams applies a streams.get query to a user's flat stream list and
// returns the selected part of the tree. It returns ErrNotFound when
// q.ParentID names a stream that does not exist.
func SelectStreams(flat []model.Stream, q streamquery.StreamsGetQuery) ([]model.Stream, error) {
	kept := make([]model.Stream, 0, len(flat))
	for _, s := range flat {
		if s.Deleted == nil {
			kept = append(kept, s)
		}
	}

	tree := BuildTree(kept)
	if q.State == "" || q.State == streamquery.StateDefault {
		tree = pruneTrashed(tree)
	}
	if q.AllRoots() {
		return tree, nil
	}
	parent, ok := model.FindStream(tree, q.ParentID)
	if !ok {
		return nil, ErrNotFound
	}
	if parent.Children == nil {
		return []model.Stream{}, nil
	}
	return parent.Children, nil
}

// pruneTrashed drops trashed streams together with their descendants.
func pruneTrashed(nodes []model.Stream) []model.Stream {
	out := make([]model.Stream, 0, len(nodes))
	for _, n := range nodes {
		if n.Trashed {
			continue
		}
		n.Children = pruneTrashed(n.Children)
		if len(n.Children) == 0 {
			n.Children = nil
		}
		out = append(out, n)
	}
	return out
}

// DeletedStreams returns the streams deleted at or after since.
func DeletedStreams(flat []model.Stream, since float64) []model.Stream {
	out := []model.Stream{}
	for _, s := range flat {
		if s.Deleted != nil && *s.Deleted >= since {
			out = append(out, s)
		}
	}
	return out
}
