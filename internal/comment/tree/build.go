// Package tree turns flat comment responses into nested reply trees, finds
// comments in them, and produces updated trees that share every untouched
// subtree with the tree they were derived from.
//
// Trees are never modified in place. Every function here is pure and safe to
// call from multiple goroutines on the same tree value.
package tree

import (
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

const (
	unvisited uint8 = iota
	onPath
	done
)

// Build nests records into a tree. Roots and replies keep the order they have
// in records. Anomalies are recovered and reported, never fatal:
//
//   - a duplicate id keeps the last record with that id, at its position
//   - a parent id missing from records promotes the record to a root
//   - a cycle of parent ids is cut at the member that comes first in records
//   - a comment without id or a marker without token is dropped
//
// Continuation markers are placed after all comment replies of their parent.
func Build(records []model.Record) (model.Tree, Diagnostics) {
	return build(records, "", false)
}

// build is Build with an optional anchor: when anchored, records whose parent
// is anchor land on the top level without being reported as orphans.
func build(records []model.Record, anchor model.ID, anchored bool) (model.Tree, Diagnostics) {
	var diags Diagnostics

	index := make(map[model.ID]int, len(records))
	for i, r := range records {
		if r.Kind == model.KindMore {
			if r.Token == "" {
				diags = append(diags, Diagnostic{Err: ErrMissingToken, Index: i, ParentID: r.Parent()})
			}
			continue
		}
		if r.ID == "" {
			diags = append(diags, Diagnostic{Err: ErrMissingID, Index: i, ParentID: r.Parent()})
			continue
		}
		if prev, ok := index[r.ID]; ok {
			diags = append(diags, Diagnostic{Err: ErrDuplicateID, Index: prev, ID: r.ID})
		}
		index[r.ID] = i
	}

	live := func(i int) bool {
		r := records[i]
		if r.Kind == model.KindMore || r.ID == "" {
			return false
		}
		return index[r.ID] == i
	}

	topLevel := func(p model.ID) bool {
		return p == "" || (anchored && p == anchor)
	}

	parent := make([]int, len(records))
	for i, r := range records {
		parent[i] = -1
		if !live(i) {
			continue
		}
		p := r.Parent()
		if topLevel(p) {
			continue
		}
		j, ok := index[p]
		if !ok {
			diags = append(diags, Diagnostic{Err: ErrOrphan, Index: i, ID: r.ID, ParentID: p})
			continue
		}
		parent[i] = j
	}

	// Follow parent links from every record once. A walk that runs into a
	// record still on the current path has found a cycle.
	state := make([]uint8, len(records))
	path := make([]int, 0, 16)
	for i := range records {
		if !live(i) || state[i] != unvisited {
			continue
		}
		path = path[:0]
		j := i
		for j >= 0 && state[j] == unvisited {
			state[j] = onPath
			path = append(path, j)
			j = parent[j]
		}
		if j >= 0 && state[j] == onPath {
			start := len(path) - 1
			for path[start] != j {
				start--
			}
			first := path[start]
			for _, k := range path[start:] {
				first = min(first, k)
			}
			diags = append(diags, Diagnostic{Err: ErrCycle, Index: first, ID: records[first].ID, ParentID: records[first].Parent()})
			parent[first] = -1
		}
		for _, k := range path {
			state[k] = done
		}
	}

	nodes := make([]*model.CommentNode, len(records))
	for i, r := range records {
		if !live(i) {
			continue
		}
		c := r.Comment
		c.ParentID = cloneID(c.ParentID)
		nodes[i] = &model.CommentNode{Comment: c, Replies: []model.Node{}}
	}

	roots := make(model.Tree, 0, len(records)/4+1)
	for i := range records {
		if nodes[i] == nil {
			continue
		}
		n := model.CommentOf(nodes[i])
		if p := parent[i]; p >= 0 {
			nodes[p].Replies = append(nodes[p].Replies, n)
		} else {
			roots = append(roots, n)
		}
	}

	var rootMarkers []model.Node
	for i, r := range records {
		if r.Kind != model.KindMore || r.Token == "" {
			continue
		}
		m := r.Marker()
		m.ParentID = cloneID(m.ParentID)
		n := model.MoreOf(&m)

		p := r.Parent()
		if topLevel(p) {
			rootMarkers = append(rootMarkers, n)
			continue
		}
		j, ok := index[p]
		if !ok {
			diags = append(diags, Diagnostic{Err: ErrOrphan, Index: i, ParentID: p, Token: r.Token})
			rootMarkers = append(rootMarkers, n)
			continue
		}
		nodes[j].Replies = append(nodes[j].Replies, n)
	}

	return append(roots, rootMarkers...), diags
}

func cloneID(id *model.ID) *model.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
