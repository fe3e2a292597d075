package tree

import (
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

// Merge replaces the continuation marker addressed by marker with the tree
// built from records. Records replying to the marker's parent take the
// marker's place, in order; the rest of t is shared with the result.
// A record whose id is already a comment in t is dropped with an
// ErrDuplicateID diagnostic. Records nested under it are dropped too; those
// not in t are reported as orphans.
//
// On error t is returned unchanged.
func Merge(t model.Tree, marker Lens, records []model.Record) (model.Tree, Diagnostics, error) {
	n, ok := marker.Get(t)
	if !ok {
		return t, nil, ErrInvalidLens
	}
	if n.Kind != model.KindMore || n.More == nil {
		return t, nil, ErrNotMarker
	}

	fresh, pos, diags := dedupe(t, records)
	sub, built := build(fresh, n.More.Parent(), true)
	for _, d := range built {
		d.Index = pos[d.Index]
		diags = append(diags, d)
	}
	out, err := marker.splice(t, func(model.Node) ([]model.Node, error) {
		return sub, nil
	})
	if err != nil {
		return t, diags, err
	}
	return out, diags, nil
}

// MergeToken merges records in place of the marker carrying token.
func MergeToken(t model.Tree, token string, records []model.Record) (model.Tree, Diagnostics, error) {
	l, ok := LocateMarker(t, token)
	if !ok {
		return t, nil, ErrMarkerNotFound
	}
	return Merge(t, l, records)
}

// MergeUnder merges records in place of the last marker under parent ("" for
// the root level).
func MergeUnder(t model.Tree, parent model.ID, records []model.Record) (model.Tree, Diagnostics, error) {
	l, ok := LocateMarkerUnder(t, parent)
	if !ok {
		return t, nil, ErrMarkerNotFound
	}
	return Merge(t, l, records)
}

// dedupe filters out comment records already present in t, along with the
// records whose parent was filtered. pos maps each kept record back to its
// index in records.
func dedupe(t model.Tree, records []model.Record) (kept []model.Record, pos []int, diags Diagnostics) {
	seen := make(map[model.ID]struct{})
	for _, n := range preorder(t) {
		if n.Kind == model.KindComment && n.Comment != nil {
			seen[n.Comment.ID] = struct{}{}
		}
	}

	dropped := make(map[model.ID]struct{})
	kept = make([]model.Record, 0, len(records))
	pos = make([]int, 0, len(records))
	for i, r := range records {
		if p := r.Parent(); p != "" {
			if _, ok := dropped[p]; ok {
				if r.Kind == model.KindComment && r.ID != "" {
					dropped[r.ID] = struct{}{}
					if _, ok := seen[r.ID]; ok {
						continue
					}
				}
				diags = append(diags, Diagnostic{Err: ErrOrphan, Index: i, ID: r.ID, ParentID: p, Token: r.Token})
				continue
			}
		}
		if r.Kind == model.KindComment && r.ID != "" {
			if _, ok := seen[r.ID]; ok {
				diags = append(diags, Diagnostic{Err: ErrDuplicateID, Index: i, ID: r.ID, ParentID: r.Parent()})
				dropped[r.ID] = struct{}{}
				continue
			}
		}
		kept = append(kept, r)
		pos = append(pos, i)
	}
	return kept, pos, diags
}
