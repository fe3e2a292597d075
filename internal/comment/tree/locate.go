package tree

import (
	"iter"
	"slices"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

type frame struct {
	level []model.Node
	next  int
}

// preorder walks t depth-first, roots left to right, each comment before its
// replies. The path slice is reused between steps; callers that keep it must
// clone it.
func preorder(t model.Tree) iter.Seq2[[]int, model.Node] {
	return func(yield func([]int, model.Node) bool) {
		stack := make([]frame, 1, 16)
		stack[0] = frame{level: t}
		path := make([]int, 0, 16)
		for len(stack) > 0 {
			d := len(stack) - 1
			top := &stack[d]
			if top.next >= len(top.level) {
				stack = stack[:d]
				continue
			}
			i := top.next
			top.next++
			n := top.level[i]
			path = append(path[:d], i)
			if !yield(path, n) {
				return
			}
			if n.Kind == model.KindComment && n.Comment != nil && len(n.Comment.Replies) > 0 {
				stack = append(stack, frame{level: n.Comment.Replies})
			}
		}
	}
}

// Locate finds the first comment with the given id in pre-order. The boolean
// is false when no comment has that id; continuation markers never match.
func Locate(t model.Tree, id model.ID) (Lens, bool) {
	if id == "" {
		return Lens{}, false
	}
	for path, n := range preorder(t) {
		if n.Kind == model.KindComment && n.Comment != nil && n.Comment.ID == id {
			return Lens{path: slices.Clone(path)}, true
		}
	}
	return Lens{}, false
}

// LocateMarker finds the continuation marker carrying token.
func LocateMarker(t model.Tree, token string) (Lens, bool) {
	if token == "" {
		return Lens{}, false
	}
	for path, n := range preorder(t) {
		if n.Kind == model.KindMore && n.More != nil && n.More.Token == token {
			return Lens{path: slices.Clone(path)}, true
		}
	}
	return Lens{}, false
}

// LocateMarkerUnder finds the last continuation marker among the replies of
// parent, or among the roots when parent is empty.
func LocateMarkerUnder(t model.Tree, parent model.ID) (Lens, bool) {
	level := []model.Node(t)
	var base Lens
	if parent != "" {
		l, ok := Locate(t, parent)
		if !ok {
			return Lens{}, false
		}
		c, _ := l.Comment(t)
		level = c.Replies
		base = l
	}
	for i := len(level) - 1; i >= 0; i-- {
		if level[i].Kind != model.KindMore {
			continue
		}
		if base.IsZero() {
			return NewLens(i), true
		}
		return base.Reply(i), true
	}
	return Lens{}, false
}

// Size counts the comments and continuation markers reachable from t.
func Size(t model.Tree) (comments, markers int) {
	for _, n := range preorder(t) {
		switch n.Kind {
		case model.KindComment:
			comments++
		case model.KindMore:
			markers++
		}
	}
	return comments, markers
}
