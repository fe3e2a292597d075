package tree

import (
	"iter"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

// Flatten yields the entries of t in the order Locate searches them. Comments
// come out as copies with empty replies; their parent ids are kept, so the
// nesting can be rebuilt with Build. Markers come out unchanged. The sequence
// can be ranged over any number of times.
func Flatten(t model.Tree) iter.Seq[model.Node] {
	return func(yield func(model.Node) bool) {
		for _, n := range preorder(t) {
			if !yield(detach(n)) {
				return
			}
		}
	}
}

// FlattenSlice collects Flatten(t).
func FlattenSlice(t model.Tree) []model.Node {
	out := make([]model.Node, 0, len(t))
	for n := range Flatten(t) {
		out = append(out, n)
	}
	return out
}

// Records converts flattened entries back into records Build accepts.
func Records(nodes []model.Node) []model.Record {
	out := make([]model.Record, 0, len(nodes))
	for _, n := range nodes {
		switch n.Kind {
		case model.KindComment:
			if n.Comment != nil {
				out = append(out, model.CommentRecord(n.Comment.Comment))
			}
		case model.KindMore:
			if n.More != nil {
				out = append(out, model.Record{Kind: model.KindMore, Comment: model.Comment{ParentID: n.More.ParentID}, Token: n.More.Token, Count: n.More.Count})
			}
		}
	}
	return out
}

func detach(n model.Node) model.Node {
	if n.Kind != model.KindComment || n.Comment == nil {
		return n
	}
	cp := *n.Comment
	cp.Replies = []model.Node{}
	return model.CommentOf(&cp)
}
