package tree

import (
	"strings"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

func rec(id, parent string) model.Record {
	c := model.Comment{ID: model.ID(id), Text: "text " + id}
	if parent != "" {
		c.ParentID = model.ID(parent).Ptr()
	}
	return model.CommentRecord(c)
}

func more(parent, token string) model.Record {
	return model.MoreRecord("", model.ID(parent), token, 1)
}

func ids(level []model.Node) []string {
	out := make([]string, 0, len(level))
	for _, n := range level {
		switch n.Kind {
		case model.KindComment:
			out = append(out, string(n.Comment.ID))
		case model.KindMore:
			out = append(out, "more:"+n.More.Token)
		}
	}
	return out
}

// shape renders t as nested parentheses, e.g. "1(2(4) 3) more:t".
func shape(t model.Tree) string {
	var b strings.Builder
	writeShape(&b, t)
	return b.String()
}

func writeShape(b *strings.Builder, level []model.Node) {
	for i, n := range level {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch n.Kind {
		case model.KindComment:
			b.WriteString(string(n.Comment.ID))
			if len(n.Comment.Replies) > 0 {
				b.WriteByte('(')
				writeShape(b, n.Comment.Replies)
				b.WriteByte(')')
			}
		case model.KindMore:
			b.WriteString("more:" + n.More.Token)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
