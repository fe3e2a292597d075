package tree

import (
	"slices"
	"strconv"
	"strings"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

// Lens addresses one entry of a tree by its index path: the first index picks
// a root, every following index picks a reply of the previous node.
//
// A lens holds no reference to the tree it was made from. Reading through it
// resolves the path again; writing through it returns a new tree in which
// only the nodes on the path are copied.
type Lens struct {
	path []int
}

// NewLens builds a lens from an index path.
func NewLens(path ...int) Lens {
	return Lens{path: slices.Clone(path)}
}

func (l Lens) Path() []int { return slices.Clone(l.path) }

// Depth is 0 for a root entry.
func (l Lens) Depth() int { return len(l.path) - 1 }

func (l Lens) IsZero() bool { return len(l.path) == 0 }

// Parent returns the lens of the enclosing comment. Root entries have none.
func (l Lens) Parent() (Lens, bool) {
	if len(l.path) < 2 {
		return Lens{}, false
	}
	return Lens{path: slices.Clone(l.path[:len(l.path)-1])}, true
}

// Reply returns the lens of the i-th reply of the addressed comment.
func (l Lens) Reply(i int) Lens {
	p := make([]int, len(l.path), len(l.path)+1)
	copy(p, l.path)
	return Lens{path: append(p, i)}
}

func (l Lens) String() string {
	if len(l.path) == 0 {
		return "<none>"
	}
	var b strings.Builder
	b.WriteString("root[")
	b.WriteString(strconv.Itoa(l.path[0]))
	b.WriteByte(']')
	for _, i := range l.path[1:] {
		b.WriteString("/reply[")
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	return b.String()
}

// Get resolves the lens against t.
func (l Lens) Get(t model.Tree) (model.Node, bool) {
	if len(l.path) == 0 {
		return model.Node{}, false
	}
	level := []model.Node(t)
	for d, i := range l.path {
		if i < 0 || i >= len(level) {
			return model.Node{}, false
		}
		n := level[i]
		if d == len(l.path)-1 {
			return n, true
		}
		if n.Kind != model.KindComment || n.Comment == nil {
			return model.Node{}, false
		}
		level = n.Comment.Replies
	}
	return model.Node{}, false
}

// Comment resolves the lens and reports whether it addresses a comment.
func (l Lens) Comment(t model.Tree) (*model.CommentNode, bool) {
	n, ok := l.Get(t)
	if !ok || n.Kind != model.KindComment || n.Comment == nil {
		return nil, false
	}
	return n.Comment, true
}

// Ancestors lists the comments from the root down to the addressed comment.
func (l Lens) Ancestors(t model.Tree) ([]model.CommentPathItem, bool) {
	if len(l.path) == 0 {
		return nil, false
	}
	items := make([]model.CommentPathItem, 0, len(l.path))
	level := []model.Node(t)
	for _, i := range l.path {
		if i < 0 || i >= len(level) {
			return nil, false
		}
		n := level[i]
		if n.Kind != model.KindComment || n.Comment == nil {
			return nil, false
		}
		items = append(items, model.CommentPathItem{
			ID:       n.Comment.ID,
			ParentID: n.Comment.ParentID,
			Text:     n.Comment.Text,
			Index:    i,
		})
		level = n.Comment.Replies
	}
	return items, true
}

// Set returns a copy of t with the addressed entry replaced by n.
func (l Lens) Set(t model.Tree, n model.Node) (model.Tree, error) {
	return l.splice(t, func(model.Node) ([]model.Node, error) {
		return []model.Node{n}, nil
	})
}

// Update applies fn to the fields of the addressed comment. The comment keeps
// its id, parent and replies whatever fn returns.
func (l Lens) Update(t model.Tree, fn func(model.Comment) model.Comment) (model.Tree, error) {
	return l.splice(t, func(old model.Node) ([]model.Node, error) {
		if old.Kind != model.KindComment || old.Comment == nil {
			return nil, ErrNotComment
		}
		cp := *old.Comment
		next := fn(cp.Comment)
		next.ID = cp.ID
		next.ParentID = cp.ParentID
		cp.Comment = next
		return []model.Node{model.CommentOf(&cp)}, nil
	})
}

// Remove returns a copy of t without the addressed entry and its replies.
func (l Lens) Remove(t model.Tree) (model.Tree, error) {
	return l.splice(t, func(model.Node) ([]model.Node, error) {
		return nil, nil
	})
}

// InsertReply adds c as a leaf reply of the addressed comment. With front set
// it becomes the first reply; otherwise it goes after the existing comment
// replies and before any continuation markers.
func (l Lens) InsertReply(t model.Tree, c model.Comment, front bool) (model.Tree, error) {
	return l.splice(t, func(old model.Node) ([]model.Node, error) {
		if old.Kind != model.KindComment || old.Comment == nil {
			return nil, ErrNotComment
		}
		cp := *old.Comment
		c.ParentID = cp.ID.Ptr()
		cp.Replies = insertNode(cp.Replies, leaf(c), front)
		return []model.Node{model.CommentOf(&cp)}, nil
	})
}

// InsertRoot adds c as a root comment, following the placement rules of
// InsertReply.
func InsertRoot(t model.Tree, c model.Comment, front bool) model.Tree {
	c.ParentID = nil
	return insertNode(t, leaf(c), front)
}

func leaf(c model.Comment) model.Node {
	return model.CommentOf(&model.CommentNode{Comment: c, Replies: []model.Node{}})
}

func insertNode(level []model.Node, n model.Node, front bool) []model.Node {
	at := 0
	if !front {
		at = len(level)
		for at > 0 && level[at-1].Kind == model.KindMore {
			at--
		}
	}
	out := make([]model.Node, 0, len(level)+1)
	out = append(out, level[:at]...)
	out = append(out, n)
	return append(out, level[at:]...)
}

// splice replaces the addressed entry with whatever repl returns (possibly
// nothing) and rebuilds the path from that level up to the root. Levels and
// nodes off the path are reused as they are.
func (l Lens) splice(t model.Tree, repl func(model.Node) ([]model.Node, error)) (model.Tree, error) {
	if len(l.path) == 0 {
		return nil, ErrInvalidLens
	}

	ancestors := make([]*model.CommentNode, 0, len(l.path)-1)
	level := []model.Node(t)
	for d, i := range l.path {
		if i < 0 || i >= len(level) {
			return nil, ErrInvalidLens
		}
		if d == len(l.path)-1 {
			break
		}
		n := level[i]
		if n.Kind != model.KindComment || n.Comment == nil {
			return nil, ErrInvalidLens
		}
		ancestors = append(ancestors, n.Comment)
		level = n.Comment.Replies
	}

	last := l.path[len(l.path)-1]
	out, err := repl(level[last])
	if err != nil {
		return nil, err
	}

	next := make([]model.Node, 0, len(level)-1+len(out))
	next = append(next, level[:last]...)
	next = append(next, out...)
	next = append(next, level[last+1:]...)

	for d := len(ancestors) - 1; d >= 0; d-- {
		cp := *ancestors[d]
		cp.Replies = next

		up := []model.Node(t)
		if d > 0 {
			up = ancestors[d-1].Replies
		}
		copied := make([]model.Node, len(up))
		copy(copied, up)
		copied[l.path[d]] = model.CommentOf(&cp)
		next = copied
	}
	return model.Tree(next), nil
}
