package tree

import (
	"testing"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

func sample(t *testing.T) model.Tree {
	t.Helper()
	tr, diags := Build([]model.Record{rec("1", ""), rec("2", "1"), rec("3", "1"), rec("4", "2")})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	return tr
}

func TestLocateReturnsPath(t *testing.T) {
	tr := sample(t)

	l, ok := Locate(tr, "4")
	if !ok {
		t.Fatalf("expected to find 4")
	}
	if !equalInts(l.Path(), []int{0, 0, 0}) {
		t.Fatalf("expected path root[0]/reply[0]/reply[0], got %s", l)
	}
	c, ok := l.Comment(tr)
	if !ok || c.ID != "4" {
		t.Fatalf("lens resolved to %+v", c)
	}
	if l.String() != "root[0]/reply[0]/reply[0]" || l.Depth() != 2 {
		t.Fatalf("unexpected lens rendering %s depth %d", l, l.Depth())
	}
}

func TestLocateMissing(t *testing.T) {
	tr := sample(t)
	if l, ok := Locate(tr, "missing"); ok || !l.IsZero() {
		t.Fatalf("expected not found, got %s", l)
	}
	if _, ok := Locate(tr, ""); ok {
		t.Fatalf("empty id must not match")
	}
	if _, ok := Locate(nil, "1"); ok {
		t.Fatalf("nil tree must not match")
	}
}

func TestLocateFirstMatchInPreorder(t *testing.T) {
	// Pre-order reaches the x under b before the later sibling x.
	dup := &model.CommentNode{Comment: model.Comment{ID: "x", ParentID: model.ID("a").Ptr()}, Replies: []model.Node{}}
	deep := &model.CommentNode{Comment: model.Comment{ID: "x", ParentID: model.ID("b").Ptr()}, Replies: []model.Node{}}
	tr := model.Tree{
		model.CommentOf(&model.CommentNode{Comment: model.Comment{ID: "a"}, Replies: []model.Node{
			model.CommentOf(&model.CommentNode{Comment: model.Comment{ID: "b", ParentID: model.ID("a").Ptr()}, Replies: []model.Node{model.CommentOf(deep)}}),
			model.CommentOf(dup),
		}}),
	}
	l, ok := Locate(tr, "x")
	if !ok {
		t.Fatalf("expected match")
	}
	c, _ := l.Comment(tr)
	if c != deep {
		t.Fatalf("expected pre-order first match under b, got %s", l)
	}
}

func TestLocateSkipsMarkers(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("1", "tok"), rec("2", "1")})
	if _, ok := Locate(tr, "tok"); ok {
		t.Fatalf("marker token must not match a comment id")
	}
	l, ok := LocateMarker(tr, "tok")
	if !ok || !equalInts(l.Path(), []int{0, 1}) {
		t.Fatalf("expected marker at root[0]/reply[1], got %s", l)
	}
	l, ok = LocateMarkerUnder(tr, "1")
	if !ok || !equalInts(l.Path(), []int{0, 1}) {
		t.Fatalf("expected marker under 1 at root[0]/reply[1], got %s", l)
	}
	if _, ok := LocateMarkerUnder(tr, ""); ok {
		t.Fatalf("no root-level marker expected")
	}
	if _, ok := LocateMarker(tr, "other"); ok {
		t.Fatalf("unknown token must not match")
	}
}

func TestLocateIntoSubtreesAfterMarkers(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("", "page2"), rec("2", "1"), more("2", "deep"), rec("3", "2")})
	l, ok := Locate(tr, "3")
	if !ok || !equalInts(l.Path(), []int{0, 0, 0}) {
		t.Fatalf("expected 3 at root[0]/reply[0]/reply[0], got %s", l)
	}
}

func TestSize(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("1", "a"), rec("2", "1"), more("", "b")})
	c, m := Size(tr)
	if c != 2 || m != 2 {
		t.Fatalf("expected 2 comments and 2 markers, got %d %d", c, m)
	}
}

func equalInts(a, b []int) bool {
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
