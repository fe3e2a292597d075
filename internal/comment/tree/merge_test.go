package tree

import (
	"errors"
	"testing"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

func TestMergeTokenSplicesReplies(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), rec("2", "1"), more("1", "t"), rec("9", "")})

	next, diags, err := MergeToken(tr, "t", []model.Record{rec("3", "1"), rec("5", "3"), rec("4", "1"), more("1", "t2")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("replies to the marker's parent are not orphans: %v", diags)
	}
	if got := shape(next); got != "1(2 3(5) 4 more:t2) 9" {
		t.Fatalf("unexpected tree %q", got)
	}
	if next[1].Comment != tr[1].Comment || next[0].Comment.Replies[0].Comment != tr[0].Comment.Replies[0].Comment {
		t.Fatalf("untouched nodes must be shared")
	}
	if shape(tr) != "1(2 more:t) 9" {
		t.Fatalf("original tree was modified")
	}
}

func TestMergeRootMarker(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("", "page2")})
	next, _, err := MergeUnder(tr, "", []model.Record{rec("2", ""), rec("3", "2")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := shape(next); got != "1 2(3)" {
		t.Fatalf("unexpected tree %q", got)
	}
}

func TestMergeReportsForeignRecords(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("1", "t")})
	next, diags, err := MergeUnder(tr, "1", []model.Record{rec("2", "1"), rec("7", "elsewhere")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if diags.Count(ErrOrphan) != 1 {
		t.Fatalf("expected orphan diagnostic, got %v", diags)
	}
	if got := shape(next); got != "1(2 7)" {
		t.Fatalf("unexpected tree %q", got)
	}
}

func TestMergeDropsCommentsAlreadyInTree(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), rec("2", "1"), rec("4", "2"), more("1", "t")})

	next, diags, err := MergeToken(tr, "t", []model.Record{rec("2", "1"), rec("4", "2"), rec("5", "2"), rec("3", "1")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := shape(next); got != "1(2(4) 3)" {
		t.Fatalf("unexpected tree %q", got)
	}
	if diags.Count(ErrDuplicateID) != 1 || diags[0].ID != "2" || diags[0].Index != 0 {
		t.Fatalf("expected one duplicate diagnostic for 2, got %v", diags)
	}
	if diags.Count(ErrOrphan) != 1 || diags[1].ID != "5" || diags[1].Index != 2 {
		t.Fatalf("the new reply under 2 must be reported, got %v", diags)
	}
	if next[0].Comment.Replies[0].Comment != tr[0].Comment.Replies[0].Comment {
		t.Fatalf("the comment already in the tree must be kept as is")
	}
}

func TestMergeKeepsRecordIndices(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("1", "t")})

	_, diags, err := MergeToken(tr, "t", []model.Record{rec("1", ""), rec("2", ""), rec("7", "elsewhere")})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if diags.Count(ErrDuplicateID) != 1 || diags.Count(ErrOrphan) != 1 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	for _, d := range diags {
		if errors.Is(d, ErrOrphan) && d.Index != 2 {
			t.Fatalf("orphan must be reported at its input index, got %d", d.Index)
		}
	}
}

func TestMergeEmptyContinuationDropsMarker(t *testing.T) {
	tr, _ := Build([]model.Record{rec("1", ""), more("1", "t")})
	next, _, err := MergeToken(tr, "t", nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := shape(next); got != "1" {
		t.Fatalf("unexpected tree %q", got)
	}
}

func TestMergeStaleToken(t *testing.T) {
	tr := sample(t)
	next, _, err := MergeToken(tr, "gone", []model.Record{rec("5", "1")})
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected ErrMarkerNotFound, got %v", err)
	}
	if shape(next) != shape(tr) {
		t.Fatalf("tree must be unchanged on error")
	}
	if _, _, err := Merge(tr, NewLens(0), nil); !errors.Is(err, ErrNotMarker) {
		t.Fatalf("expected ErrNotMarker, got %v", err)
	}
	if _, _, err := Merge(tr, NewLens(4), nil); !errors.Is(err, ErrInvalidLens) {
		t.Fatalf("expected ErrInvalidLens, got %v", err)
	}
}
