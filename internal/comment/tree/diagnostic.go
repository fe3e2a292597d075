package tree

import (
	"errors"
	"fmt"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

var (
	ErrDuplicateID  = errors.New("duplicate comment id")
	ErrCycle        = errors.New("cyclic parent chain")
	ErrOrphan       = errors.New("parent missing from response")
	ErrMissingID    = errors.New("comment record without id")
	ErrMissingToken = errors.New("continuation record without token")

	ErrInvalidLens    = errors.New("lens does not resolve against tree")
	ErrNotComment     = errors.New("lens target is not a comment")
	ErrNotMarker      = errors.New("lens target is not a continuation marker")
	ErrMarkerNotFound = errors.New("continuation marker not found")
)

// Diagnostic reports a recovered data anomaly. Err is one of the sentinel
// errors above; Index is the position of the offending record in the input.
type Diagnostic struct {
	Err      error
	Index    int
	ID       model.ID
	ParentID model.ID
	Token    string
}

func (d Diagnostic) Error() string {
	switch {
	case d.Token != "":
		return fmt.Sprintf("record %d (token %q, parent %q): %v", d.Index, d.Token, d.ParentID, d.Err)
	case d.ParentID != "":
		return fmt.Sprintf("record %d (id %q, parent %q): %v", d.Index, d.ID, d.ParentID, d.Err)
	}
	return fmt.Sprintf("record %d (id %q): %v", d.Index, d.ID, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

type Diagnostics []Diagnostic

// Err joins all diagnostics, or returns nil when there are none.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	errs := make([]error, len(ds))
	for i, d := range ds {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// Count returns how many diagnostics wrap target.
func (ds Diagnostics) Count(target error) int {
	n := 0
	for _, d := range ds {
		if errors.Is(d, target) {
			n++
		}
	}
	return n
}
