package storage

import (
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	DefaultDepth = 6
	MaxDepth     = 32
)

// FetchQuery shapes a thread response: replies per parent per page, and the
// number of levels returned before deeper replies are left behind a marker.
type FetchQuery struct {
	Sort     model.Sort
	Limit    int
	MaxDepth int
}

// WithDefaults fills zero fields.
func (q FetchQuery) WithDefaults() FetchQuery {
	if q.Sort == "" {
		q.Sort = model.SortCreatedAtDesc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.MaxDepth <= 0 {
		q.MaxDepth = DefaultDepth
	}
	return q
}

// SortKey is the position of a comment among its siblings. The id makes it
// unique, so a page can resume after a key even when the comment it was
// taken from is gone.
type SortKey struct {
	CreatedAt time.Time `json:"t"`
	Score     int       `json:"sc,omitempty"`
	ID        model.ID  `json:"i"`
}

func KeyOf(c model.Comment) SortKey {
	return SortKey{CreatedAt: c.CreatedAt, Score: c.Score, ID: c.ID}
}

// Cursor is the decoded form of a continuation token. After is the key of the
// last sibling already handed out; nil starts at the first reply.
type Cursor struct {
	ThreadID string     `json:"th"`
	Parent   model.ID   `json:"p,omitempty"`
	After    *SortKey   `json:"a,omitempty"`
	Sort     model.Sort `json:"s"`
	Limit    int        `json:"l"`
	Depth    int        `json:"d"`
}

func (c Cursor) Query() FetchQuery {
	return FetchQuery{Sort: c.Sort, Limit: c.Limit, MaxDepth: c.Depth}
}

func EncodeToken(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeToken(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.ThreadID == "" || (c.After != nil && c.After.ID == "") || c.Limit <= 0 || c.Limit > MaxLimit || c.Depth <= 0 || c.Depth > MaxDepth || !c.Sort.ThreadSort() {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

type pageFrame struct {
	parent model.ID
	items  []model.Comment
	next   int
	end    int
	rest   int
	depth  int
}

// Paginate lays out the replies of parent ("" for the thread's roots) as a
// flat response, starting after the key after among parent's direct replies
// (nil for the first reply). Each parent contributes at most q.Limit replies
// followed by a continuation record for the remainder; replies deeper than
// q.MaxDepth are left behind a continuation record on their parent. Comments
// are emitted parent first.
func Paginate(comments []model.Comment, threadID string, parent model.ID, after *SortKey, q FetchQuery) []model.Record {
	q = q.WithDefaults()

	children := make(map[model.ID][]model.Comment, len(comments)/2+1)
	for _, c := range comments {
		children[c.Parent()] = append(children[c.Parent()], c)
	}
	for _, list := range children {
		sortComments(list, q.Sort)
	}

	token := func(p model.ID, after *SortKey) string {
		return EncodeToken(Cursor{ThreadID: threadID, Parent: p, After: after, Sort: q.Sort, Limit: q.Limit, Depth: q.MaxDepth})
	}
	frameFor := func(p model.ID, after *SortKey, depth int) pageFrame {
		all := children[p]
		start := 0
		if after != nil {
			start = sort.Search(len(all), func(i int) bool { return before(*after, KeyOf(all[i]), q.Sort) })
		}
		end := min(start+q.Limit, len(all))
		return pageFrame{parent: p, items: all, next: start, end: end, rest: len(all) - end, depth: depth}
	}

	out := make([]model.Record, 0, min(len(comments), q.Limit*4))
	stack := []pageFrame{frameFor(parent, after, 1)}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= top.end {
			if top.rest > 0 {
				last := KeyOf(top.items[top.end-1])
				out = append(out, model.MoreRecord(threadID, top.parent, token(top.parent, &last), top.rest))
			}
			stack = stack[:len(stack)-1]
			continue
		}
		c := top.items[top.next]
		top.next++
		depth := top.depth
		out = append(out, model.CommentRecord(c))

		kids := children[c.ID]
		if len(kids) == 0 {
			continue
		}
		if depth >= q.MaxDepth {
			out = append(out, model.MoreRecord(threadID, c.ID, token(c.ID, nil), len(kids)))
			continue
		}
		stack = append(stack, frameFor(c.ID, nil, depth+1))
	}
	return out
}

func sortComments(list []model.Comment, mode model.Sort) {
	sort.Slice(list, func(i, j int) bool {
		return before(KeyOf(list[i]), KeyOf(list[j]), mode)
	})
}

// before reports whether a sorts ahead of b under mode. Keys with distinct
// ids are never equal.
func before(a, b SortKey, mode model.Sort) bool {
	switch mode {
	case model.SortScoreDesc:
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	case model.SortCreatedAtAsc:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	}
	return lessID(a.ID, b.ID, mode == model.SortCreatedAtAsc)
}

func lessID(a, b model.ID, asc bool) bool {
	x, okA := a.Int64()
	y, okB := b.Int64()
	if okA && okB {
		if asc {
			return x < y
		}
		return x > y
	}
	if asc {
		return a < b
	}
	return a > b
}
