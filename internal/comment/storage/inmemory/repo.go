package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

type Repo struct {
	mu sync.RWMutex

	nextID   int64
	byID     map[model.ID]model.Comment
	children map[model.ID][]model.ID
	threads  map[string][]model.ID

	now func() time.Time
}

func New() *Repo {
	return &Repo{
		nextID:   1,
		byID:     make(map[model.ID]model.Comment),
		children: make(map[model.ID][]model.ID),
		threads:  make(map[string][]model.ID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the creation timestamp source.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) Get(ctx context.Context, id model.ID) (model.Comment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return model.Comment{}, storage.ErrNotFound
	}
	return c, nil
}

func (r *Repo) Create(ctx context.Context, in model.Comment) (model.Comment, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c := model.Comment{
		ID:        model.IDFromInt64(r.nextID),
		ThreadID:  in.ThreadID,
		Text:      in.Text,
		CreatedAt: r.now(),
	}
	if !in.IsRoot() {
		parent, ok := r.byID[in.Parent()]
		if !ok {
			return model.Comment{}, storage.ErrNotFound
		}
		c.ParentID = parent.ID.Ptr()
		c.ThreadID = parent.ThreadID
	}
	r.nextID++

	r.byID[c.ID] = c
	r.children[c.Parent()] = append(r.children[c.Parent()], c.ID)
	r.threads[c.ThreadID] = append(r.threads[c.ThreadID], c.ID)

	return c, nil
}

func (r *Repo) FetchThread(ctx context.Context, threadID string, q storage.FetchQuery) ([]model.Record, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return storage.Paginate(r.threadLocked(threadID), threadID, "", nil, q), nil
}

func (r *Repo) FetchMore(ctx context.Context, token string) ([]model.Record, error) {
	_ = ctx

	cur, err := storage.DecodeToken(token)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var comments []model.Comment
	if cur.Parent == "" {
		comments = r.threadLocked(cur.ThreadID)
	} else {
		comments = r.subtreeLocked(cur.Parent)
	}
	return storage.Paginate(comments, cur.ThreadID, cur.Parent, cur.After, cur.Query()), nil
}

func (r *Repo) threadLocked(threadID string) []model.Comment {
	ids := r.threads[threadID]
	out := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// subtreeLocked returns the descendants of id, without id itself.
func (r *Repo) subtreeLocked(id model.ID) []model.Comment {
	out := make([]model.Comment, 0, 16)
	stack := append([]model.ID(nil), r.children[id]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, r.byID[n])
		stack = append(stack, r.children[n]...)
	}
	return out
}

func (r *Repo) Vote(ctx context.Context, id model.ID, delta int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	c.Score += delta
	r.byID[id] = c
	return c.Score, nil
}

func (r *Repo) SetFlags(ctx context.Context, id model.ID, flags storage.Flags) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.Removed = c.Removed || flags.Removed
	c.Deleted = c.Deleted || flags.Deleted
	r.byID[id] = c
	return nil
}

func (r *Repo) DeleteSubtree(ctx context.Context, id model.ID) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return 0, nil
	}

	toDelete := make([]model.ID, 0, 16)
	stack := []model.ID{id}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		toDelete = append(toDelete, n)
		stack = append(stack, r.children[n]...)
	}

	for _, cid := range toDelete {
		c := r.byID[cid]
		r.children[c.Parent()] = removeID(r.children[c.Parent()], cid)
		r.threads[c.ThreadID] = removeID(r.threads[c.ThreadID], cid)

		delete(r.byID, cid)
		delete(r.children, cid)
	}

	return len(toDelete), nil
}

func (r *Repo) Search(ctx context.Context, q string, page, limit int, sortMode model.Sort) (model.SearchPage, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(q))
	items := make([]model.SearchItem, 0, limit)
	for _, c := range r.byID {
		text := strings.ToLower(c.Text)
		hits := 0
		for _, t := range terms {
			hits += strings.Count(text, t)
		}
		if hits == 0 {
			continue
		}
		items = append(items, model.SearchItem{
			ID:        c.ID,
			ThreadID:  c.ThreadID,
			ParentID:  c.ParentID,
			Snippet:   c.Text,
			Rank:      float64(hits) / float64(len(strings.Fields(text))),
			CreatedAt: c.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch sortMode {
		case model.SortCreatedAtAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case model.SortCreatedAtDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if a.Rank != b.Rank {
				return a.Rank > b.Rank
			}
		}
		return a.ID < b.ID
	})

	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return model.SearchPage{
		Items: items[start:end],
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

func removeID(ids []model.ID, target model.ID) []model.ID {
	out := make([]model.ID, 0, len(ids))
	for _, v := range ids {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
