package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/tree"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	maxTextLen = 2000

	// A load that keeps racing with writes to its thread gives up caching
	// after this many fetches.
	maxLoadAttempts = 3
)

// Comment text is stored as plain text; markup is stripped on the way in.
var textPolicy = bluemonday.StrictPolicy()

type thread struct {
	tree  model.Tree
	query storage.FetchQuery
}

type commentService struct {
	repo     storage.Repository
	log      *zap.Logger
	defaults storage.FetchQuery

	mu      sync.Mutex
	threads map[string]thread
	// gens counts writes per thread, cached or not. A load stores its tree
	// only if no write landed while it was fetching.
	gens map[string]uint64
}

type Option func(*commentService)

// WithDefaultQuery sets the response shape used when a thread is loaded
// without an explicit query. Limits above the storage maximums are clamped.
func WithDefaultQuery(q storage.FetchQuery) Option {
	return func(s *commentService) {
		if !q.Sort.ThreadSort() {
			q.Sort = ""
		}
		q.Limit = min(q.Limit, storage.MaxLimit)
		q.MaxDepth = min(q.MaxDepth, storage.MaxDepth)
		s.defaults = q
	}
}

func New(repo storage.Repository, log *zap.Logger, opts ...Option) CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &commentService{
		repo:    repo,
		log:     log,
		threads: make(map[string]thread),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.defaults = s.defaults.WithDefaults()
	return s
}

func (s *commentService) LoadThread(ctx context.Context, threadID string, q storage.FetchQuery) (model.Tree, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidInput
	}
	if q == (storage.FetchQuery{}) {
		q = s.queryFor(threadID)
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	q = s.fill(q)

	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		gen := s.gens[threadID]
		s.mu.Unlock()

		records, err := s.repo.FetchThread(ctx, threadID, q)
		if err != nil {
			return nil, mapStorageErr(err)
		}

		s.mu.Lock()
		stale := s.gens[threadID] != gen
		if !stale {
			t, diags := tree.Build(records)
			s.threads[threadID] = thread{tree: t, query: q}
			s.mu.Unlock()

			s.report(threadID, diags)
			comments, markers := tree.Size(t)
			s.log.Debug("thread loaded",
				zap.String("thread_id", threadID),
				zap.Int("records", len(records)),
				zap.Int("comments", comments),
				zap.Int("markers", markers),
			)
			return t, nil
		}
		s.mu.Unlock()

		if attempt == maxLoadAttempts {
			t, diags := tree.Build(records)
			s.report(threadID, diags)
			s.log.Debug("thread load raced with writes, not cached",
				zap.String("thread_id", threadID),
				zap.Int("attempts", attempt),
			)
			return t, nil
		}
	}
}

func (s *commentService) Thread(ctx context.Context, threadID string) (model.Tree, error) {
	if th, ok := s.cached(threadID); ok {
		return th.tree, nil
	}
	return s.LoadThread(ctx, threadID, storage.FetchQuery{})
}

func (s *commentService) Flat(ctx context.Context, threadID string) ([]model.Node, error) {
	t, err := s.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return tree.FlattenSlice(t), nil
}

func (s *commentService) ExpandMore(ctx context.Context, threadID, token string) (model.Tree, error) {
	cur, err := storage.DecodeToken(token)
	if err != nil || cur.ThreadID != threadID {
		return nil, ErrInvalidInput
	}
	t, err := s.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.LocateMarker(t, token); !ok {
		return nil, ErrNotFound
	}

	records, err := s.repo.FetchMore(ctx, token)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	th := s.threads[threadID]
	next, diags, err := tree.MergeToken(th.tree, token, records)
	if err != nil {
		// Another expand or a reload got there first.
		return nil, ErrNotFound
	}
	s.report(threadID, diags)
	th.tree = next
	s.threads[threadID] = th
	return next, nil
}

func (s *commentService) Create(ctx context.Context, threadID string, parentID model.ID, text string) (model.Comment, error) {
	text = strings.TrimSpace(textPolicy.Sanitize(text))
	if err := validateText(text); err != nil {
		return model.Comment{}, err
	}
	if strings.TrimSpace(threadID) == "" {
		return model.Comment{}, ErrInvalidInput
	}

	in := model.Comment{ThreadID: threadID, Text: text}
	if parentID != "" {
		parent, err := s.repo.Get(ctx, parentID)
		if err != nil {
			return model.Comment{}, mapStorageErr(err)
		}
		if parent.ThreadID != threadID {
			return model.Comment{}, ErrNotFound
		}
		in.ParentID = parentID.Ptr()
	}

	c, err := s.repo.Create(ctx, in)
	if err != nil {
		return model.Comment{}, mapStorageErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[threadID]++
	th, ok := s.threads[threadID]
	if !ok {
		return c, nil
	}
	front := th.query.Sort == model.SortCreatedAtDesc
	if c.IsRoot() {
		th.tree = tree.InsertRoot(th.tree, c, front)
	} else if l, found := tree.Locate(th.tree, c.Parent()); found {
		next, err := l.InsertReply(th.tree, c, front)
		if err != nil {
			s.log.Warn("insert reply", zap.String("thread_id", threadID), zap.String("comment_id", c.ID.String()), zap.Error(err))
			return c, nil
		}
		th.tree = next
	}
	// A parent that is not materialized yet will show the reply once its
	// continuation is expanded.
	s.threads[threadID] = th
	return c, nil
}

func (s *commentService) Vote(ctx context.Context, threadID string, id model.ID, delta int) (model.Comment, error) {
	if delta != 1 && delta != -1 {
		return model.Comment{}, ErrInvalidInput
	}
	if err := s.checkMember(ctx, threadID, id); err != nil {
		return model.Comment{}, err
	}
	score, err := s.repo.Vote(ctx, id, delta)
	if err != nil {
		return model.Comment{}, mapStorageErr(err)
	}
	return s.apply(ctx, threadID, id, func(c model.Comment) model.Comment {
		c.Score = score
		return c
	})
}

func (s *commentService) Remove(ctx context.Context, threadID string, id model.ID) (model.Comment, error) {
	return s.flag(ctx, threadID, id, storage.Flags{Removed: true})
}

func (s *commentService) Delete(ctx context.Context, threadID string, id model.ID) (model.Comment, error) {
	return s.flag(ctx, threadID, id, storage.Flags{Deleted: true})
}

func (s *commentService) flag(ctx context.Context, threadID string, id model.ID, flags storage.Flags) (model.Comment, error) {
	if err := s.checkMember(ctx, threadID, id); err != nil {
		return model.Comment{}, err
	}
	if err := s.repo.SetFlags(ctx, id, flags); err != nil {
		return model.Comment{}, mapStorageErr(err)
	}
	return s.apply(ctx, threadID, id, func(c model.Comment) model.Comment {
		c.Removed = c.Removed || flags.Removed
		c.Deleted = c.Deleted || flags.Deleted
		return c
	})
}

// apply edits one comment of a cached thread through its lens. Comments that
// are not materialized in the cached tree are read back from the repository.
func (s *commentService) apply(ctx context.Context, threadID string, id model.ID, fn func(model.Comment) model.Comment) (model.Comment, error) {
	s.mu.Lock()
	s.gens[threadID]++
	th, ok := s.threads[threadID]
	if ok {
		if l, found := tree.Locate(th.tree, id); found {
			next, err := l.Update(th.tree, fn)
			if err == nil {
				th.tree = next
				s.threads[threadID] = th
				c, _ := l.Comment(next)
				s.mu.Unlock()
				return c.Comment, nil
			}
			s.log.Warn("lens update", zap.String("thread_id", threadID), zap.String("comment_id", id.String()), zap.Error(err))
		}
	}
	s.mu.Unlock()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Comment{}, mapStorageErr(err)
	}
	return c, nil
}

func (s *commentService) checkMember(ctx context.Context, threadID string, id model.ID) error {
	if strings.TrimSpace(threadID) == "" || id == "" {
		return ErrInvalidInput
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapStorageErr(err)
	}
	if c.ThreadID != threadID {
		return ErrNotFound
	}
	return nil
}

func (s *commentService) DeleteSubtree(ctx context.Context, id model.ID) (int, error) {
	if id == "" {
		return 0, ErrInvalidInput
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, mapStorageErr(err)
	}

	deleted, err := s.repo.DeleteSubtree(ctx, id)
	if err != nil {
		return 0, mapStorageErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[c.ThreadID]++
	if th, ok := s.threads[c.ThreadID]; ok {
		if l, found := tree.Locate(th.tree, id); found {
			if next, err := l.Remove(th.tree); err == nil {
				th.tree = next
				s.threads[c.ThreadID] = th
			}
		}
	}
	return deleted, nil
}

func (s *commentService) GetSubtree(ctx context.Context, threadID string, id model.ID) (model.CommentNode, error) {
	if id == "" {
		return model.CommentNode{}, ErrInvalidInput
	}
	t, err := s.Thread(ctx, threadID)
	if err != nil {
		return model.CommentNode{}, err
	}
	l, ok := tree.Locate(t, id)
	if !ok {
		return model.CommentNode{}, ErrNotFound
	}
	n, _ := l.Comment(t)
	return *n, nil
}

func (s *commentService) GetPath(ctx context.Context, threadID string, id model.ID) ([]model.CommentPathItem, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	t, err := s.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	l, ok := tree.Locate(t, id)
	if !ok {
		return nil, ErrNotFound
	}
	items, _ := l.Ancestors(t)
	return items, nil
}

func (s *commentService) Search(ctx context.Context, q string, page, limit int, sortMode model.Sort) (model.SearchPage, error) {
	if strings.TrimSpace(q) == "" {
		return model.SearchPage{}, ErrInvalidInput
	}
	if page <= 0 || limit <= 0 || limit > storage.MaxLimit {
		return model.SearchPage{}, ErrInvalidInput
	}

	switch sortMode {
	case "", model.SortRankDesc, model.SortCreatedAtAsc, model.SortCreatedAtDesc:
	default:
		return model.SearchPage{}, ErrInvalidInput
	}

	return s.repo.Search(ctx, q, page, limit, sortMode)
}

func (s *commentService) cached(threadID string) (thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	return th, ok
}

func (s *commentService) queryFor(threadID string) storage.FetchQuery {
	if th, ok := s.cached(threadID); ok {
		return th.query
	}
	return s.defaults
}

// fill takes zero fields of q from the service defaults.
func (s *commentService) fill(q storage.FetchQuery) storage.FetchQuery {
	if q.Sort == "" {
		q.Sort = s.defaults.Sort
	}
	if q.Limit == 0 {
		q.Limit = s.defaults.Limit
	}
	if q.MaxDepth == 0 {
		q.MaxDepth = s.defaults.MaxDepth
	}
	return q
}

func (s *commentService) report(threadID string, diags tree.Diagnostics) {
	for _, d := range diags {
		s.log.Warn("comment tree anomaly",
			zap.String("thread_id", threadID),
			zap.Int("index", d.Index),
			zap.String("comment_id", d.ID.String()),
			zap.String("parent_id", d.ParentID.String()),
			zap.Error(d.Err),
		)
	}
}

func validateQuery(q storage.FetchQuery) error {
	if q.Sort != "" && !q.Sort.ThreadSort() {
		return ErrInvalidInput
	}
	if q.Limit < 0 || q.Limit > storage.MaxLimit || q.MaxDepth < 0 || q.MaxDepth > storage.MaxDepth {
		return ErrInvalidInput
	}
	return nil
}

func validateText(text string) error {
	t := strings.TrimSpace(text)
	if t == "" || len(t) > maxTextLen {
		return ErrInvalidInput
	}
	return nil
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrInvalidToken):
		return ErrInvalidInput
	}
	return err
}
