package storage

import (
	"context"
	"errors"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
)

var (
	ErrNotFound     = errors.New("comment not found")
	ErrInvalidToken = errors.New("invalid continuation token")
)

// Repository is the fetch side of a thread: it stores comments and serves
// them as flat, paginated record lists.
type Repository interface {
	Create(ctx context.Context, c model.Comment) (model.Comment, error)
	Get(ctx context.Context, id model.ID) (model.Comment, error)
	FetchThread(ctx context.Context, threadID string, q FetchQuery) ([]model.Record, error)
	FetchMore(ctx context.Context, token string) ([]model.Record, error)
	Vote(ctx context.Context, id model.ID, delta int) (score int, err error)
	SetFlags(ctx context.Context, id model.ID, flags Flags) error
	DeleteSubtree(ctx context.Context, id model.ID) (int, error)
	Search(ctx context.Context, q string, page, limit int, sort model.Sort) (model.SearchPage, error)
}

// Flags selects which moderation flags SetFlags turns on.
type Flags struct {
	Removed bool
	Deleted bool
}
