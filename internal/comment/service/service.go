package service

import (
	"context"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

// CommentService owns the current tree of every loaded thread. Each write is
// persisted first and then applied to the cached tree as a localized update,
// so readers holding an older tree value are never affected.
type CommentService interface {
	LoadThread(ctx context.Context, threadID string, q storage.FetchQuery) (model.Tree, error)
	Thread(ctx context.Context, threadID string) (model.Tree, error)
	Flat(ctx context.Context, threadID string) ([]model.Node, error)
	ExpandMore(ctx context.Context, threadID, token string) (model.Tree, error)

	Create(ctx context.Context, threadID string, parentID model.ID, text string) (model.Comment, error)
	Vote(ctx context.Context, threadID string, id model.ID, delta int) (model.Comment, error)
	Remove(ctx context.Context, threadID string, id model.ID) (model.Comment, error)
	Delete(ctx context.Context, threadID string, id model.ID) (model.Comment, error)
	DeleteSubtree(ctx context.Context, id model.ID) (deleted int, err error)

	GetSubtree(ctx context.Context, threadID string, id model.ID) (model.CommentNode, error)
	GetPath(ctx context.Context, threadID string, id model.ID) ([]model.CommentPathItem, error)
	Search(ctx context.Context, q string, page, limit int, sort model.Sort) (model.SearchPage, error)
}
