package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := New(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestThreadLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	thread := "pg-" + t.Name()

	root, err := repo.Create(ctx, model.Comment{ThreadID: thread, Text: "root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	t.Cleanup(func() { _, _ = repo.DeleteSubtree(context.Background(), root.ID) })

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, model.Comment{ParentID: root.ID.Ptr(), Text: "reply"}); err != nil {
			t.Fatalf("create reply: %v", err)
		}
	}

	records, err := repo.FetchThread(ctx, thread, storage.FetchQuery{Sort: model.SortCreatedAtAsc, Limit: 2})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 4 || records[3].Kind != model.KindMore {
		t.Fatalf("expected root, two replies and a marker, got %+v", records)
	}
	rest, err := repo.FetchMore(ctx, records[3].Token)
	if err != nil {
		t.Fatalf("fetch more: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected one remaining reply, got %+v", rest)
	}

	score, err := repo.Vote(ctx, root.ID, 1)
	if err != nil || score != 1 {
		t.Fatalf("vote: %d %v", score, err)
	}
	if err := repo.SetFlags(ctx, root.ID, storage.Flags{Removed: true}); err != nil {
		t.Fatalf("flags: %v", err)
	}
	got, err := repo.Get(ctx, root.ID)
	if err != nil || !got.Removed {
		t.Fatalf("get: %+v %v", got, err)
	}

	n, err := repo.DeleteSubtree(ctx, root.ID)
	if err != nil || n != 4 {
		t.Fatalf("delete: %d %v", n, err)
	}
}
