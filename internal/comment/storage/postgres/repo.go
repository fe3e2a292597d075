package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

const Schema = `
CREATE TABLE IF NOT EXISTS comments (
	id         BIGSERIAL PRIMARY KEY,
	thread_id  TEXT        NOT NULL,
	parent_id  BIGINT      REFERENCES comments(id) ON DELETE CASCADE,
	text       TEXT        NOT NULL,
	score      INTEGER     NOT NULL DEFAULT 0,
	removed    BOOLEAN     NOT NULL DEFAULT FALSE,
	deleted    BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	search_tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', text)) STORED
);
CREATE INDEX IF NOT EXISTS comments_thread_idx ON comments(thread_id);
CREATE INDEX IF NOT EXISTS comments_parent_idx ON comments(parent_id);
CREATE INDEX IF NOT EXISTS comments_search_idx ON comments USING GIN(search_tsv);
`

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Open connects through the pgx database/sql driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

func key(id model.ID) (int64, bool) {
	n, ok := id.Int64()
	return n, ok && n > 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(s scanner) (model.Comment, error) {
	var (
		c      model.Comment
		id     int64
		parent sql.NullInt64
	)
	if err := s.Scan(&id, &c.ThreadID, &parent, &c.Text, &c.Score, &c.Removed, &c.Deleted, &c.CreatedAt); err != nil {
		return model.Comment{}, err
	}
	c.ID = model.IDFromInt64(id)
	if parent.Valid {
		c.ParentID = model.IDFromInt64(parent.Int64).Ptr()
	}
	return c, nil
}

const columns = `id, thread_id, parent_id, text, score, removed, deleted, created_at`

func (r *Repo) Get(ctx context.Context, id model.ID) (model.Comment, error) {
	k, ok := key(id)
	if !ok {
		return model.Comment{}, storage.ErrNotFound
	}
	c, err := scanComment(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM comments WHERE id=$1`, k))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Comment{}, storage.ErrNotFound
	}
	return c, err
}

func (r *Repo) Create(ctx context.Context, in model.Comment) (model.Comment, error) {
	var parent sql.NullInt64
	threadID := in.ThreadID
	if !in.IsRoot() {
		p, err := r.Get(ctx, in.Parent())
		if err != nil {
			return model.Comment{}, err
		}
		k, _ := key(p.ID)
		parent = sql.NullInt64{Int64: k, Valid: true}
		threadID = p.ThreadID
	}

	return scanComment(r.db.QueryRowContext(ctx, `
		INSERT INTO comments(thread_id, parent_id, text)
		VALUES ($1, $2, $3)
		RETURNING `+columns, threadID, parent, in.Text))
}

func (r *Repo) FetchThread(ctx context.Context, threadID string, q storage.FetchQuery) ([]model.Record, error) {
	comments, err := r.query(ctx, `SELECT `+columns+` FROM comments WHERE thread_id=$1`, threadID)
	if err != nil {
		return nil, err
	}
	return storage.Paginate(comments, threadID, "", nil, q), nil
}

func (r *Repo) FetchMore(ctx context.Context, token string) ([]model.Record, error) {
	cur, err := storage.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if cur.Parent == "" {
		comments, err := r.query(ctx, `SELECT `+columns+` FROM comments WHERE thread_id=$1`, cur.ThreadID)
		if err != nil {
			return nil, err
		}
		return storage.Paginate(comments, cur.ThreadID, "", cur.After, cur.Query()), nil
	}

	k, ok := key(cur.Parent)
	if !ok {
		return nil, storage.ErrInvalidToken
	}
	comments, err := r.query(ctx, `
		WITH RECURSIVE t AS (
			SELECT `+columns+`
			FROM comments
			WHERE parent_id = $1

			UNION ALL

			SELECT c.id, c.thread_id, c.parent_id, c.text, c.score, c.removed, c.deleted, c.created_at
			FROM comments c
			JOIN t ON c.parent_id = t.id
		)
		SELECT `+columns+`
		FROM t
	`, k)
	if err != nil {
		return nil, err
	}
	return storage.Paginate(comments, cur.ThreadID, cur.Parent, cur.After, cur.Query()), nil
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Comment, 0, 64)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Vote(ctx context.Context, id model.ID, delta int) (int, error) {
	k, ok := key(id)
	if !ok {
		return 0, storage.ErrNotFound
	}
	var score int
	err := r.db.QueryRowContext(ctx, `UPDATE comments SET score = score + $2 WHERE id=$1 RETURNING score`, k, delta).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return score, err
}

func (r *Repo) SetFlags(ctx context.Context, id model.ID, flags storage.Flags) error {
	k, ok := key(id)
	if !ok {
		return storage.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE comments
		SET removed = removed OR $2, deleted = deleted OR $3
		WHERE id=$1
	`, k, flags.Removed, flags.Deleted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteSubtree(ctx context.Context, id model.ID) (int, error) {
	k, ok := key(id)
	if !ok {
		return 0, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		WITH RECURSIVE t AS (
			SELECT id FROM comments WHERE id=$1
			UNION ALL
			SELECT c.id FROM comments c JOIN t ON c.parent_id = t.id
		)
		DELETE FROM comments
		WHERE id IN (SELECT id FROM t)
		RETURNING id
	`, k)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	deleted := 0
	for rows.Next() {
		deleted++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *Repo) Search(ctx context.Context, q string, page, limit int, sortMode model.Sort) (model.SearchPage, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM comments
		WHERE search_tsv @@ plainto_tsquery('simple', $1)
	`, q).Scan(&total); err != nil {
		return model.SearchPage{}, err
	}

	if total == 0 {
		return model.SearchPage{
			Items: []model.SearchItem{},
			Page:  page,
			Limit: limit,
			Total: 0,
		}, nil
	}

	orderBy := `rank DESC, created_at DESC`
	switch sortMode {
	case model.SortCreatedAtDesc:
		orderBy = `created_at DESC, rank DESC`
	case model.SortCreatedAtAsc:
		orderBy = `created_at ASC, rank DESC`
	}

	offset := (page - 1) * limit

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			id,
			thread_id,
			parent_id,
			ts_headline('simple', text, plainto_tsquery('simple', $1),
				'StartSel=<mark>, StopSel=</mark>, MaxWords=20, MinWords=10, ShortWord=3, HighlightAll=true') AS snippet,
			ts_rank(search_tsv, plainto_tsquery('simple', $1)) AS rank,
			created_at
		FROM comments
		WHERE search_tsv @@ plainto_tsquery('simple', $1)
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, orderBy), q, limit, offset)
	if err != nil {
		return model.SearchPage{}, err
	}
	defer rows.Close()

	items := make([]model.SearchItem, 0, limit)
	for rows.Next() {
		var (
			it     model.SearchItem
			id     int64
			parent sql.NullInt64
		)
		if err := rows.Scan(&id, &it.ThreadID, &parent, &it.Snippet, &it.Rank, &it.CreatedAt); err != nil {
			return model.SearchPage{}, err
		}
		it.ID = model.IDFromInt64(id)
		if parent.Valid {
			it.ParentID = model.IDFromInt64(parent.Int64).Ptr()
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return model.SearchPage{}, err
	}

	return model.SearchPage{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}
