// Package cache keeps thread responses in Redis in front of another
// repository. Reads are cached per thread and query; any write to a thread
// drops every cached response of that thread.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

const (
	DefaultTTL = 2 * time.Minute
	keyPrefix  = "commenttree"
)

type Repo struct {
	storage.Repository

	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func New(inner storage.Repository, client *redis.Client, ttl time.Duration, log *zap.Logger) *Repo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repo{Repository: inner, client: client, ttl: ttl, log: log}
}

func ThreadKey(threadID string, q storage.FetchQuery) string {
	q = q.WithDefaults()
	return fmt.Sprintf("%s:thread:%s:%s:%d:%d", keyPrefix, threadID, q.Sort, q.Limit, q.MaxDepth)
}

func MoreKey(threadID, token string) string {
	return fmt.Sprintf("%s:more:%s:%s", keyPrefix, threadID, token)
}

func indexKey(threadID string) string {
	return fmt.Sprintf("%s:keys:%s", keyPrefix, threadID)
}

func (r *Repo) FetchThread(ctx context.Context, threadID string, q storage.FetchQuery) ([]model.Record, error) {
	return r.cached(ctx, threadID, ThreadKey(threadID, q), func() ([]model.Record, error) {
		return r.Repository.FetchThread(ctx, threadID, q)
	})
}

func (r *Repo) FetchMore(ctx context.Context, token string) ([]model.Record, error) {
	cur, err := storage.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	return r.cached(ctx, cur.ThreadID, MoreKey(cur.ThreadID, token), func() ([]model.Record, error) {
		return r.Repository.FetchMore(ctx, token)
	})
}

// cached serves key from Redis, falling back to load on a miss or any Redis
// failure. Redis errors never fail the read.
func (r *Repo) cached(ctx context.Context, threadID, key string, load func() ([]model.Record, error)) ([]model.Record, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []model.Record
		if err := json.Unmarshal(b, &records); err == nil {
			return records, nil
		}
		r.log.Warn("cache: corrupt entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.log.Warn("cache: get failed", zap.String("key", key), zap.Error(err))
	}

	records, err := load()
	if err != nil {
		return nil, err
	}

	b, err = json.Marshal(records)
	if err != nil {
		return records, nil
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, r.ttl)
		p.SAdd(ctx, indexKey(threadID), key)
		p.Expire(ctx, indexKey(threadID), r.ttl)
		return nil
	})
	if err != nil {
		r.log.Warn("cache: set failed", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

// Invalidate drops every cached response of threadID.
func (r *Repo) Invalidate(ctx context.Context, threadID string) error {
	idx := indexKey(threadID)
	keys, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(keys, idx)...).Err()
}

func (r *Repo) invalidate(ctx context.Context, threadID string) {
	if threadID == "" {
		return
	}
	if err := r.Invalidate(ctx, threadID); err != nil {
		r.log.Warn("cache: invalidate failed", zap.String("thread_id", threadID), zap.Error(err))
	}
}

func (r *Repo) threadOf(ctx context.Context, id model.ID) string {
	c, err := r.Repository.Get(ctx, id)
	if err != nil {
		return ""
	}
	return c.ThreadID
}

func (r *Repo) Create(ctx context.Context, c model.Comment) (model.Comment, error) {
	out, err := r.Repository.Create(ctx, c)
	if err != nil {
		return out, err
	}
	r.invalidate(ctx, out.ThreadID)
	return out, nil
}

func (r *Repo) Vote(ctx context.Context, id model.ID, delta int) (int, error) {
	score, err := r.Repository.Vote(ctx, id, delta)
	if err != nil {
		return score, err
	}
	r.invalidate(ctx, r.threadOf(ctx, id))
	return score, nil
}

func (r *Repo) SetFlags(ctx context.Context, id model.ID, flags storage.Flags) error {
	if err := r.Repository.SetFlags(ctx, id, flags); err != nil {
		return err
	}
	r.invalidate(ctx, r.threadOf(ctx, id))
	return nil
}

func (r *Repo) DeleteSubtree(ctx context.Context, id model.ID) (int, error) {
	threadID := r.threadOf(ctx, id)
	n, err := r.Repository.DeleteSubtree(ctx, id)
	if err != nil {
		return n, err
	}
	r.invalidate(ctx, threadID)
	return n, nil
}
