// Package events applies comment actions received over NATS to the thread
// service. The action type comes from the payload, or from the last subject
// token when the payload leaves it out (comments.actions.vote).
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/service"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
)

const DefaultSubject = "comments.actions.>"

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrBadPayload    = errors.New("malformed action payload")
)

const (
	TypeCreate = "create"
	TypeVote   = "vote"
	TypeRemove = "remove"
	TypeDelete = "delete"
	TypeReload = "reload"
)

type Action struct {
	Type      string   `json:"type"`
	ThreadID  string   `json:"thread_id"`
	CommentID model.ID `json:"comment_id,omitempty"`
	ParentID  model.ID `json:"parent_id,omitempty"`
	Text      string   `json:"text,omitempty"`
	Delta     int      `json:"delta,omitempty"`
}

// Reply is sent back when the message carries a reply subject.
type Reply struct {
	OK      bool           `json:"ok"`
	Comment *model.Comment `json:"comment,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Consumer struct {
	svc     service.CommentService
	log     *zap.Logger
	timeout time.Duration
}

func NewConsumer(svc service.CommentService, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{svc: svc, log: log, timeout: 5 * time.Second}
}

// Subscribe registers the consumer on subject. The subscription lives until
// it is drained or the connection closes.
func (c *Consumer) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := nc.Subscribe(subject, c.onMessage)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.log.Info("comment actions consumer started", zap.String("subject", subject))
	return sub, nil
}

func (c *Consumer) onMessage(m *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	out, err := c.Handle(ctx, m.Subject, m.Data)
	if err != nil {
		c.log.Warn("comment action failed", zap.String("subject", m.Subject), zap.Error(err))
	}
	if m.Reply == "" {
		return
	}

	reply := Reply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	} else if out.ID != "" {
		reply.Comment = &out
	}
	b, _ := json.Marshal(reply)
	if err := m.Respond(b); err != nil {
		c.log.Warn("comment action reply failed", zap.String("subject", m.Subject), zap.Error(err))
	}
}

// Handle decodes one action and applies it. The returned comment is the
// affected comment for actions that have one.
func (c *Consumer) Handle(ctx context.Context, subject string, data []byte) (model.Comment, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return model.Comment{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if a.Type == "" {
		a.Type = subject[strings.LastIndexByte(subject, '.')+1:]
	}
	c.log.Debug("comment action",
		zap.String("type", a.Type),
		zap.String("thread_id", a.ThreadID),
		zap.String("comment_id", a.CommentID.String()),
	)

	switch strings.ToLower(a.Type) {
	case TypeCreate:
		return c.svc.Create(ctx, a.ThreadID, a.ParentID, a.Text)
	case TypeVote:
		return c.svc.Vote(ctx, a.ThreadID, a.CommentID, a.Delta)
	case TypeRemove:
		return c.svc.Remove(ctx, a.ThreadID, a.CommentID)
	case TypeDelete:
		return c.svc.Delete(ctx, a.ThreadID, a.CommentID)
	case TypeReload:
		_, err := c.svc.LoadThread(ctx, a.ThreadID, storage.FetchQuery{})
		return model.Comment{}, err
	}
	return model.Comment{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
}
