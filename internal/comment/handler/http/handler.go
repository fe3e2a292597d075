package http

import (
	"errors"
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/service"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/tree"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/api"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/httpserver"
)

type Handler struct {
	svc service.CommentService
	log *zap.Logger
}

func New(svc service.CommentService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

type threadResponse struct {
	ThreadID string     `json:"thread_id"`
	Comments model.Tree `json:"comments"`
	Total    int        `json:"total"`
	Pending  int        `json:"pending"`
}

func newThreadResponse(threadID string, t model.Tree) threadResponse {
	if t == nil {
		t = model.Tree{}
	}
	comments, _ := tree.Size(t)
	pending := 0
	for n := range tree.Flatten(t) {
		if n.Kind == model.KindMore {
			pending += n.More.Count
		}
	}
	return threadResponse{ThreadID: threadID, Comments: t, Total: comments, Pending: pending}
}

func (h *Handler) GetThread(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	threadID := chi.URLParam(r, "thread")
	q := r.URL.Query()

	var fq storage.FetchQuery
	fq.Sort = model.Sort(q.Get("sort"))
	limit, ok := h.intParam(w, r, "limit", 0)
	if !ok {
		return
	}
	depth, ok := h.intParam(w, r, "depth", 0)
	if !ok {
		return
	}
	fq.Limit, fq.MaxDepth = limit, depth

	reload := q.Get("reload") == "true" || q.Get("reload") == "1"

	var (
		t   model.Tree
		err error
	)
	if reload || fq != (storage.FetchQuery{}) {
		t, err = h.svc.LoadThread(r.Context(), threadID, fq)
	} else {
		t, err = h.svc.Thread(r.Context(), threadID)
	}
	if err != nil {
		h.fail(w, r, err, "thread not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, newThreadResponse(threadID, t))
}

func (h *Handler) GetFlat(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	threadID := chi.URLParam(r, "thread")

	items, err := h.svc.Flat(r.Context(), threadID)
	if err != nil {
		h.fail(w, r, err, "thread not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, map[string]any{"thread_id": threadID, "items": items})
}

func (h *Handler) ExpandMore(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	threadID := chi.URLParam(r, "thread")

	t, err := h.svc.ExpandMore(r.Context(), threadID, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err, "continuation already expanded or unknown")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, newThreadResponse(threadID, t))
}

type createCommentRequest struct {
	ParentID model.ID `json:"parent_id"`
	Text     string   `json:"text"`
}

func (h *Handler) CreateComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req createCommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.svc.Create(r.Context(), chi.URLParam(r, "thread"), req.ParentID, req.Text)
	if err != nil {
		h.fail(w, r, err, "parent not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusCreated, c)
}

type voteRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) VoteComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req voteRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.svc.Vote(r.Context(), chi.URLParam(r, "thread"), model.ID(chi.URLParam(r, "id")), req.Delta)
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, c)
}

func (h *Handler) RemoveComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	c, err := h.svc.Remove(r.Context(), chi.URLParam(r, "thread"), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, c)
}

func (h *Handler) SoftDeleteComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	c, err := h.svc.Delete(r.Context(), chi.URLParam(r, "thread"), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, c)
}

func (h *Handler) GetSubtree(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	node, err := h.svc.GetSubtree(r.Context(), chi.URLParam(r, "thread"), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, model.CommentOf(&node))
}

func (h *Handler) GetPath(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	items, err := h.svc.GetPath(r.Context(), chi.URLParam(r, "thread"), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, map[string]any{"items": items})
}

func (h *Handler) DeleteComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id := chi.URLParam(r, "id")
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		api.BadRequest(w, "INVALID_ID", "invalid id", httpserver.RequestIDFromContext(r.Context()), nil)
		return
	}

	deleted, err := h.svc.DeleteSubtree(r.Context(), model.ID(id))
	if err != nil {
		h.fail(w, r, err, "not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, map[string]any{"deleted": deleted})
}

func (h *Handler) SearchComments(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()

	page, ok := h.intParam(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := h.intParam(w, r, "limit", storage.DefaultLimit)
	if !ok {
		return
	}

	res, err := h.svc.Search(r.Context(), q.Get("q"), page, limit, model.Sort(q.Get("sort")))
	if err != nil {
		h.fail(w, r, err, "not found")
		return
	}

	api.WriteJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) decode(w stdhttp.ResponseWriter, r *stdhttp.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.BadRequest(w, "BAD_JSON", "bad json", httpserver.RequestIDFromContext(r.Context()), nil)
		return false
	}
	return true
}

// intParam reads an optional integer query parameter.
func (h *Handler) intParam(w stdhttp.ResponseWriter, r *stdhttp.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		api.BadRequest(w, "INVALID_INPUT", "invalid "+name, httpserver.RequestIDFromContext(r.Context()), map[string]any{"param": name})
		return 0, false
	}
	return n, true
}

func (h *Handler) fail(w stdhttp.ResponseWriter, r *stdhttp.Request, err error, notFound string) {
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		api.BadRequest(w, "INVALID_INPUT", "invalid input", rid, nil)
	case errors.Is(err, service.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", notFound, rid)
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", rid),
			zap.Error(err),
		)
		api.Internal(w, rid)
	}
}
