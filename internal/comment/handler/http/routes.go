package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MyNameIsWhaaat/threadtree/internal/platform/httpserver"
)

// Register mounts the comment routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/threads/{thread}", func(r chi.Router) {
		r.Get("/", h.GetThread)
		r.Get("/flat", h.GetFlat)
		r.Post("/more/{token}", h.ExpandMore)

		r.Post("/comments", h.CreateComment)
		r.Get("/comments/{id}", h.GetSubtree)
		r.Delete("/comments/{id}", h.SoftDeleteComment)
		r.Get("/comments/{id}/path", h.GetPath)
		r.Post("/comments/{id}/vote", h.VoteComment)
		r.Post("/comments/{id}/remove", h.RemoveComment)
	})

	r.Get("/comments/search", h.SearchComments)
	r.Delete("/comments/{id}", h.DeleteComment)
}

// Routes builds a router with the base middlewares, health endpoints and
// the comment routes.
func (h *Handler) Routes(cfg httpserver.RouterConfig) stdhttp.Handler {
	r := chi.NewRouter()
	if cfg.Logger == nil {
		cfg.Logger = h.log
	}
	httpserver.SetupRouter(r, cfg)
	h.Register(r)
	return r
}
