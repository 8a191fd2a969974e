package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/readmore/internal/postservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *postservice.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Editor search.
	r.Get("/search", h.Search)

	// Posts and the save hook.
	r.Get("/posts/{id}", h.GetPost)
	r.Put("/posts/{id}", h.SavePost)
	r.Delete("/posts/{id}", h.DeletePost)
	r.Get("/posts/{id}/selection", h.Selection)
	r.Get("/posts/{id}/marker", h.Marker)

	return r
}
