package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tramite/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *recordservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records. Identifiers contain slashes, so the sub-resources are
	// dispatched from the wildcard.
	r.Get("/records", h.ListRecords)
	r.Get("/records/*", h.RecordResource)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	r.Post("/batch", h.RunBatch)
	r.Post("/documents", h.UploadDocument)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
