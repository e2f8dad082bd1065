package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/search"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *library.Service, orch *search.Orchestrator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, orch)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.AddProject)
	r.Delete("/projects/{id}", h.RemoveProject)
	r.Get("/projects/{id}/children", h.ProjectChildren)
	r.Put("/projects/{id}/settings", h.UpdateProjectSettings)

	// Notes.
	r.Get("/note", h.GetNote)
	r.Post("/notes", h.CreateNote)
	r.Delete("/note", h.TrashNote)
	r.Post("/pin", h.Pin)

	// Open-note indicator.
	r.Put("/editor", h.SetEditor)
	r.Delete("/editor", h.ClearEditor)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
