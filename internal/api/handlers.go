package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avhall/notarius/internal/apperr"
	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/search"
	"github.com/avhall/notarius/internal/settings"
)

// Handler holds API route handlers.
type Handler struct {
	svc  *library.Service
	orch *search.Orchestrator
}

// NewHandler creates a new Handler.
func NewHandler(svc *library.Service, orch *search.Orchestrator) *Handler {
	return &Handler{svc: svc, orch: orch}
}

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: h.svc.Registry().All()})
}

// AddProject handles POST /projects: registers a root folder, discovering
// and loading child projects.
func (h *Handler) AddProject(w http.ResponseWriter, r *http.Request) {
	var req AddProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	added, err := h.svc.RegisterRoot(req.Path, false)
	if err != nil {
		slog.Error("add project failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody("cannot register folder"))
		return
	}
	h.orch.Refresh()
	writeJSON(w, http.StatusCreated, ProjectListResponse{Projects: added})
}

// RemoveProject handles DELETE /projects/{id}: unregisters the project and
// cascades removal of its children and notes.
func (h *Handler) RemoveProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid project id"))
		return
	}
	if h.svc.Registry().Project(models.ProjectID(id)) == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.svc.Unregister(models.ProjectID(id))
	h.orch.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// ProjectChildren handles GET /projects/{id}/children.
func (h *Handler) ProjectChildren(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid project id"))
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{
		Projects: h.svc.Registry().ChildrenOf(models.ProjectID(id)),
	})
}

// UpdateProjectSettings handles PUT /projects/{id}/settings.
func (h *Handler) UpdateProjectSettings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid project id"))
		return
	}
	var req ProjectSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	prefs := settings.Project{
		SortKey:       models.ParseSortKey(req.SortKey),
		ShowInCommon:  req.ShowInCommon,
		ShowInSidebar: req.ShowInSidebar,
	}
	if req.SortDesc {
		prefs.SortOrder = models.SortDescending
	}
	if err := h.svc.SaveProjectSettings(models.ProjectID(id), prefs); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("save settings failed", slog.Int("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.orch.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// GetNote handles GET /note?path=.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n := h.svc.Index().ByPath(path)
	if n == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{NoteItem: noteItem(n), Body: n.Body()})
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	n, err := h.svc.CreateNote(req.Project, req.Name, []byte(req.Content))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("unknown project"))
		default:
			slog.Error("create note failed", slog.String("name", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.orch.Refresh()
	writeJSON(w, http.StatusCreated, NoteDetail{NoteItem: noteItem(n), Body: n.Body()})
}

// TrashNote handles DELETE /note?path=: moves the note into the trash
// project rather than deleting the file.
func (h *Handler) TrashNote(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.TrashNote(path); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrNoTrash):
			writeJSON(w, http.StatusConflict, errorBody("no trash project"))
		default:
			slog.Error("trash note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.orch.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// Pin handles POST /pin.
func (h *Handler) Pin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.SetPinned(req.Path, req.Pinned); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("pin failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.orch.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// SetEditor handles PUT /editor: marks the note open for editing so loads
// and watcher reloads leave it alone.
func (h *Handler) SetEditor(w http.ResponseWriter, r *http.Request) {
	var req EditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	h.svc.SetOpenNote(req.Path)
	w.WriteHeader(http.StatusNoContent)
}

// ClearEditor handles DELETE /editor.
func (h *Handler) ClearEditor(w http.ResponseWriter, _ *http.Request) {
	h.svc.SetOpenNote("")
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search. The query runs through the orchestrator, so a
// concurrent request supersedes this one and returns cancelled=true.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := models.Scope{
		Category:    models.ParseCategory(q.Get("category")),
		DisplayName: q.Get("name"),
	}
	for _, raw := range strings.Split(q.Get("projects"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid projects parameter"))
			return
		}
		scope.Projects = append(scope.Projects, models.ProjectID(id))
	}
	interactive := q.Get("interactive") == "true"

	notes, cancelled, err := h.orch.Search(r.Context(), q.Get("q"), scope, interactive)
	if err != nil {
		writeJSON(w, http.StatusRequestTimeout, errorBody("search aborted"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: noteItems(notes), Cancelled: cancelled})
}
