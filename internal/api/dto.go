package api

import (
	"time"

	"github.com/avhall/notarius/internal/models"
)

// AddProjectRequest is the request body for registering a root folder.
type AddProjectRequest struct {
	Path string `json:"path"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Project models.ProjectID `json:"project"`
	Name    string           `json:"name"`
	Content string           `json:"content"`
}

// PinRequest toggles a note's pinned flag.
type PinRequest struct {
	Path   string `json:"path"`
	Pinned bool   `json:"pinned"`
}

// EditorRequest marks a note as open for editing.
type EditorRequest struct {
	Path string `json:"path"`
}

// ProjectSettingsRequest updates a project's sort and visibility settings.
type ProjectSettingsRequest struct {
	SortKey       string `json:"sort_key"`
	SortDesc      bool   `json:"sort_desc"`
	ShowInCommon  bool   `json:"show_in_common"`
	ShowInSidebar bool   `json:"show_in_sidebar"`
}

// NoteItem is a lightweight note in list and search responses.
type NoteItem struct {
	URL       string           `json:"url"`
	Name      string           `json:"name"`
	Title     string           `json:"title"`
	Project   models.ProjectID `json:"project"`
	Pinned    bool             `json:"pinned"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NoteDetail is the full note response.
type NoteDetail struct {
	NoteItem
	Body string `json:"body"`
}

func noteItem(n *models.Note) NoteItem {
	return NoteItem{
		URL:       n.URL,
		Name:      n.Name,
		Title:     n.DisplayTitle(),
		Project:   n.Project,
		Pinned:    n.Pinned(),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func noteItems(notes []*models.Note) []NoteItem {
	items := make([]NoteItem, len(notes))
	for i, n := range notes {
		items[i] = noteItem(n)
	}
	return items
}

// ProjectListResponse wraps project listings.
type ProjectListResponse struct {
	Projects []*models.Project `json:"projects"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results   []NoteItem `json:"results"`
	Cancelled bool       `json:"cancelled"`
}
