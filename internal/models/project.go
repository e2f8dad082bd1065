package models

import (
	"encoding/json"
	"sync"
)

// ProjectID identifies a project in the registry arena. The zero value means
// "no project" and doubles as the absent parent reference.
type ProjectID int

// NoParent marks a project without a parent.
const NoParent ProjectID = 0

// SortKey selects the field notes are ordered by.
type SortKey int

// Sort keys. SortDefault falls back to the global setting, which itself
// defaults to modification date.
const (
	SortDefault SortKey = iota
	SortByTitle
	SortByCreated
	SortByModified
)

// String returns the settings-file spelling of the key.
func (k SortKey) String() string {
	switch k {
	case SortByTitle:
		return "title"
	case SortByCreated:
		return "created"
	case SortByModified:
		return "modified"
	default:
		return ""
	}
}

// ParseSortKey converts a settings-file spelling back to a SortKey.
// Unknown spellings map to SortDefault.
func ParseSortKey(s string) SortKey {
	switch s {
	case "title":
		return SortByTitle
	case "created":
		return SortByCreated
	case "modified":
		return SortByModified
	default:
		return SortDefault
	}
}

// SortOrder is the direction of a sort.
type SortOrder int

// Sort directions.
const (
	SortAscending SortOrder = iota
	SortDescending
)

// ProjectSettings is the mutable preference set of a project: sort override
// and visibility flags.
type ProjectSettings struct {
	SortKey       SortKey
	SortOrder     SortOrder
	ShowInCommon  bool
	ShowInSidebar bool
}

// DefaultProjectSettings is what a project starts with.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{ShowInCommon: true, ShowInSidebar: true}
}

// Project represents one registered file-system directory tree treated as a
// searchable note collection. Parent relationships are stored as ids, never
// pointers, so the registry arena owns every lifetime.
//
// Identity fields are fixed at registration. The preference set may be
// changed at any time by a handler while a search pass reads it, so it lives
// behind its own lock.
type Project struct {
	ID        ProjectID
	URL       string // canonical, symlink-resolved absolute path
	Label     string
	IsRoot    bool
	IsDefault bool
	IsTrash   bool
	Parent    ProjectID

	mu       sync.RWMutex
	settings ProjectSettings
}

// Settings returns a snapshot of the project's preferences.
func (p *Project) Settings() ProjectSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// ApplySettings replaces the project's preferences.
func (p *Project) ApplySettings(s ProjectSettings) {
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
}

// SortKey returns the project's sort override, SortDefault when unset.
func (p *Project) SortKey() SortKey { return p.Settings().SortKey }

// SortOrder returns the direction of the project's sort override.
func (p *Project) SortOrder() SortOrder { return p.Settings().SortOrder }

// ShowInCommon reports whether the project participates in the common scope.
func (p *Project) ShowInCommon() bool { return p.Settings().ShowInCommon }

// ShowInSidebar reports whether the project is listed in the sidebar.
func (p *Project) ShowInSidebar() bool { return p.Settings().ShowInSidebar }

// MarshalJSON emits the wire shape, reading the preference set atomically.
func (p *Project) MarshalJSON() ([]byte, error) {
	s := p.Settings()
	return json.Marshal(struct {
		ID            ProjectID `json:"id"`
		URL           string    `json:"url"`
		Label         string    `json:"label"`
		IsRoot        bool      `json:"is_root"`
		IsDefault     bool      `json:"is_default"`
		IsTrash       bool      `json:"is_trash"`
		Parent        ProjectID `json:"parent,omitempty"`
		SortKey       SortKey   `json:"sort_key"`
		SortOrder     SortOrder `json:"sort_order"`
		ShowInCommon  bool      `json:"show_in_common"`
		ShowInSidebar bool      `json:"show_in_sidebar"`
	}{
		ID:            p.ID,
		URL:           p.URL,
		Label:         p.Label,
		IsRoot:        p.IsRoot,
		IsDefault:     p.IsDefault,
		IsTrash:       p.IsTrash,
		Parent:        p.Parent,
		SortKey:       s.SortKey,
		SortOrder:     s.SortOrder,
		ShowInCommon:  s.ShowInCommon,
		ShowInSidebar: s.ShowInSidebar,
	})
}
