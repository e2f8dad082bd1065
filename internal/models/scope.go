package models

// Category is the structural variant of a search scope. It replaces the
// original heterogeneous sidebar-item dispatch with a closed set.
type Category int

// Scope categories.
const (
	// CategoryProject scopes the search to an explicit candidate project set.
	CategoryProject Category = iota
	// CategoryAll scopes the search to every project shown in the common view.
	CategoryAll
	// CategoryTrash scopes the search to trashed notes only.
	CategoryTrash
)

// String returns the wire spelling of the category.
func (c Category) String() string {
	switch c {
	case CategoryAll:
		return "all"
	case CategoryTrash:
		return "trash"
	default:
		return "project"
	}
}

// ParseCategory converts a wire spelling to a Category. Unknown spellings
// map to CategoryProject.
func ParseCategory(s string) Category {
	switch s {
	case "all":
		return CategoryAll
	case "trash":
		return CategoryTrash
	default:
		return CategoryProject
	}
}

// Scope describes the structural half of a search request: the candidate
// project set, the category, and an optional sidebar-derived display name.
// Scopes are constructed fresh per request and never persisted.
type Scope struct {
	Projects    []ProjectID `json:"projects,omitempty"`
	Category    Category    `json:"category"`
	DisplayName string      `json:"display_name,omitempty"`
}

// HasProject reports whether id is in the candidate set.
func (s Scope) HasProject(id ProjectID) bool {
	for _, p := range s.Projects {
		if p == id {
			return true
		}
	}
	return false
}
