// Package search implements the filtering, sorting, and orchestration of
// note searches over the in-memory index.
package search

import (
	"strings"

	"github.com/avhall/notarius/internal/models"
)

// ProjectResolver resolves project ids to records. The registry satisfies it.
type ProjectResolver interface {
	Project(id models.ProjectID) *models.Project
}

// Matches reports whether a note survives the query and scope. The decision
// is a conjunction: a non-empty name, every query term found in name or body,
// the scope's structural condition, and agreement with the trash category.
//
// A missing candidate project set with an ordinary category fails closed
// rather than matching everything.
func Matches(n *models.Note, query string, scope models.Scope, projects ProjectResolver) bool {
	if n.Name == "" {
		return false
	}
	owner := projects.Project(n.Project)
	if owner == nil {
		return false
	}

	trashed := owner.IsTrash
	if scope.Category == models.CategoryTrash {
		if !trashed {
			return false
		}
	} else if trashed {
		return false
	}

	switch scope.Category {
	case models.CategoryAll:
		if !owner.ShowInCommon() {
			return false
		}
	case models.CategoryTrash:
		// Trash bypasses the project-set condition.
	default:
		if len(scope.Projects) == 0 {
			return false
		}
		if !scope.HasProject(owner.ID) {
			// One level of inheritance: a child matches through its parent.
			if owner.Parent == models.NoParent || !scope.HasProject(owner.Parent) {
				return false
			}
		}
	}

	return containsAllTerms(n, query)
}

// containsAllTerms checks that every whitespace-separated term of query
// appears, case-insensitively, in the note's name or body. An empty query
// always holds. The body is read lazily and only when a term misses the name.
func containsAllTerms(n *models.Note, query string) bool {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return true
	}
	name := strings.ToLower(n.Name)
	body := ""
	haveBody := false
	for _, term := range terms {
		if strings.Contains(name, term) {
			continue
		}
		if !haveBody {
			body = strings.ToLower(n.Body())
			haveBody = true
		}
		if !strings.Contains(body, term) {
			return false
		}
	}
	return true
}
