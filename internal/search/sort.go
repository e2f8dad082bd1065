package search

import (
	"sort"
	"strings"

	"github.com/avhall/notarius/internal/models"
)

// Sort orders notes in place. Notes whose title starts with the query sort
// first; among the rest, pinned notes precede unpinned ones and ties fall
// through to the active key and direction. A per-project override beats the
// global key when project is non-nil. Once tok is cancelled the comparator
// reports no preference, freezing the remaining order; the caller discards
// cancelled results anyway.
func Sort(notes []*models.Note, query string, project *models.Project, key models.SortKey, order models.SortOrder, tok *Token) {
	if project != nil {
		if s := project.Settings(); s.SortKey != models.SortDefault {
			key = s.SortKey
			order = s.SortOrder
		}
	}
	if key == models.SortDefault {
		key = models.SortByModified
	}
	q := strings.ToLower(strings.TrimSpace(query))

	sort.Slice(notes, func(i, j int) bool {
		if tok.Cancelled() {
			return false
		}
		a, b := notes[i], notes[j]

		if q != "" {
			ap := strings.HasPrefix(strings.ToLower(a.DisplayTitle()), q)
			bp := strings.HasPrefix(strings.ToLower(b.DisplayTitle()), q)
			if ap != bp {
				return ap
			}
		}

		ap, bp := a.Pinned(), b.Pinned()
		if ap != bp {
			return ap
		}

		switch key {
		case models.SortByTitle:
			at := strings.ToLower(a.DisplayTitle())
			bt := strings.ToLower(b.DisplayTitle())
			if at == bt {
				return false
			}
			if order == models.SortAscending {
				return at < bt
			}
			return at > bt
		case models.SortByCreated:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return false
			}
			if order == models.SortAscending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		default:
			if a.UpdatedAt.Equal(b.UpdatedAt) {
				return false
			}
			if order == models.SortAscending {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
	})
}
