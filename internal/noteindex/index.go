// Package noteindex holds the flat in-memory collection of all loaded notes.
// Lookups never fail: a miss is a nil or empty result.
package noteindex

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/avhall/notarius/internal/models"
)

// Index is the note collection. Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	notes  []*models.Note
	byPath map[string]*models.Note // normalized URL → note
	byKey  map[string]*models.Note // (project, name) → note
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byPath: make(map[string]*models.Note),
		byKey:  make(map[string]*models.Note),
	}
}

// normalize canonicalises a path for lookup: cleaned, case-folded, and with
// the sandbox-style "/private" prefix stripped so both spellings of the same
// location resolve to one entry.
func normalize(path string) string {
	p := filepath.Clean(path)
	p = strings.TrimPrefix(p, "/private")
	return strings.ToLower(p)
}

func key(project models.ProjectID, name string) string {
	return strconv.Itoa(int(project)) + "|" + strings.ToLower(name)
}

// Insert adds n unless a note with the same (name, project) pair already
// exists. Reports whether the note was added.
func (ix *Index) Insert(n *models.Note) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	k := key(n.Project, n.Name)
	if _, ok := ix.byKey[k]; ok {
		return false
	}
	ix.notes = append(ix.notes, n)
	ix.byKey[k] = n
	ix.byPath[normalize(n.URL)] = n
	return true
}

// Remove deletes n from the index. Unknown notes are a no-op.
func (ix *Index) Remove(n *models.Note) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(n)
}

// RemoveByPath deletes and returns the note at path, or nil.
func (ix *Index) RemoveByPath(path string) *models.Note {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n, ok := ix.byPath[normalize(path)]
	if !ok {
		return nil
	}
	ix.removeLocked(n)
	return n
}

// RemoveProject deletes every note owned by the given project and returns
// how many were removed.
func (ix *Index) RemoveProject(id models.ProjectID) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	removed := 0
	kept := ix.notes[:0]
	for _, n := range ix.notes {
		if n.Project == id {
			delete(ix.byKey, key(n.Project, n.Name))
			delete(ix.byPath, normalize(n.URL))
			removed++
			continue
		}
		kept = append(kept, n)
	}
	ix.notes = kept
	return removed
}

// ByPath returns the note at path, tolerating case and prefix variants.
func (ix *Index) ByPath(path string) *models.Note {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.byPath[normalize(path)]
}

// ByName returns the first note with the exact file name, or nil.
func (ix *Index) ByName(name string) *models.Note {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, n := range ix.notes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// ByTitle returns the first note whose title equals title case-insensitively,
// or nil.
func (ix *Index) ByTitle(title string) *models.Note {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, n := range ix.notes {
		if strings.EqualFold(n.DisplayTitle(), title) {
			return n
		}
	}
	return nil
}

// TitlePrefix returns all notes whose title starts with prefix
// (case-insensitive), ordered by title. The result may be empty.
func (ix *Index) TitlePrefix(prefix string) []*models.Note {
	lowered := strings.ToLower(prefix)
	ix.mu.RLock()
	var out []*models.Note
	for _, n := range ix.notes {
		if strings.HasPrefix(strings.ToLower(n.DisplayTitle()), lowered) {
			out = append(out, n)
		}
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayTitle()) < strings.ToLower(out[j].DisplayTitle())
	})
	return out
}

// All returns a snapshot of every indexed note.
func (ix *Index) All() []*models.Note {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*models.Note, len(ix.notes))
	copy(out, ix.notes)
	return out
}

// Len returns the number of indexed notes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.notes)
}

func (ix *Index) removeLocked(n *models.Note) {
	k := key(n.Project, n.Name)
	if ix.byKey[k] != n {
		return
	}
	delete(ix.byKey, k)
	delete(ix.byPath, normalize(n.URL))
	for i, cur := range ix.notes {
		if cur == n {
			ix.notes = append(ix.notes[:i], ix.notes[i+1:]...)
			break
		}
	}
}
