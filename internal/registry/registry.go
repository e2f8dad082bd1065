// Package registry owns the set of known projects. Projects live in a flat
// arena indexed by id; parent links are ids, so no reference cycles can
// form and unregistering a project is a slot clear.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/avhall/notarius/internal/apperr"
	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/scan"
	"github.com/avhall/notarius/internal/settings"
)

// TrashFolderName is the directory created under a root to hold trashed notes.
const TrashFolderName = ".Trash"

// Registry is the arena of registered projects. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	projects []*models.Project // slot i holds id i+1; nil after unregister
	byURL    map[string]models.ProjectID

	scanner    *scan.Scanner
	store      *settings.Store
	singleFile bool
	logger     *slog.Logger
}

// New creates an empty registry. singleFile suppresses child discovery and
// trash creation for deployments that treat the root as a flat folder.
func New(scanner *scan.Scanner, store *settings.Store, singleFile bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byURL:      make(map[string]models.ProjectID),
		scanner:    scanner,
		store:      store,
		singleFile: singleFile,
		logger:     logger,
	}
}

// Canonical resolves path to its absolute, symlink-free form.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("registry: resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("registry: resolve %s: %w", path, err)
	}
	return resolved, nil
}

// NewProject constructs an unregistered project for path, canonicalising the
// URL and restoring persisted sort and visibility settings.
func (r *Registry) NewProject(path, label string, isRoot bool) (*models.Project, error) {
	url, err := Canonical(path)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = filepath.Base(url)
	}
	p := &models.Project{
		URL:    url,
		Label:  label,
		IsRoot: isRoot,
	}
	prefs := models.DefaultProjectSettings()
	if r.store != nil {
		saved, err := r.store.Project(url)
		if err != nil {
			r.logger.Warn("registry: settings restore failed", slog.String("url", url), slog.String("error", err.Error()))
		} else {
			prefs = models.ProjectSettings{
				SortKey:       saved.SortKey,
				SortOrder:     saved.SortOrder,
				ShowInCommon:  saved.ShowInCommon,
				ShowInSidebar: saved.ShowInSidebar,
			}
		}
	}
	p.ApplySettings(prefs)
	return p, nil
}

// Register inserts p unless a project with the same canonical URL already
// exists. Root projects additionally discover eligible sub-folders as child
// projects (unless single-file mode is on). The newly added projects are
// returned in scan order; an already-registered project yields an empty list.
func (r *Registry) Register(p *models.Project) []*models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byURL[p.URL]; ok {
		return nil
	}

	// Exactly one project may ever be flagged default.
	if p.IsDefault && r.defaultLocked() != nil {
		r.logger.Warn("registry: default already set, clearing flag", slog.String("url", p.URL))
		p.IsDefault = false
	}

	added := []*models.Project{r.insertLocked(p)}

	if p.IsRoot && !r.singleFile {
		limit := scan.MaxProjects - r.countLocked()
		subs := r.scanner.Subfolders(p.URL, func(path string) bool {
			_, registered := r.byURL[path]
			return registered
		}, limit)
		for _, sub := range subs {
			child, err := r.NewProject(sub, "", false)
			if err != nil {
				r.logger.Warn("registry: child rejected", slog.String("path", sub), slog.String("error", err.Error()))
				continue
			}
			if _, ok := r.byURL[child.URL]; ok {
				continue
			}
			child.Parent = p.ID
			added = append(added, r.insertLocked(child))
		}
	}
	return added
}

// insertLocked assigns an id and stores p. Caller holds the write lock.
func (r *Registry) insertLocked(p *models.Project) *models.Project {
	r.projects = append(r.projects, p)
	p.ID = models.ProjectID(len(r.projects))
	r.byURL[p.URL] = p.ID
	r.logger.Debug("registry: registered", slog.String("url", p.URL), slog.Int("id", int(p.ID)))
	return p
}

// Unregister removes the project with the given id. Note cascade removal is
// the caller's responsibility. Unknown ids are a no-op.
func (r *Registry) Unregister(id models.ProjectID) *models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.getLocked(id)
	if p == nil {
		return nil
	}
	r.projects[int(id)-1] = nil
	delete(r.byURL, p.URL)
	r.logger.Debug("registry: unregistered", slog.String("url", p.URL))
	return p
}

// Exists reports whether a project with the exact canonical URL is registered.
func (r *Registry) Exists(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byURL[url]
	return ok
}

// Project returns the project with the given id, or nil.
func (r *Registry) Project(id models.ProjectID) *models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

// ByURL returns the project with the given canonical URL, or nil.
func (r *Registry) ByURL(url string) *models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byURL[url]; ok {
		return r.getLocked(id)
	}
	return nil
}

// ChildrenOf returns the sidebar-visible children of the given project,
// sorted case-insensitively by label.
func (r *Registry) ChildrenOf(id models.ProjectID) []*models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Project
	for _, p := range r.projects {
		if p != nil && p.Parent == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

// All returns every registered project in registration order.
func (r *Registry) All() []*models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Project, 0, len(r.projects))
	for _, p := range r.projects {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of registered projects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

// Default returns the project flagged default, or nil.
func (r *Registry) Default() *models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLocked()
}

// Trash returns the project flagged trash, or nil.
func (r *Registry) Trash() *models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p != nil && p.IsTrash {
			return p
		}
	}
	return nil
}

// EnsureTrash locates or creates the trash directory for rootURL and
// registers it as a trash-flagged project. Calling it again returns the
// existing project. In single-file mode a missing trash directory is an
// error rather than created.
func (r *Registry) EnsureTrash(rootURL string) (*models.Project, error) {
	trashDir := filepath.Join(rootURL, TrashFolderName)

	if p := r.ByURL(trashDir); p != nil {
		return p, nil
	}
	if existing := r.Trash(); existing != nil {
		return existing, nil
	}

	if _, err := os.Stat(trashDir); err != nil {
		if r.singleFile {
			return nil, apperr.ErrNoTrash
		}
		if err := os.MkdirAll(trashDir, 0o755); err != nil {
			return nil, fmt.Errorf("registry: create trash: %w", err)
		}
	}

	p, err := r.NewProject(trashDir, "Trash", false)
	if err != nil {
		return nil, err
	}
	p.IsTrash = true
	prefs := p.Settings()
	prefs.ShowInCommon = false
	prefs.ShowInSidebar = false
	p.ApplySettings(prefs)
	r.Register(p)
	return p, nil
}

func (r *Registry) getLocked(id models.ProjectID) *models.Project {
	i := int(id) - 1
	if i < 0 || i >= len(r.projects) {
		return nil
	}
	return r.projects[i]
}

func (r *Registry) defaultLocked() *models.Project {
	for _, p := range r.projects {
		if p != nil && p.IsDefault {
			return p
		}
	}
	return nil
}

func (r *Registry) countLocked() int {
	n := 0
	for _, p := range r.projects {
		if p != nil {
			n++
		}
	}
	return n
}
