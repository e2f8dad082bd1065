// Package library coordinates the scanner, registry, note index, and
// settings store behind one service. It is the mutation surface the API,
// MCP server, and watcher share.
package library

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avhall/notarius/internal/apperr"
	"github.com/avhall/notarius/internal/checksum"
	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/noteindex"
	"github.com/avhall/notarius/internal/parser"
	"github.com/avhall/notarius/internal/registry"
	"github.com/avhall/notarius/internal/scan"
	"github.com/avhall/notarius/internal/settings"
)

// Service ties the storage-facing pieces together.
type Service struct {
	reg     *registry.Registry
	index   *noteindex.Index
	scanner *scan.Scanner
	store   *settings.Store
	logger  *slog.Logger

	mu       sync.Mutex
	openPath string // note currently open for editing; loads must not clobber it
}

// NewService creates a library service.
func NewService(reg *registry.Registry, index *noteindex.Index, scanner *scan.Scanner, store *settings.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reg: reg, index: index, scanner: scanner, store: store, logger: logger}
}

// Registry exposes the project registry.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Index exposes the note index.
func (s *Service) Index() *noteindex.Index { return s.index }

// SetOpenNote records the note currently open for editing. An empty path
// clears the indicator.
func (s *Service) SetOpenNote(path string) {
	s.mu.Lock()
	s.openPath = path
	s.mu.Unlock()
}

// OpenNote returns the currently open note path, or empty.
func (s *Service) OpenNote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPath
}

func (s *Service) isOpen(path string) bool {
	open := s.OpenNote()
	return open != "" && filepath.Clean(open) == filepath.Clean(path)
}

// RegisterRoot registers path as a root project (discovering children) and
// loads every newly added project. isDefault marks the configured storage
// root; only the first default sticks.
func (s *Service) RegisterRoot(path string, isDefault bool) ([]*models.Project, error) {
	p, err := s.reg.NewProject(path, "", true)
	if err != nil {
		return nil, err
	}
	p.IsDefault = isDefault
	added := s.reg.Register(p)
	for _, a := range added {
		s.LoadProject(a, false)
	}
	return added, nil
}

// Unregister removes a project and, transitively, its children; every
// removed project's notes are cascade-removed from the index first.
func (s *Service) Unregister(id models.ProjectID) {
	for _, child := range s.reg.ChildrenOf(id) {
		s.Unregister(child.ID)
	}
	removed := s.index.RemoveProject(id)
	if p := s.reg.Unregister(id); p != nil {
		s.logger.Info("library: project removed",
			slog.String("url", p.URL), slog.Int("notes", removed))
	}
}

// LoadProject scans the project's directory and indexes every eligible file,
// skipping the note currently open for editing. With includeContent the body
// is read and parsed eagerly; otherwise content loads lazily on first use.
// Returns the number of notes added or refreshed.
func (s *Service) LoadProject(p *models.Project, includeContent bool) int {
	loaded := 0
	for _, f := range s.scanner.ListFiles(p.URL) {
		if s.isOpen(f.Path) {
			continue
		}
		if existing := s.index.ByPath(f.Path); existing != nil {
			if existing.UpdatedAt.Equal(f.ModifiedAt) {
				continue
			}
			s.index.Remove(existing)
		}
		n := s.buildNote(f, p.ID, includeContent)
		if s.index.Insert(n) {
			loaded++
		}
	}
	return loaded
}

// LoadAll loads every registered project.
func (s *Service) LoadAll(includeContent bool) int {
	total := 0
	for _, p := range s.reg.All() {
		total += s.LoadProject(p, includeContent)
	}
	return total
}

// ReloadFile refreshes one file in the index after an external change.
// Files outside registered projects, ineligible files, and the note open
// for editing are ignored. Reports whether the index changed.
func (s *Service) ReloadFile(path string) bool {
	if !scan.AllowedExt(path) || s.isOpen(path) {
		return false
	}
	p := s.reg.ByURL(filepath.Dir(path))
	if p == nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() >= scan.MaxNoteSize {
		return false
	}
	if existing := s.index.ByPath(path); existing != nil {
		if existing.UpdatedAt.Equal(info.ModTime()) {
			return false
		}
		s.index.Remove(existing)
	}
	n := s.buildNote(scan.FileInfo{
		Path:       path,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		CreatedAt:  info.ModTime(),
	}, p.ID, true)
	return s.index.Insert(n)
}

// RemoveFile drops the note at path from the index. Reports whether a note
// was removed.
func (s *Service) RemoveFile(path string) bool {
	return s.index.RemoveByPath(path) != nil
}

// CreateNote writes a new note file into the project and indexes it. The
// name gets a .md extension when it carries none.
func (s *Service) CreateNote(projectID models.ProjectID, name string, content []byte) (*models.Note, error) {
	p := s.reg.Project(projectID)
	if p == nil {
		return nil, apperr.ErrNotFound
	}
	if filepath.Ext(name) == "" {
		name += ".md"
	}
	if !scan.AllowedExt(name) || strings.ContainsRune(name, os.PathSeparator) {
		return nil, fmt.Errorf("library: invalid note name %q", name)
	}
	path := filepath.Join(p.URL, name)
	if _, err := os.Stat(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := writeAtomic(path, content); err != nil {
		return nil, err
	}
	now := time.Now()
	n := s.buildNote(scan.FileInfo{
		Path:       path,
		Size:       int64(len(content)),
		ModifiedAt: now,
		CreatedAt:  now,
	}, p.ID, true)
	s.index.Insert(n)
	return n, nil
}

// TrashNote moves the note at path into the trash project, re-indexing it
// there. A persisted pin follows the file.
func (s *Service) TrashNote(path string) error {
	n := s.index.ByPath(path)
	if n == nil {
		return apperr.ErrNotFound
	}
	trash := s.reg.Trash()
	if trash == nil {
		return apperr.ErrNoTrash
	}
	dest := filepath.Join(trash.URL, n.Name)
	// Avoid clobbering an earlier trashed note with the same name.
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); err != nil {
			break
		}
		ext := filepath.Ext(n.Name)
		stem := strings.TrimSuffix(n.Name, ext)
		dest = filepath.Join(trash.URL, fmt.Sprintf("%s %d%s", stem, i, ext))
	}
	if err := os.Rename(n.URL, dest); err != nil {
		return fmt.Errorf("library: trash %s: %w", n.URL, err)
	}
	s.index.Remove(n)
	pinned := n.Pinned()
	if pinned && s.store != nil {
		_ = s.store.SetPinned(n.URL, false)
		_ = s.store.SetPinned(dest, true)
	}
	moved := &models.Note{
		URL:       dest,
		Name:      filepath.Base(dest),
		Title:     n.Title,
		Checksum:  n.Checksum,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		Project:   trash.ID,
	}
	moved.SetPinned(pinned)
	s.index.Insert(moved)
	return nil
}

// SetPinned toggles a note's pinned flag and persists it.
func (s *Service) SetPinned(path string, pinned bool) error {
	n := s.index.ByPath(path)
	if n == nil {
		return apperr.ErrNotFound
	}
	n.SetPinned(pinned)
	if s.store != nil {
		return s.store.SetPinned(n.URL, pinned)
	}
	return nil
}

// SaveProjectSettings applies and persists sort and visibility preferences.
func (s *Service) SaveProjectSettings(id models.ProjectID, prefs settings.Project) error {
	p := s.reg.Project(id)
	if p == nil {
		return apperr.ErrNotFound
	}
	p.ApplySettings(models.ProjectSettings{
		SortKey:       prefs.SortKey,
		SortOrder:     prefs.SortOrder,
		ShowInCommon:  prefs.ShowInCommon,
		ShowInSidebar: prefs.ShowInSidebar,
	})
	if s.store == nil {
		return nil
	}
	return s.store.SaveProject(p.URL, prefs)
}

// buildNote constructs a Note for a scanned file, restoring the persisted
// pin flag and, when eager, the parsed body, title, and creation date.
func (s *Service) buildNote(f scan.FileInfo, project models.ProjectID, includeContent bool) *models.Note {
	n := &models.Note{
		URL:       f.Path,
		Name:      filepath.Base(f.Path),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.ModifiedAt,
		Project:   project,
	}
	if s.store != nil {
		n.SetPinned(s.store.IsPinned(f.Path))
	}
	if includeContent {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			s.logger.Warn("library: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			return n
		}
		res := parser.Parse(data)
		n.SetBody(res.Body)
		n.Title = res.Title
		n.Checksum = checksum.Sum(data)
		if !res.Created.IsZero() {
			n.CreatedAt = res.Created
		}
	}
	return n
}

// writeAtomic writes content via tmp file, fsync, and rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".notarius-tmp-*")
	if err != nil {
		return fmt.Errorf("library: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("library: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("library: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("library: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("library: rename: %w", err)
	}
	success = true
	return nil
}
