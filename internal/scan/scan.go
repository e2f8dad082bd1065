// Package scan reads project directories off disk: flat file listings for
// note discovery and a recursive walk for child-project discovery.
package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxNoteSize is the hard ceiling on indexable files. Files at or above this
// size are silently excluded from scan results.
const MaxNoteSize = 100_000_000

// maxTraversalEntries caps the recursive child-project walk so a runaway
// tree cannot stall registration.
const maxTraversalEntries = 50_000

// MaxProjects is the total project count past which child discovery stops
// registering new folders.
const MaxProjects = 100

var allowedExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// excludedFolders are directory names that never become child projects.
var excludedFolders = map[string]bool{
	"i":      true,
	"files":  true,
	"assets": true,
	".cache": true,
}

// AllowedExt reports whether the file name carries an indexable extension.
func AllowedExt(name string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}

// FileInfo is the metadata tuple returned for each eligible file.
type FileInfo struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
	CreatedAt  time.Time
}

// Scanner lists note files and eligible sub-folders. File-system errors are
// logged and reported as empty results; callers must tolerate zero entries.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// ListFiles returns metadata for every immediate child of dir whose extension
// is allowed, which is a regular non-hidden file, and which is under the size
// ceiling. Symlinks in the root are resolved before listing.
func (s *Scanner) ListFiles(dir string) []FileInfo {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		s.logger.Warn("scan: resolve failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		s.logger.Warn("scan: read dir failed", slog.String("dir", resolved), slog.String("error", err.Error()))
		return nil
	}

	var out []FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !allowedExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// File vanished mid-scan.
			continue
		}
		if !info.Mode().IsRegular() || info.Size() >= MaxNoteSize {
			continue
		}
		out = append(out, FileInfo{
			Path:       filepath.Join(resolved, name),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
			CreatedAt:  info.ModTime(),
		})
	}
	return out
}

// Subfolders walks root and returns directories eligible to become child
// projects, in traversal order. Excluded are the reserved folder names,
// anything on a Trash path, hidden folders, bundle-style folders (a dot in
// the name), and anything skip reports as already registered. The walk
// visits at most maxTraversalEntries entries and returns at most limit
// folders.
func (s *Scanner) Subfolders(root string, skip func(path string) bool, limit int) []string {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		s.logger.Warn("scan: resolve failed", slog.String("dir", root), slog.String("error", err.Error()))
		return nil
	}
	if limit <= 0 {
		return nil
	}

	var out []string
	visited := 0
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		visited++
		if visited > maxTraversalEntries {
			return fs.SkipAll
		}
		if !d.IsDir() || path == resolved {
			return nil
		}
		name := d.Name()
		switch {
		case excludedFolders[name]:
			return fs.SkipDir
		case strings.HasPrefix(name, "."):
			return fs.SkipDir
		case strings.Contains(name, "."):
			// Bundle-style package folder.
			return fs.SkipDir
		case strings.Contains(path, "Trash"):
			return fs.SkipDir
		}
		if skip != nil && skip(path) {
			return nil
		}
		out = append(out, path)
		if len(out) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		s.logger.Warn("scan: walk failed", slog.String("dir", resolved), slog.String("error", walkErr.Error()))
	}
	return out
}
