// Package models defines the domain types for notarius.
package models

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avhall/notarius/internal/parser"
)

// Note represents one text document indexed from a project.
//
// Content may be loaded lazily: a note discovered by a scan without eager
// loading carries only file metadata until Body is first called.
type Note struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Project   ProjectID `json:"project"`

	mu     sync.Mutex
	body   string
	loaded bool
	pinned bool
}

// Pinned reports whether the note is pinned.
func (n *Note) Pinned() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pinned
}

// SetPinned sets the note's pinned flag. A handler may toggle it while a
// search pass reads it, hence the lock.
func (n *Note) SetPinned(pinned bool) {
	n.mu.Lock()
	n.pinned = pinned
	n.mu.Unlock()
}

// SetBody stores parsed content on the note, marking it loaded.
func (n *Note) SetBody(body string) {
	n.mu.Lock()
	n.body = body
	n.loaded = true
	n.mu.Unlock()
}

// Loaded reports whether the note's content has been read.
func (n *Note) Loaded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded
}

// Body returns the note's text content, reading and caching it from disk on
// first use. A note whose file cannot be read yields an empty body; the
// absence is not an error.
func (n *Note) Body() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.loaded {
		return n.body
	}
	n.loaded = true
	data, err := os.ReadFile(n.URL)
	if err != nil {
		return ""
	}
	res := parser.Parse(data)
	n.body = res.Body
	if n.Title == "" && res.Title != "" {
		n.Title = res.Title
	}
	if n.CreatedAt.IsZero() && !res.Created.IsZero() {
		n.CreatedAt = res.Created
	}
	return n.body
}

// DisplayTitle returns the derived title, falling back to the file name
// without its extension.
func (n *Note) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return strings.TrimSuffix(n.Name, filepath.Ext(n.Name))
}
