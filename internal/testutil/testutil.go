// Package testutil provides shared test helpers for setting up libraries and
// settings databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/noteindex"
	"github.com/avhall/notarius/internal/registry"
	"github.com/avhall/notarius/internal/scan"
	"github.com/avhall/notarius/internal/settings"
)

// TestStore creates a temporary settings database that is automatically
// cleaned up.
func TestStore(t *testing.T) *settings.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notarius-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := settings.Open(dbFile.Name(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestLibrary creates a temporary library root with a fully wired service.
// The root is registered as the default project.
func TestLibrary(t *testing.T) (string, *library.Service) {
	t.Helper()
	root := t.TempDir()
	store := TestStore(t)
	scanner := scan.New(nil)
	reg := registry.New(scanner, store, false, nil)
	index := noteindex.New()
	svc := library.NewService(reg, index, scanner, store, nil)
	if _, err := svc.RegisterRoot(root, true); err != nil {
		t.Fatal(err)
	}
	return root, svc
}

// WriteNote writes a note file under dir and returns its path.
func WriteNote(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
