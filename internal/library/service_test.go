package library_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avhall/notarius/internal/apperr"
	"github.com/avhall/notarius/internal/testutil"
)

func TestRegisterRoot_LoadsNotes(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	// Empty root was already registered; add a folder and reload.
	sub := filepath.Join(root, "work")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteNote(t, sub, "plan.md", "# Plan\ncontent")

	added, err := svc.RegisterRoot(sub, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 {
		t.Fatalf("len(added) = %d, want 1", len(added))
	}
	n := svc.Index().ByPath(filepath.Join(sub, "plan.md"))
	if n == nil {
		t.Fatal("note not indexed")
	}
	if n.Project != added[0].ID {
		t.Errorf("note project = %d, want %d", n.Project, added[0].ID)
	}
}

func TestCreateNote(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	def := svc.Registry().Default()
	if def == nil {
		t.Fatal("no default project")
	}

	n, err := svc.CreateNote(def.ID, "idea", []byte("# Idea\ntext"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != "idea.md" {
		t.Errorf("name = %q, want idea.md", n.Name)
	}
	if n.Title != "Idea" {
		t.Errorf("title = %q, want Idea", n.Title)
	}
	if _, err := os.Stat(filepath.Join(root, "idea.md")); err != nil {
		t.Errorf("file not written: %v", err)
	}
	if svc.Index().ByPath(n.URL) != n {
		t.Error("note not indexed")
	}

	if _, err := svc.CreateNote(def.ID, "idea.md", nil); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.CreateNote(def.ID, "evil/../../escape.md", nil); err == nil {
		t.Error("path separator in name accepted")
	}
	if _, err := svc.CreateNote(999, "x.md", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown project err = %v, want ErrNotFound", err)
	}
}

func TestTrashNote_MovesFileAndKeepsPin(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	def := svc.Registry().Default()
	if _, err := svc.Registry().EnsureTrash(def.URL); err != nil {
		t.Fatal(err)
	}

	n, err := svc.CreateNote(def.ID, "doomed.md", []byte("bye"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SetPinned(n.URL, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.TrashNote(n.URL); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(n.URL); !os.IsNotExist(err) {
		t.Error("original file still present")
	}
	trashed := filepath.Join(root, ".Trash", "doomed.md")
	if _, err := os.Stat(trashed); err != nil {
		t.Errorf("trashed file missing: %v", err)
	}
	moved := svc.Index().ByPath(trashed)
	if moved == nil {
		t.Fatal("trashed note not re-indexed")
	}
	if !moved.Pinned() {
		t.Error("pin did not follow the file")
	}
	if moved.Project != svc.Registry().Trash().ID {
		t.Error("trashed note not owned by the trash project")
	}

	if err := svc.TrashNote(n.URL); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second trash err = %v, want ErrNotFound", err)
	}
}

func TestTrashNote_CollisionSuffix(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	def := svc.Registry().Default()
	if _, err := svc.Registry().EnsureTrash(def.URL); err != nil {
		t.Fatal(err)
	}

	first, err := svc.CreateNote(def.ID, "dup.md", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.TrashNote(first.URL); err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateNote(def.ID, "dup.md", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.TrashNote(second.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".Trash", "dup 1.md")); err != nil {
		t.Errorf("suffixed trash entry missing: %v", err)
	}
}

func TestTrashNote_NoTrashProject(t *testing.T) {
	_, svc := testutil.TestLibrary(t)
	def := svc.Registry().Default()
	n, err := svc.CreateNote(def.ID, "x.md", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.TrashNote(n.URL); !errors.Is(err, apperr.ErrNoTrash) {
		t.Errorf("err = %v, want ErrNoTrash", err)
	}
}

func TestReloadFile(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	path := testutil.WriteNote(t, root, "live.md", "v1")

	if !svc.ReloadFile(path) {
		t.Fatal("new file not indexed")
	}
	n := svc.Index().ByPath(path)
	if n == nil || n.Body() != "v1" {
		t.Fatalf("body = %q, want v1", n.Body())
	}

	// Unchanged mtime means no reload.
	if svc.ReloadFile(path) {
		t.Error("unchanged file re-indexed")
	}

	// A content change with a newer mtime replaces the entry.
	time.Sleep(10 * time.Millisecond)
	testutil.WriteNote(t, root, "live.md", "v2")
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if !svc.ReloadFile(path) {
		t.Fatal("changed file not re-indexed")
	}
	if got := svc.Index().ByPath(path).Body(); got != "v2" {
		t.Errorf("body = %q, want v2", got)
	}

	if svc.ReloadFile(filepath.Join(root, "image.png")) {
		t.Error("ineligible extension indexed")
	}
	if svc.ReloadFile(filepath.Join(t.TempDir(), "outside.md")) {
		t.Error("file outside registered projects indexed")
	}
}

func TestReloadFile_SkipsOpenNote(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	path := testutil.WriteNote(t, root, "editing.md", "draft")

	svc.SetOpenNote(path)
	if svc.ReloadFile(path) {
		t.Error("open note was reloaded")
	}
	svc.SetOpenNote("")
	if !svc.ReloadFile(path) {
		t.Error("closed note not reloaded")
	}
}

func TestRemoveFile(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	path := testutil.WriteNote(t, root, "gone.md", "x")
	if !svc.ReloadFile(path) {
		t.Fatal("file not indexed")
	}
	if !svc.RemoveFile(path) {
		t.Error("indexed file not removed")
	}
	if svc.RemoveFile(path) {
		t.Error("second removal reported a change")
	}
}

func TestUnregister_CascadesChildrenAndNotes(t *testing.T) {
	root, svc := testutil.TestLibrary(t)
	sub := filepath.Join(root, "area")
	nested := filepath.Join(sub, "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteNote(t, sub, "a.md", "x")
	testutil.WriteNote(t, nested, "b.md", "y")

	added, err := svc.RegisterRoot(sub, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 2 {
		t.Fatalf("len(added) = %d, want parent and child", len(added))
	}
	if svc.Index().Len() != 2 {
		t.Fatalf("index len = %d, want 2", svc.Index().Len())
	}

	svc.Unregister(added[0].ID)
	if svc.Index().Len() != 0 {
		t.Errorf("index len = %d after cascade, want 0", svc.Index().Len())
	}
	if svc.Registry().Project(added[1].ID) != nil {
		t.Error("child project survived cascade")
	}
}

func TestSetPinned_UnknownNote(t *testing.T) {
	_, svc := testutil.TestLibrary(t)
	if err := svc.SetPinned("/nowhere.md", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
