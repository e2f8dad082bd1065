package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDisplayTitle(t *testing.T) {
	n := &Note{Name: "meeting notes.md"}
	if got := n.DisplayTitle(); got != "meeting notes" {
		t.Errorf("DisplayTitle = %q, want name stem", got)
	}
	n.Title = "Weekly Sync"
	if got := n.DisplayTitle(); got != "Weekly Sync" {
		t.Errorf("DisplayTitle = %q, want the title", got)
	}
}

func TestBody_LazyLoadFillsMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	content := "---\ntitle: Loaded Title\ncreated: 2023-06-15\n---\nthe body\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	n := &Note{URL: path, Name: "note.md"}
	if n.Loaded() {
		t.Fatal("fresh note reports loaded")
	}
	if got := n.Body(); got != "the body\n" {
		t.Errorf("body = %q", got)
	}
	if !n.Loaded() {
		t.Error("note not marked loaded")
	}
	if n.Title != "Loaded Title" {
		t.Errorf("title = %q, want Loaded Title", n.Title)
	}
	want := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	if !n.CreatedAt.Equal(want) {
		t.Errorf("created = %v, want %v", n.CreatedAt, want)
	}
}

func TestBody_ExplicitBeatsLazy(t *testing.T) {
	n := &Note{URL: "/nonexistent.md", Name: "x.md"}
	n.SetBody("preset")
	if got := n.Body(); got != "preset" {
		t.Errorf("body = %q, want preset", got)
	}
}

func TestBody_MissingFile(t *testing.T) {
	n := &Note{URL: "/nonexistent.md", Name: "x.md"}
	if got := n.Body(); got != "" {
		t.Errorf("body = %q, want empty", got)
	}
	// The failed read is cached; no retry on every call.
	if !n.Loaded() {
		t.Error("missing file not marked loaded")
	}
}

func TestSortKeyRoundTrip(t *testing.T) {
	for _, k := range []SortKey{SortDefault, SortByTitle, SortByCreated, SortByModified} {
		if got := ParseSortKey(k.String()); got != k {
			t.Errorf("ParseSortKey(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseSortKey("bogus") != SortDefault {
		t.Error("unknown spelling must map to SortDefault")
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	for _, c := range []Category{CategoryProject, CategoryAll, CategoryTrash} {
		if got := ParseCategory(c.String()); got != c {
			t.Errorf("ParseCategory(%q) = %v, want %v", c.String(), got, c)
		}
	}
}

func TestScopeHasProject(t *testing.T) {
	s := Scope{Projects: []ProjectID{2, 5}}
	if !s.HasProject(5) || s.HasProject(3) {
		t.Error("HasProject membership wrong")
	}
}
