package search

import (
	"testing"
	"time"

	"github.com/avhall/notarius/internal/models"
)

func sortNote(name, title string, pinned bool, created, updated time.Time) *models.Note {
	n := &models.Note{
		URL:       "/lib/" + name,
		Name:      name,
		Title:     title,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	n.SetPinned(pinned)
	return n
}

func names(notes []*models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Name
	}
	return out
}

func at(h int) time.Time {
	return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
}

func TestSort_DefaultIsModifiedDescendingWhenConfigured(t *testing.T) {
	notes := []*models.Note{
		sortNote("old.md", "", false, at(1), at(1)),
		sortNote("new.md", "", false, at(2), at(3)),
		sortNote("mid.md", "", false, at(2), at(2)),
	}
	Sort(notes, "", nil, models.SortDefault, models.SortDescending, nil)
	want := []string{"new.md", "mid.md", "old.md"}
	got := names(notes)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSort_PinnedFirst(t *testing.T) {
	notes := []*models.Note{
		sortNote("b.md", "", false, at(1), at(5)),
		sortNote("a.md", "", true, at(1), at(1)),
	}
	Sort(notes, "", nil, models.SortByModified, models.SortDescending, nil)
	if notes[0].Name != "a.md" {
		t.Errorf("order = %v, pinned must lead", names(notes))
	}
}

func TestSort_QueryPrefixBeatsPin(t *testing.T) {
	notes := []*models.Note{
		sortNote("pinned.md", "Zeta", true, at(1), at(5)),
		sortNote("match.md", "Alpha Plan", false, at(1), at(1)),
	}
	Sort(notes, "alp", nil, models.SortByModified, models.SortDescending, nil)
	if notes[0].Name != "match.md" {
		t.Errorf("order = %v, query-prefix match must lead", names(notes))
	}
}

func TestSort_ByTitleUsesDisplayTitle(t *testing.T) {
	notes := []*models.Note{
		sortNote("zebra.md", "", false, at(1), at(1)), // display title "zebra"
		sortNote("x.md", "Apple", false, at(1), at(1)),
		sortNote("y.md", "mango", false, at(1), at(1)),
	}
	Sort(notes, "", nil, models.SortByTitle, models.SortAscending, nil)
	want := []string{"x.md", "y.md", "zebra.md"}
	got := names(notes)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSort_ByCreatedAscending(t *testing.T) {
	notes := []*models.Note{
		sortNote("late.md", "", false, at(9), at(1)),
		sortNote("early.md", "", false, at(1), at(9)),
	}
	Sort(notes, "", nil, models.SortByCreated, models.SortAscending, nil)
	if notes[0].Name != "early.md" {
		t.Errorf("order = %v, want created-ascending", names(notes))
	}
}

func TestSort_ProjectOverride(t *testing.T) {
	project := &models.Project{ID: 1}
	project.ApplySettings(models.ProjectSettings{
		SortKey:   models.SortByTitle,
		SortOrder: models.SortDescending,
	})
	notes := []*models.Note{
		sortNote("a.md", "Apple", false, at(1), at(9)),
		sortNote("z.md", "Zebra", false, at(1), at(1)),
	}
	// Global key says modified-descending; the override flips to title-desc.
	Sort(notes, "", project, models.SortByModified, models.SortDescending, nil)
	if notes[0].Name != "z.md" {
		t.Errorf("order = %v, project override not applied", names(notes))
	}

	// A default-key project leaves the global key in force.
	noOverride := &models.Project{ID: 2}
	Sort(notes, "", noOverride, models.SortByTitle, models.SortAscending, nil)
	if notes[0].Name != "a.md" {
		t.Errorf("order = %v, global key not applied", names(notes))
	}
}

func TestSort_CancelledTokenFreezesOrder(t *testing.T) {
	tok := NewToken()
	tok.Cancel()
	notes := []*models.Note{
		sortNote("b.md", "", false, at(1), at(1)),
		sortNote("a.md", "", false, at(1), at(9)),
	}
	// Must not panic; the result order is unspecified.
	Sort(notes, "", nil, models.SortByModified, models.SortDescending, tok)
	if len(notes) != 2 {
		t.Fatalf("len = %d, want 2", len(notes))
	}
}
