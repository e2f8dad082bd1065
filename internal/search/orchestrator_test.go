package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/noteindex"
)

// countingPublisher records every published result.
type countingPublisher struct {
	mu      sync.Mutex
	results [][]*models.Note
}

func (c *countingPublisher) publish(notes []*models.Note) {
	c.mu.Lock()
	c.results = append(c.results, notes)
	c.mu.Unlock()
}

func (c *countingPublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func newTestIndex(n int) *noteindex.Index {
	ix := noteindex.New()
	for i := 0; i < n; i++ {
		note := &models.Note{
			URL:       fmt.Sprintf("/lib/note-%03d.md", i),
			Name:      fmt.Sprintf("note-%03d.md", i),
			Project:   1,
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		}
		note.SetBody("body")
		ix.Insert(note)
	}
	return ix
}

func TestSearch_Synchronous(t *testing.T) {
	ix := newTestIndex(5)
	o := NewOrchestrator(ix, testProjects(), Config{}, nil, nil)
	defer o.Close()

	notes, cancelled, err := o.Search(context.Background(), "", projectScope(1), false)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled {
		t.Fatal("uncontested search reported cancelled")
	}
	if len(notes) != 5 {
		t.Errorf("len(notes) = %d, want 5", len(notes))
	}
	// Default key is modified, ascending by configuration zero value.
	if notes[0].Name != "note-000.md" {
		t.Errorf("first = %s, want note-000.md", notes[0].Name)
	}
}

func TestRun_SupersededRequestCancelled(t *testing.T) {
	ix := newTestIndex(5)
	o := NewOrchestrator(ix, testProjects(), Config{Debounce: 50 * time.Millisecond}, nil, nil)
	defer o.Close()

	first := make(chan Result, 1)
	second := make(chan Result, 1)
	o.Run(Request{Query: "note", Scope: projectScope(1), OnComplete: func(r Result) { first <- r }})
	o.Run(Request{Query: "note", Scope: projectScope(1), OnComplete: func(r Result) { second <- r }})

	select {
	case r := <-first:
		if !r.Cancelled {
			t.Error("superseded request completed uncancelled")
		}
		if r.Notes != nil {
			t.Error("superseded request carried notes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never completed")
	}

	select {
	case r := <-second:
		if r.Cancelled {
			t.Error("winning request reported cancelled")
		}
		if len(r.Notes) != 5 {
			t.Errorf("len = %d, want 5", len(r.Notes))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second request never completed")
	}
}

func TestSearch_InteractiveCap(t *testing.T) {
	ix := newTestIndex(150)
	o := NewOrchestrator(ix, testProjects(), Config{}, nil, nil)
	defer o.Close()

	notes, _, err := o.Search(context.Background(), "", projectScope(1), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != DefaultInteractiveLimit {
		t.Errorf("len = %d, want %d", len(notes), DefaultInteractiveLimit)
	}

	notes, _, err = o.Search(context.Background(), "", projectScope(1), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 150 {
		t.Errorf("uncapped len = %d, want 150", len(notes))
	}
}

func TestRun_PublishOnlyOnChange(t *testing.T) {
	ix := newTestIndex(3)
	pub := &countingPublisher{}
	o := NewOrchestrator(ix, testProjects(), Config{}, pub.publish, nil)
	defer o.Close()

	run := func() Result {
		done := make(chan Result, 1)
		o.Run(Request{Scope: projectScope(1), OnComplete: func(r Result) { done <- r }})
		select {
		case r := <-done:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("request never completed")
			return Result{}
		}
	}

	if r := run(); !r.Published {
		t.Error("first result not published")
	}
	if r := run(); r.Published {
		t.Error("identical result republished")
	}
	if pub.count() != 1 {
		t.Errorf("publish count = %d, want 1", pub.count())
	}

	// An index change makes the next pass publish again.
	extra := &models.Note{
		URL: "/lib/zzz.md", Name: "zzz.md", Project: 1,
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	extra.SetBody("")
	ix.Insert(extra)
	if r := run(); !r.Published {
		t.Error("changed result not published")
	}
}

func TestRefresh_RerunsLastRequest(t *testing.T) {
	ix := newTestIndex(2)
	pub := &countingPublisher{}
	o := NewOrchestrator(ix, testProjects(), Config{}, pub.publish, nil)
	defer o.Close()

	if _, _, err := o.Search(context.Background(), "", projectScope(1), false); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 1 {
		t.Fatalf("publish count = %d, want 1", pub.count())
	}

	extra := &models.Note{
		URL: "/lib/new.md", Name: "new.md", Project: 1,
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	extra.SetBody("")
	ix.Insert(extra)
	o.Refresh()

	deadline := time.After(2 * time.Second)
	for pub.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresh never republished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// gatedResolver blocks every lookup until gate is closed, holding a pass
// active for as long as a test needs.
type gatedResolver struct {
	projects fakeResolver
	gate     chan struct{}
	entered  chan struct{}
	once     sync.Once
}

func (g *gatedResolver) Project(id models.ProjectID) *models.Project {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.projects[id]
}

func TestRun_ReplacementWaitsOutDebounce(t *testing.T) {
	ix := newTestIndex(3)
	res := &gatedResolver{
		projects: testProjects(),
		gate:     make(chan struct{}),
		entered:  make(chan struct{}),
	}
	o := NewOrchestrator(ix, res, Config{Debounce: 250 * time.Millisecond}, nil, nil)
	defer o.Close()

	first := make(chan Result, 1)
	third := make(chan Result, 1)
	o.Run(Request{Query: "a", Scope: projectScope(1), OnComplete: func(r Result) { first <- r }})

	select {
	case <-res.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}

	// Queue a second request and let its debounce elapse while the first
	// pass is still blocked, then replace it. The replacement must wait out
	// its own debounce window instead of inheriting the fired one.
	o.Run(Request{Query: "b", Scope: projectScope(1)})
	time.Sleep(400 * time.Millisecond)
	submitted := time.Now()
	o.Run(Request{Query: "c", Scope: projectScope(1), OnComplete: func(r Result) { third <- r }})
	close(res.gate)

	select {
	case r := <-first:
		if !r.Cancelled {
			t.Error("superseded first request completed uncancelled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never completed")
	}
	select {
	case <-third:
		if elapsed := time.Since(submitted); elapsed < 200*time.Millisecond {
			t.Errorf("replacement ran after %v, before its debounce window", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement never completed")
	}
}

func TestSearch_ConcurrentPinAndSettingsWrites(t *testing.T) {
	ix := newTestIndex(20)
	projects := testProjects()
	o := NewOrchestrator(ix, projects, Config{}, nil, nil)
	defer o.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		notes := ix.All()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			notes[i%len(notes)].SetPinned(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		p := projects[1]
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			s := p.Settings()
			s.SortKey = models.SortByTitle
			s.ShowInCommon = i%2 == 0
			p.ApplySettings(s)
		}
	}()

	// Pin and settings writes race with filter and sort reads; the race
	// detector verifies the accessors keep them safe.
	for i := 0; i < 25; i++ {
		notes, cancelled, err := o.Search(context.Background(), "note", projectScope(1), true)
		if err != nil {
			t.Fatal(err)
		}
		if !cancelled && len(notes) != 20 {
			t.Fatalf("len = %d, want 20", len(notes))
		}
	}
	close(stop)
	wg.Wait()
}

func TestRun_AfterClose(t *testing.T) {
	ix := newTestIndex(1)
	o := NewOrchestrator(ix, testProjects(), Config{}, nil, nil)
	o.Close()

	done := make(chan Result, 1)
	o.Run(Request{Scope: projectScope(1), OnComplete: func(r Result) { done <- r }})
	select {
	case r := <-done:
		if !r.Cancelled {
			t.Error("post-close request completed uncancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("post-close request never completed")
	}
}
