package search

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/noteindex"
)

// DefaultInteractiveLimit caps accumulated matches in interactive mode. The
// cap is applied during the filter scan, before sorting.
const DefaultInteractiveLimit = 100

// Request is one search pass: a free-text query plus a structural scope.
// Interactive requests are capped; OnComplete, if set, is invoked exactly
// once on the orchestration loop whatever the outcome. Callbacks must return
// quickly.
type Request struct {
	Query       string
	Scope       models.Scope
	Interactive bool
	OnComplete  func(Result)
}

// Result is the outcome of one request.
type Result struct {
	Notes     []*models.Note
	Cancelled bool
	Published bool
}

// Publisher receives each ordered result that differs from the previously
// published one.
type Publisher func(notes []*models.Note)

// Config tunes the orchestrator.
type Config struct {
	Debounce         time.Duration
	InteractiveLimit int
	SortKey          models.SortKey
	SortOrder        models.SortOrder
}

// Orchestrator coordinates asynchronous, cancellable search passes.
//
// Concurrency model: a single internal event loop owns all mutable state
// (queued/active request, debounce timer, last published result). Issuing a
// new request cancels the in-flight token; the pass itself runs off-loop and
// marshals its outcome back before anything is published or completed, so at
// most one pass is active and completions are serialized.
type Orchestrator struct {
	index    *noteindex.Index
	projects ProjectResolver
	publish  Publisher
	cfg      Config
	logger   *slog.Logger

	requestCh chan *pending
	refreshCh chan struct{}
	stopCh    chan struct{}
	stopped   chan struct{}
	closed    atomic.Bool
}

type pending struct {
	req Request
	tok *Token
}

type passOutcome struct {
	p     *pending
	notes []*models.Note
}

// NewOrchestrator creates and starts an orchestrator. publish may be nil.
func NewOrchestrator(index *noteindex.Index, projects ProjectResolver, cfg Config, publish Publisher, logger *slog.Logger) *Orchestrator {
	if cfg.InteractiveLimit <= 0 {
		cfg.InteractiveLimit = DefaultInteractiveLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		index:     index,
		projects:  projects,
		publish:   publish,
		cfg:       cfg,
		logger:    logger,
		requestCh: make(chan *pending),
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go o.run()
	return o
}

// Run submits a request. The previous in-flight pass, if any, is cancelled.
// After Close the request completes immediately as cancelled.
func (o *Orchestrator) Run(req Request) {
	p := &pending{req: req, tok: NewToken()}
	if o.closed.Load() {
		p.tok.Cancel()
		complete(p, Result{Cancelled: true})
		return
	}
	select {
	case o.requestCh <- p:
	case <-o.stopped:
		p.tok.Cancel()
		complete(p, Result{Cancelled: true})
	}
}

// Refresh re-runs the most recent request, if any. Used after index
// mutations (watcher events, loads) to keep the published result current.
func (o *Orchestrator) Refresh() {
	if o.closed.Load() {
		return
	}
	select {
	case o.refreshCh <- struct{}{}:
	default:
	}
}

// Search runs a request synchronously, honoring ctx for the wait only. A
// superseded pass returns with cancelled=true and no notes.
func (o *Orchestrator) Search(ctx context.Context, query string, scope models.Scope, interactive bool) ([]*models.Note, bool, error) {
	done := make(chan Result, 1)
	o.Run(Request{
		Query:       query,
		Scope:       scope,
		Interactive: interactive,
		OnComplete:  func(r Result) { done <- r },
	})
	select {
	case r := <-done:
		return r.Notes, r.Cancelled, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close stops the loop. In-flight work is cancelled and discarded.
func (o *Orchestrator) Close() {
	if o.closed.CompareAndSwap(false, true) {
		close(o.stopCh)
	}
	<-o.stopped
}

func (o *Orchestrator) run() {
	defer close(o.stopped)

	var (
		queued      *pending
		queuedReady bool
		active      *pending
		last        []*models.Note
		lastReq     *Request
		timer       *time.Timer
		timerC      <-chan time.Time
	)
	doneCh := make(chan passOutcome, 1)

	resetTimer := func() {
		d := o.cfg.Debounce
		if d < 0 {
			d = 0
		}
		if timer == nil {
			timer = time.NewTimer(d)
			timerC = timer.C
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		}
	}

	start := func(p *pending) {
		active = p
		queuedReady = false
		go func() {
			notes := o.runPass(p)
			doneCh <- passOutcome{p: p, notes: notes}
		}()
	}

	for {
		select {
		case <-o.stopCh:
			if timer != nil {
				timer.Stop()
			}
			if active != nil {
				active.tok.Cancel()
			}
			if queued != nil {
				queued.tok.Cancel()
				complete(queued, Result{Cancelled: true})
			}
			return

		case p := <-o.requestCh:
			if active != nil {
				active.tok.Cancel()
			}
			if queued != nil {
				// Superseded before it ever ran.
				queued.tok.Cancel()
				complete(queued, Result{Cancelled: true})
			}
			queued = p
			// The replacement gets its own debounce window even when the
			// superseded request's timer had already fired.
			queuedReady = false
			r := p.req
			lastReq = &r
			resetTimer()

		case <-o.refreshCh:
			if lastReq == nil {
				continue
			}
			if active != nil {
				active.tok.Cancel()
			}
			if queued == nil {
				queued = &pending{req: Request{
					Query:       lastReq.Query,
					Scope:       lastReq.Scope,
					Interactive: lastReq.Interactive,
				}, tok: NewToken()}
				resetTimer()
			}

		case <-timerC:
			if queued == nil {
				continue
			}
			if active != nil {
				queuedReady = true
				continue
			}
			p := queued
			queued = nil
			start(p)

		case out := <-doneCh:
			p := out.p
			active = nil
			if p.tok.Cancelled() {
				complete(p, Result{Cancelled: true})
			} else {
				published := false
				if !sameOrder(out.notes, last) {
					last = out.notes
					published = true
					if o.publish != nil {
						o.publish(out.notes)
					}
					o.logger.Debug("search: published",
						slog.Int("count", len(out.notes)),
						slog.String("query", p.req.Query))
				}
				complete(p, Result{Notes: out.notes, Published: published})
			}
			if queued != nil && queuedReady {
				next := queued
				queued = nil
				start(next)
			}
		}
	}
}

// runPass executes filter then sort off the loop. A cancelled pass returns
// nil; the loop discards it.
func (o *Orchestrator) runPass(p *pending) []*models.Note {
	req := p.req
	proj := o.scopeProject(req.Scope)
	key := o.cfg.SortKey
	if proj != nil {
		if k := proj.SortKey(); k != models.SortDefault {
			key = k
		}
	}

	// Title sort compares derived titles, so make sure candidates have one
	// before ordering by it.
	if key == models.SortByTitle {
		o.ensureTitles(req.Scope, p.tok)
	}

	limit := 0
	if req.Interactive {
		limit = o.cfg.InteractiveLimit
	}

	var matched []*models.Note
	for _, n := range o.index.All() {
		if p.tok.Cancelled() {
			return nil
		}
		if !Matches(n, req.Query, req.Scope, o.projects) {
			continue
		}
		matched = append(matched, n)
		if limit > 0 && len(matched) >= limit {
			// Cap reached: truncation happens before the sort.
			break
		}
	}
	if p.tok.Cancelled() {
		return nil
	}

	Sort(matched, req.Query, proj, o.cfg.SortKey, o.cfg.SortOrder, p.tok)
	return matched
}

// scopeProject returns the single explicit candidate project, when the scope
// names exactly one; only then does a per-project sort override apply.
func (o *Orchestrator) scopeProject(scope models.Scope) *models.Project {
	if scope.Category != models.CategoryProject || len(scope.Projects) != 1 {
		return nil
	}
	return o.projects.Project(scope.Projects[0])
}

// ensureTitles eagerly loads content-derived titles for notes in the scope's
// candidate projects.
func (o *Orchestrator) ensureTitles(scope models.Scope, tok *Token) {
	for _, n := range o.index.All() {
		if tok.Cancelled() {
			return
		}
		if scope.Category == models.CategoryProject && !scope.HasProject(n.Project) {
			continue
		}
		if n.Title == "" && !n.Loaded() {
			n.Body()
		}
	}
}

func complete(p *pending, r Result) {
	if p.req.OnComplete != nil {
		p.req.OnComplete(r)
	}
}

// sameOrder reports whether two results contain the same notes in the same
// order. Used to skip republishing identical results.
func sameOrder(a, b []*models.Note) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
