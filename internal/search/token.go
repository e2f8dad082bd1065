package search

import "sync/atomic"

// Token is a cooperative cancellation flag. The orchestrator owns one per
// request and cancels it when a newer request supersedes the pass; filter
// and sort check it at defined yield points. A nil token never cancels.
type Token struct {
	cancelled atomic.Bool
}

// NewToken creates an uncancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel sets the flag. Idempotent.
func (t *Token) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Cancelled reports whether the token was cancelled.
func (t *Token) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}
