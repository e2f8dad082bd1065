package search

import "testing"

func TestToken(t *testing.T) {
	tok := NewToken()
	if tok.Cancelled() {
		t.Error("fresh token reports cancelled")
	}
	tok.Cancel()
	if !tok.Cancelled() {
		t.Error("cancelled token reports live")
	}
	// Cancelling twice is fine.
	tok.Cancel()
}

func TestToken_NilSafe(t *testing.T) {
	var tok *Token
	if tok.Cancelled() {
		t.Error("nil token must report not cancelled")
	}
	tok.Cancel()
}
