package session

import (
	"sync"

	"github.com/skylens-io/skylens/internal/view"
)

// Page is one visual slot in a session. It owns at most one view and
// remembers the page it was derived from; SourceID 0 marks a root page
// (the initial load). Pages are created by their session and destroyed by
// explicit removal.
type Page struct {
	// ID is session-unique and monotonically assigned, starting at 1.
	ID int
	// SourceID is the causal parent page, 0 for roots.
	SourceID int
	Title    string

	mu        sync.Mutex
	view      view.View
	lastError string
}

// View returns the page's current view, nil if none is attached yet.
func (p *Page) View() view.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// SetView replaces the page's view. Views are replaced, never mutated, on
// refresh.
func (p *Page) SetView(v view.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = v
	p.lastError = ""
}

// ReportError records a user-visible failure on this page. Remote and
// user-actionable failures land here; they never crash the session.
func (p *Page) ReportError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = msg
}

// LastError returns the most recent failure reported on this page, empty
// if the last operation succeeded.
func (p *Page) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}
