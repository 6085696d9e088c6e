// Package session owns the ordered set of result pages for one loaded
// dataset, the selection used as the left operand of a combine, and the
// save/restore protocol for the whole session. The hosting application
// holds sessions explicitly; there is no process-wide registry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skylens-io/skylens/internal/history"
	"github.com/skylens-io/skylens/internal/remote"
	"github.com/skylens-io/skylens/internal/view"
	"github.com/skylens-io/skylens/pkg/core"
)

// Contract-violation sentinels. Passing a page that was not obtained from
// this session is a programming error, not a recoverable condition.
var (
	ErrPageNotFound    = errors.New("page not in session")
	ErrNothingSelected = errors.New("no object selected for combine")
)

// Selection names the object used as the left operand of the next combine.
type Selection struct {
	View   view.View
	PageID int
}

// Config configures a Session.
type Config struct {
	// Handle is the remote object of the loaded dataset (the session root).
	Handle core.Handle
	// Name is the dataset's display name.
	Name string
	// LoadDescription says how the dataset was loaded, for page titles.
	LoadDescription string
	// Submitter submits remote requests (a remote.Client in production).
	Submitter remote.Submitter
	// Seed is the seed source threaded into request builders.
	Seed *remote.Seed
	// History is optional; when set, Save records each snapshot in it.
	History *history.Store
	// Logger is optional.
	Logger *slog.Logger
}

// Session is the ordered collection of pages for one loaded dataset.
// Invariants: the pages slice order equals on-screen top-to-bottom order;
// pageCounter is strictly greater than every assigned page id; selected,
// if present, names a current page.
type Session struct {
	handle          core.Handle
	name            string
	loadDescription string
	submitter       remote.Submitter
	seed            *remote.Seed
	history         *history.Store
	logger          *slog.Logger
	notifier        *Notifier

	mu          sync.Mutex
	pages       []*Page
	selected    *Selection
	pageCounter int
}

// New creates an empty session for a loaded dataset.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		handle:          cfg.Handle,
		name:            cfg.Name,
		loadDescription: cfg.LoadDescription,
		submitter:       cfg.Submitter,
		seed:            cfg.Seed,
		history:         cfg.History,
		logger:          logger,
		notifier:        NewNotifier(),
		pageCounter:     1,
	}
}

// Handle returns the session's root remote object.
func (s *Session) Handle() core.Handle { return s.handle }

// Name returns the dataset's display name.
func (s *Session) Name() string { return s.name }

// LoadDescription says how the dataset was loaded.
func (s *Session) LoadDescription() string { return s.loadDescription }

// Notifier exposes the session's change broadcaster.
func (s *Session) Notifier() *Notifier { return s.notifier }

// Select marks the object to use as the left operand of the next combine.
// The caller is responsible for passing a view that still belongs to a
// live page; no validation is performed here.
func (s *Session) Select(v view.View, pageID int) {
	s.mu.Lock()
	s.selected = &Selection{View: v, PageID: pageID}
	s.mu.Unlock()
}

// ClearSelection forgets the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// Selected returns the current selection, if any.
func (s *Session) Selected() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return Selection{}, false
	}
	return *s.selected, true
}

// Pages returns a snapshot of the pages in display order.
func (s *Session) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// PageByID finds a page by id.
func (s *Session) PageByID(id int) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// indexOf returns the position of p, or -1. Caller holds s.mu.
func (s *Session) indexOf(p *Page) int {
	for i, q := range s.pages {
		if q == p {
			return i
		}
	}
	return -1
}

// NewPage allocates the next page id and inserts the page immediately
// after source, or at the end when source is nil. Passing a page not in
// the session is a contract violation (ErrPageNotFound).
func (s *Session) NewPage(title string, source *Page) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &Page{
		ID:    s.pageCounter,
		Title: title,
	}
	if source != nil {
		page.SourceID = source.ID
	}
	if err := s.insertAfterLocked(page, source); err != nil {
		return nil, err
	}
	s.pageCounter++
	s.notifier.Broadcast()
	return page, nil
}

// InsertAfter places page immediately after the given page, or at the end
// when after is nil.
func (s *Session) InsertAfter(page, after *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertAfterLocked(page, after); err != nil {
		return err
	}
	s.notifier.Broadcast()
	return nil
}

func (s *Session) insertAfterLocked(page, after *Page) error {
	if after == nil {
		s.pages = append(s.pages, page)
		return nil
	}
	idx := s.indexOf(after)
	if idx < 0 {
		return fmt.Errorf("inserting after page %d: %w", after.ID, ErrPageNotFound)
	}
	s.pages = append(s.pages, nil)
	copy(s.pages[idx+2:], s.pages[idx+1:])
	s.pages[idx+1] = page
	return nil
}

// Remove deletes the page from the session. A selection pointing at the
// removed page is cleared.
func (s *Session) Remove(page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(page)
	if idx < 0 {
		return fmt.Errorf("removing page %d: %w", page.ID, ErrPageNotFound)
	}
	s.pages = append(s.pages[:idx], s.pages[idx+1:]...)
	if s.selected != nil && s.selected.PageID == page.ID {
		s.selected = nil
	}
	s.notifier.Broadcast()
	return nil
}

// Shift moves the page one slot up or down. Shifting the first page up or
// the last page down is a no-op.
func (s *Session) Shift(page *Page, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(page)
	if idx < 0 {
		return fmt.Errorf("shifting page %d: %w", page.ID, ErrPageNotFound)
	}
	other := idx + 1
	if up {
		other = idx - 1
	}
	if other < 0 || other >= len(s.pages) {
		return nil
	}
	s.pages[idx], s.pages[other] = s.pages[other], s.pages[idx]
	s.notifier.Broadcast()
	return nil
}

// containsID reports whether a page with the given id is a member.
func (s *Session) containsID(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.ID == id {
			return true
		}
	}
	return false
}

// schemaSummary is the result shape of getSchema.
type schemaSummary struct {
	Schema   core.Schema `json:"schema"`
	RowCount int64       `json:"rowCount"`
}

// Redisplay re-issues a schema fetch against the session's root handle and
// opens a fresh root page for it, re-showing the originally loaded data.
func (s *Session) Redisplay(ctx context.Context) (remote.Cancellable, error) {
	page, err := s.NewPage(s.name, nil)
	if err != nil {
		return nil, err
	}

	proxy := remote.NewTableProxy(s.handle, s.seed)
	base := remote.NewBaseReceiver("getSchema", s.logger)
	recv := remote.NewFuncReceiver(nil, func(data json.RawMessage, err error) {
		base.Finish(err)
		if err != nil {
			page.ReportError(err.Error())
			s.notifier.Broadcast()
			return
		}
		var summary schemaSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			page.ReportError(fmt.Sprintf("malformed schema result: %v", err))
			s.notifier.Broadcast()
			return
		}
		page.SetView(view.SchemaView{Base: view.Base{
			DataHandle: s.handle,
			Rows:       summary.RowCount,
			DataSchema: summary.Schema,
		}})
		s.notifier.Broadcast()
	})

	stream, err := s.submitter.Submit(ctx, proxy.GetSchema(), recv)
	if err != nil {
		page.ReportError(err.Error())
		return nil, err
	}
	return stream, nil
}
