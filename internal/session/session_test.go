package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/skylens-io/skylens/internal/remote"
	"github.com/skylens-io/skylens/internal/testutil"
	"github.com/skylens-io/skylens/internal/view"
	"github.com/skylens-io/skylens/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream mimics an in-flight request; tests drive its terminal state.
type fakeStream struct {
	recv remote.Receiver

	mu         sync.Mutex
	terminated bool
}

func (f *fakeStream) Cancel() bool {
	f.mu.Lock()
	if f.terminated {
		f.mu.Unlock()
		return false
	}
	f.terminated = true
	f.mu.Unlock()
	f.recv.OnCompleted(nil, remote.ErrCancelled)
	return true
}

func (f *fakeStream) done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

func (f *fakeStream) complete(data json.RawMessage, err error) {
	f.mu.Lock()
	if f.terminated {
		f.mu.Unlock()
		return
	}
	f.terminated = true
	f.mu.Unlock()
	f.recv.OnCompleted(data, err)
}

// fakeSubmitter records every submitted request and lets the test script
// each one's outcome. beforeSubmit, when set, runs before the request is
// recorded, so tests can interleave actions with a submission.
type fakeSubmitter struct {
	mu           sync.Mutex
	requests     []*remote.Request
	streams      []*fakeStream
	beforeSubmit func(req *remote.Request)
}

func (f *fakeSubmitter) Submit(_ context.Context, req *remote.Request, recv remote.Receiver) (remote.Cancellable, error) {
	if f.beforeSubmit != nil {
		f.beforeSubmit(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeStream{recv: recv}
	f.requests = append(f.requests, req)
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSubmitter) request(i int) *remote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeSubmitter) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func newTestSession(t *testing.T) (*Session, *fakeSubmitter) {
	t.Helper()
	sub := &fakeSubmitter{}
	s := New(Config{
		Handle:          "ds-root",
		Name:            "flights",
		LoadDescription: "flights.csv",
		Submitter:       sub,
		Seed:            remote.NewSeed(1),
		Logger:          testutil.NewTestLogger(t),
	})
	return s, sub
}

func pageIDs(s *Session) []int {
	pages := s.Pages()
	ids := make([]int, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}

func TestSession_NewPageAssignsMonotonicIDs(t *testing.T) {
	s, _ := newTestSession(t)

	a, err := s.NewPage("a", nil)
	require.NoError(t, err)
	b, err := s.NewPage("b", nil)
	require.NoError(t, err)
	c, err := s.NewPage("c", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, 3, c.ID)
	assert.Equal(t, []int{1, 2, 3}, pageIDs(s))

	assert.Equal(t, 0, a.SourceID, "pages with no source are roots")
}

func TestSession_NewPageInsertsAfterSource(t *testing.T) {
	s, _ := newTestSession(t)

	a, _ := s.NewPage("a", nil)
	_, _ = s.NewPage("b", nil)

	c, err := s.NewPage("c", a)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, pageIDs(s))
	assert.Equal(t, a.ID, c.SourceID)
}

func TestSession_NewPageWithForeignSourceFails(t *testing.T) {
	s, _ := newTestSession(t)
	other, _ := newTestSession(t)
	foreign, _ := other.NewPage("x", nil)

	_, err := s.NewPage("y", foreign)
	assert.ErrorIs(t, err, ErrPageNotFound)
	assert.Empty(t, s.Pages(), "failed insert leaves the session unchanged")
}

func TestSession_InsertAfter(t *testing.T) {
	s, _ := newTestSession(t)
	a, _ := s.NewPage("a", nil)
	b, _ := s.NewPage("b", nil)

	require.NoError(t, s.Remove(b))
	require.NoError(t, s.InsertAfter(b, a))
	assert.Equal(t, []int{1, 2}, pageIDs(s))

	detached := &Page{ID: 99}
	err := s.InsertAfter(&Page{ID: 100}, detached)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestSession_RemoveClearsSelection(t *testing.T) {
	s, _ := newTestSession(t)
	a, _ := s.NewPage("a", nil)
	v := view.Table{Base: view.Base{DataHandle: "h"}}
	a.SetView(v)
	s.Select(v, a.ID)

	_, ok := s.Selected()
	require.True(t, ok)

	require.NoError(t, s.Remove(a))
	_, ok = s.Selected()
	assert.False(t, ok, "selection of a removed page is cleared")
	assert.Empty(t, s.Pages())
}

func TestSession_ShiftMovesAndStopsAtBoundaries(t *testing.T) {
	s, _ := newTestSession(t)
	a, _ := s.NewPage("a", nil)
	b, _ := s.NewPage("b", nil)
	c, _ := s.NewPage("c", nil)

	// Boundary no-ops.
	require.NoError(t, s.Shift(a, true))
	assert.Equal(t, []int{1, 2, 3}, pageIDs(s))
	require.NoError(t, s.Shift(c, false))
	assert.Equal(t, []int{1, 2, 3}, pageIDs(s))

	require.NoError(t, s.Shift(b, true))
	assert.Equal(t, []int{2, 1, 3}, pageIDs(s))
	require.NoError(t, s.Shift(b, false))
	assert.Equal(t, []int{1, 2, 3}, pageIDs(s))

	err := s.Shift(&Page{ID: 42}, true)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestSession_NotifierBroadcastsOnMutation(t *testing.T) {
	s, _ := newTestSession(t)
	ch := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(ch)

	_, err := s.NewPage("a", nil)
	require.NoError(t, err)

	select {
	case <-ch:
	default:
		t.Fatal("expected a change ping after NewPage")
	}
}

func TestSession_Redisplay(t *testing.T) {
	s, sub := newTestSession(t)

	_, err := s.Redisplay(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, sub.count())
	req := sub.request(0)
	assert.Equal(t, "getSchema", req.Operation)
	assert.Equal(t, core.Handle("ds-root"), req.Target)

	pages := s.Pages()
	require.Len(t, pages, 1)
	assert.Nil(t, pages[0].View(), "no view before the fetch completes")

	sub.stream(0).complete(json.RawMessage(`{
		"schema": [{"name":"origin","kind":"String"}],
		"rowCount": 1234
	}`), nil)

	v := pages[0].View()
	require.NotNil(t, v)
	assert.Equal(t, core.KindSchema, v.Kind())
	assert.Equal(t, int64(1234), v.RowCount())
	assert.Equal(t, core.Handle("ds-root"), v.Handle())
}

func TestSession_RedisplayRemoteErrorLandsOnPage(t *testing.T) {
	s, sub := newTestSession(t)

	_, err := s.Redisplay(context.Background())
	require.NoError(t, err)

	sub.stream(0).complete(nil, assert.AnError)

	pages := s.Pages()
	require.Len(t, pages, 1)
	assert.Nil(t, pages[0].View())
	assert.NotEmpty(t, pages[0].LastError(), "remote failures surface on the page")
}
