package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/skylens-io/skylens/internal/remote"
	"github.com/skylens-io/skylens/internal/view"
	"github.com/skylens-io/skylens/pkg/core"
)

// ErrPageDetached fails a combine chain whose source page was removed
// while the chain was in flight.
var ErrPageDetached = errors.New("page removed while combine in flight")

// CombineState is the state of one combine chain. A chain moves
// Idle → ZipInFlight → SetOpInFlight → Done, or directly to Failed or
// Cancelled from either in-flight state.
type CombineState string

const (
	CombineIdle          CombineState = "Idle"
	CombineZipInFlight   CombineState = "ZipInFlight"
	CombineSetOpInFlight CombineState = "SetOpInFlight"
	CombineDone          CombineState = "Done"
	CombineFailed        CombineState = "Failed"
	CombineCancelled     CombineState = "Cancelled"
)

// CombineChain runs the two-phase combine: zip the selected object (left
// operand) with the invoking page's object (right operand), then apply a
// set operation to the pair. The second request is never submitted before
// the first's terminal success, and cancellation short-circuits the chain
// before any dependent request is issued. No page is created until Done.
type CombineChain struct {
	session    *Session
	op         core.SetOperation
	sourcePage *Page
	left       core.Handle
	right      core.Handle

	mu         sync.Mutex
	state      CombineState
	inFlight   remote.Cancellable
	resultPage *Page
	err        error
	done       chan struct{}
}

// Combine starts a combine chain for the given page and operator. The
// session's selected object is the left operand; the page's object is the
// right operand; the order is preserved because operators are not
// commutative. With nothing selected it reports a user-visible error on
// the page and issues no requests.
func (s *Session) Combine(ctx context.Context, page *Page, op core.SetOperation) (*CombineChain, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("combine: unknown operator %q", op)
	}
	if !s.containsID(page.ID) {
		return nil, fmt.Errorf("combine on page %d: %w", page.ID, ErrPageNotFound)
	}
	sel, ok := s.Selected()
	if !ok {
		page.ReportError("no object selected; select one before combining")
		s.notifier.Broadcast()
		return nil, ErrNothingSelected
	}
	pageView := page.View()
	if pageView == nil {
		return nil, fmt.Errorf("combine on page %d: page has no view", page.ID)
	}

	chain := &CombineChain{
		session:    s,
		op:         op,
		sourcePage: page,
		left:       sel.View.Handle(),
		right:      pageView.Handle(),
		state:      CombineZipInFlight,
		done:       make(chan struct{}),
	}

	proxy := remote.NewTableProxy(chain.left, s.seed)
	base := remote.NewBaseReceiver("zip", s.logger)
	recv := remote.NewFuncReceiver(nil, func(data json.RawMessage, err error) {
		base.Finish(err)
		chain.onZipDone(ctx, data, err)
	})

	stream, err := s.submitter.Submit(ctx, proxy.Zip(chain.right), recv)
	if err != nil {
		chain.finish(CombineFailed, err)
		page.ReportError(err.Error())
		return nil, err
	}
	chain.setInFlight(stream)
	return chain, nil
}

// State returns the chain's current state.
func (c *CombineChain) State() CombineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal error, nil unless Failed or Cancelled.
func (c *CombineChain) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ResultPage returns the page created on Done, nil otherwise.
func (c *CombineChain) ResultPage() *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultPage
}

// Done is closed when the chain reaches a terminal state.
func (c *CombineChain) Done() <-chan struct{} {
	return c.done
}

// Cancel stops the chain. The dependent setOperation is never issued once
// a chain is cancelled. Returns false if the chain already terminated.
func (c *CombineChain) Cancel() bool {
	c.mu.Lock()
	if c.state != CombineZipInFlight && c.state != CombineSetOpInFlight {
		c.mu.Unlock()
		return false
	}
	c.state = CombineCancelled
	c.err = remote.ErrCancelled
	inFlight := c.inFlight
	c.mu.Unlock()

	if inFlight != nil {
		inFlight.Cancel()
	}
	close(c.done)
	return true
}

// setInFlight records the chain's current stream. A cancel may land
// between the in-flight re-check and the submission; Cancel then read the
// previous stream, so a stream recorded after a terminal state must be
// cancelled here.
func (c *CombineChain) setInFlight(s remote.Cancellable) {
	c.mu.Lock()
	terminal := c.state == CombineDone || c.state == CombineFailed || c.state == CombineCancelled
	c.inFlight = s
	c.mu.Unlock()
	if terminal {
		s.Cancel()
	}
}

// finish moves the chain to a terminal state, once.
func (c *CombineChain) finish(state CombineState, err error) {
	c.mu.Lock()
	if c.state == CombineDone || c.state == CombineFailed || c.state == CombineCancelled {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.err = err
	c.mu.Unlock()
	close(c.done)
}

// onZipDone handles the zip request's terminal state and, on success,
// submits the setOperation against the paired handle.
func (c *CombineChain) onZipDone(ctx context.Context, data json.RawMessage, err error) {
	c.mu.Lock()
	if c.state != CombineZipInFlight {
		// Cancelled while the terminal callback was in flight.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, remote.ErrCancelled) {
			c.finish(CombineCancelled, err)
		} else {
			c.sourcePage.ReportError(err.Error())
			c.finish(CombineFailed, err)
		}
		return
	}

	pair, derr := remote.DecodeObjectRef(data)
	if derr != nil {
		c.mu.Unlock()
		c.sourcePage.ReportError(derr.Error())
		c.finish(CombineFailed, derr)
		return
	}
	c.state = CombineSetOpInFlight
	c.mu.Unlock()

	proxy := remote.NewTableProxy(pair, c.session.seed)
	base := remote.NewBaseReceiver("setOperation", c.session.logger)
	recv := remote.NewFuncReceiver(nil, func(data json.RawMessage, err error) {
		base.Finish(err)
		c.onSetOpDone(data, err)
	})

	// Re-check: a cancel may have landed between the transition above and
	// this submission; a cancelled chain issues no dependent request.
	if c.State() != CombineSetOpInFlight {
		return
	}
	stream, serr := c.session.submitter.Submit(ctx, proxy.SetOperation(c.op), recv)
	if serr != nil {
		c.sourcePage.ReportError(serr.Error())
		c.finish(CombineFailed, serr)
		return
	}
	c.setInFlight(stream)
}

// onSetOpDone handles the setOperation's terminal state and, on success,
// creates the result page.
func (c *CombineChain) onSetOpDone(data json.RawMessage, err error) {
	c.mu.Lock()
	if c.state != CombineSetOpInFlight {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, remote.ErrCancelled) {
			c.finish(CombineCancelled, err)
		} else {
			c.sourcePage.ReportError(err.Error())
			c.finish(CombineFailed, err)
		}
		return
	}

	result, derr := remote.DecodeObjectRef(data)
	if derr != nil {
		c.sourcePage.ReportError(derr.Error())
		c.finish(CombineFailed, derr)
		return
	}

	// The source page may have been removed while the chain was running;
	// a detached page fails the chain rather than resurrecting itself.
	if !c.session.containsID(c.sourcePage.ID) {
		c.finish(CombineFailed, ErrPageDetached)
		return
	}

	title := fmt.Sprintf("%s (%s)", c.sourcePage.Title, c.op)
	page, perr := c.session.NewPage(title, c.sourcePage)
	if perr != nil {
		c.finish(CombineFailed, ErrPageDetached)
		return
	}
	page.SetView(cloneForHandle(c.sourcePage.View(), result))
	c.session.notifier.Broadcast()

	c.mu.Lock()
	c.resultPage = page
	c.mu.Unlock()
	c.finish(CombineDone, nil)
}

// cloneForHandle builds the kind-appropriate view for the combine result:
// the source page's view shape pointed at the new handle. The row count is
// unknown until the view refreshes.
func cloneForHandle(src view.View, h core.Handle) view.View {
	rebase := func(b view.Base) view.Base {
		return view.Base{DataHandle: h, Rows: 0, DataSchema: b.DataSchema}
	}
	switch v := src.(type) {
	case view.Table:
		v.Base = rebase(v.Base)
		return v
	case view.Histogram:
		v.Base = rebase(v.Base)
		return v
	case view.Histogram2D:
		v.Base = rebase(v.Base)
		return v
	case view.Heatmap:
		v.Base = rebase(v.Base)
		return v
	case view.SchemaView:
		v.Base = rebase(v.Base)
		return v
	case view.TrellisHistogram:
		v.Base = rebase(v.Base)
		return v
	case view.Trellis2DHistogram:
		v.Base = rebase(v.Base)
		return v
	case view.TrellisHeatmap:
		v.Base = rebase(v.Base)
		return v
	case view.HeavyHitters:
		v.Base = rebase(v.Base)
		return v
	case view.Spectrum:
		v.Base = rebase(v.Base)
		return v
	default:
		// Load pages and nil views fall back to a plain table view.
		var schema core.Schema
		if src != nil {
			schema = src.Schema()
		}
		return view.Table{Base: view.Base{DataHandle: h, DataSchema: schema}}
	}
}
