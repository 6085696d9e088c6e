package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skylens-io/skylens/pkg/core"
)

// PartialResult is one streamed increment of a request's result. Done is
// the fraction of the remote computation finished, in [0, 1]; Data is the
// best result available so far.
type PartialResult struct {
	Done float64         `json:"done"`
	Data json.RawMessage `json:"data"`
}

// Receiver consumes the results of one in-flight Request. OnNext is called
// zero or more times as partial results stream in; OnCompleted is called
// exactly once with the terminal state: the final data on success, or a
// non-nil error on failure or cancellation (ErrCancelled).
type Receiver interface {
	OnNext(p PartialResult)
	OnCompleted(data json.RawMessage, err error)
}

// BaseReceiver carries the bookkeeping every receiver wants: a description
// for logging, the submission time, and the elapsed duration once the
// terminal state arrives. Concrete receivers embed it.
type BaseReceiver struct {
	Description string
	Logger      *slog.Logger

	started time.Time
	elapsed time.Duration
}

// NewBaseReceiver starts the clock for one request.
func NewBaseReceiver(description string, logger *slog.Logger) BaseReceiver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseReceiver{
		Description: description,
		Logger:      logger,
		started:     time.Now(),
	}
}

// Finish records the elapsed time and logs the terminal state. Concrete
// receivers call it from OnCompleted.
func (r *BaseReceiver) Finish(err error) {
	r.elapsed = time.Since(r.started)
	if err != nil {
		r.Logger.Warn("request failed",
			"operation", r.Description, "elapsed", r.elapsed, "err", err)
		return
	}
	r.Logger.Debug("request completed",
		"operation", r.Description, "elapsed", r.elapsed)
}

// Elapsed returns the time from submission to the terminal state. Valid
// only after Finish has run.
func (r *BaseReceiver) Elapsed() time.Duration {
	return r.elapsed
}

// ObjectRef is the result shape of operations that produce a new remote
// object (filters, zip, setOperation, projections).
type ObjectRef struct {
	ObjectID core.Handle `json:"objectId"`
}

// DecodeObjectRef extracts the handle carried by a terminal result. A
// receiver that gets one may wrap it in a fresh TableProxy; that is how
// operation chaining works without shared mutable state.
func DecodeObjectRef(data json.RawMessage) (core.Handle, error) {
	var ref ObjectRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", fmt.Errorf("decoding object reference: %w", err)
	}
	if ref.ObjectID.Empty() {
		return "", fmt.Errorf("result carries no object id")
	}
	return ref.ObjectID, nil
}

// funcReceiver adapts two closures to the Receiver contract.
type funcReceiver struct {
	onNext      func(PartialResult)
	onCompleted func(json.RawMessage, error)
}

func (f *funcReceiver) OnNext(p PartialResult) {
	if f.onNext != nil {
		f.onNext(p)
	}
}

func (f *funcReceiver) OnCompleted(data json.RawMessage, err error) {
	if f.onCompleted != nil {
		f.onCompleted(data, err)
	}
}

// NewFuncReceiver builds a Receiver from closures; either may be nil.
func NewFuncReceiver(onNext func(PartialResult), onCompleted func(json.RawMessage, error)) Receiver {
	return &funcReceiver{onNext: onNext, onCompleted: onCompleted}
}

// Terminal is the result delivered by a blocking receiver.
type Terminal struct {
	Data json.RawMessage
	Err  error
}

// NewBlockingReceiver returns a receiver and a channel that yields the
// terminal state once. It bridges the streaming contract to synchronous
// callers such as CLI commands.
func NewBlockingReceiver() (Receiver, <-chan Terminal) {
	ch := make(chan Terminal, 1)
	recv := NewFuncReceiver(nil, func(data json.RawMessage, err error) {
		ch <- Terminal{Data: data, Err: err}
	})
	return recv, ch
}
