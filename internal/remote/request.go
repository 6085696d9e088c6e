package remote

import "github.com/skylens-io/skylens/pkg/core"

// Request is one remote operation invocation, bound to the handle it will
// run against. Requests are constructed by TableProxy builders and never
// mutated; submission is a separate step (Client.Submit).
type Request struct {
	// Target is the remote object the operation runs against.
	Target core.Handle
	// Operation is the wire method name, e.g. "histogram" or "zip".
	Operation string
	// Arguments is the JSON-serializable argument record for the operation.
	Arguments any
	// ResultKind names the result shape the caller expects; it is carried
	// for logging and receiver diagnostics, not sent on the wire.
	ResultKind string
}

// Cancellable is the handle returned by submitting a Request. Cancelling
// stops further receiver callbacks; it does not undo anything already
// built from earlier partial results.
type Cancellable interface {
	// Cancel stops the in-flight request. It reports whether this call was
	// the one that cancelled it (false if the request already terminated).
	Cancel() bool
}
