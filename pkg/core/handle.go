package core

// Handle names one object in the remote service's dataset graph: a loaded
// table, a sketch result, a projection. The value is issued by the server
// and is opaque to the client; it is forwarded, never interpreted.
type Handle string

// Empty reports whether the handle names nothing.
func (h Handle) Empty() bool {
	return h == ""
}

func (h Handle) String() string {
	return string(h)
}
