package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skylens-io/skylens/pkg/core"
)

// ErrCancelled is the terminal error delivered to a receiver whose request
// was cancelled, either explicitly or by context expiry.
var ErrCancelled = errors.New("request cancelled")

const defaultDialTimeout = 10 * time.Second

// rpcRequest is the wire envelope the client sends to open one operation.
type rpcRequest struct {
	RequestID string          `json:"requestId"`
	ObjectID  core.Handle     `json:"objectId"`
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

// rpcReply is one envelope streamed back by the server. A request sees any
// number of non-completed replies followed by exactly one with IsCompleted
// or IsError set.
type rpcReply struct {
	RequestID   string          `json:"requestId"`
	Result      json.RawMessage `json:"result"`
	IsError     bool            `json:"isError"`
	IsCompleted bool            `json:"isCompleted"`
}

// Submitter submits requests. Client is the production implementation;
// tests substitute fakes to observe and script request traffic.
type Submitter interface {
	Submit(ctx context.Context, req *Request, recv Receiver) (Cancellable, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// ServiceURL is the websocket endpoint of the compute service,
	// e.g. "ws://localhost:8080/rpc".
	ServiceURL string
	// Dialer is optional; a default with a handshake timeout is used if nil.
	Dialer *websocket.Dialer
	// Logger is optional; a discard logger is used if nil.
	Logger *slog.Logger
}

// Client submits requests to the compute service. Each submission dials
// its own websocket, so every in-flight request is independently
// cancellable by closing its connection; the server treats the close as
// abandonment of the computation.
type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewClient creates a client for the given service endpoint.
func NewClient(cfg ClientConfig) *Client {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{url: cfg.ServiceURL, dialer: dialer, logger: logger}
}

// Stream is one in-flight request. Cancel closes the connection; the
// receiver then gets its terminal callback with ErrCancelled.
type Stream struct {
	id   string
	conn *websocket.Conn
	recv Receiver

	terminal  sync.Once
	cancelled bool
	mu        sync.Mutex
	done      chan struct{}
}

// Cancel stops the request. Returns false if it already terminated.
func (s *Stream) Cancel() bool {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return false
	default:
	}
	s.cancelled = true
	s.mu.Unlock()

	s.conn.Close()
	s.finish(nil, ErrCancelled)
	return true
}

// Done is closed once the terminal state has been delivered.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// finish delivers the terminal state exactly once.
func (s *Stream) finish(data json.RawMessage, err error) {
	s.terminal.Do(func() {
		s.recv.OnCompleted(data, err)
		close(s.done)
	})
}

// Submit sends req to the service and streams its results into recv. It
// returns immediately; receiver callbacks run on the stream's goroutine.
// Cancelling the returned handle (or ctx) stops further callbacks after
// one terminal ErrCancelled notification.
func (c *Client) Submit(ctx context.Context, req *Request, recv Receiver) (Cancellable, error) {
	args, err := json.Marshal(req.Arguments)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s arguments: %w", req.Operation, err)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s for %s: %w", c.url, req.Operation, err)
	}

	env := rpcRequest{
		RequestID: uuid.New().String(),
		ObjectID:  req.Target,
		Method:    req.Operation,
		Arguments: args,
	}
	if err := conn.WriteJSON(env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending %s request: %w", req.Operation, err)
	}

	s := &Stream{
		id:   env.RequestID,
		conn: conn,
		recv: recv,
		done: make(chan struct{}),
	}

	c.logger.Debug("request submitted",
		"operation", req.Operation, "target", req.Target,
		"resultKind", req.ResultKind, "requestId", s.id)

	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()

	return s, nil
}

// readLoop pumps replies until the terminal envelope or a connection error.
func (s *Stream) readLoop() {
	defer s.conn.Close()

	var lastData json.RawMessage
	for {
		var reply rpcReply
		if err := s.conn.ReadJSON(&reply); err != nil {
			s.mu.Lock()
			cancelled := s.cancelled
			s.mu.Unlock()
			if cancelled {
				s.finish(nil, ErrCancelled)
			} else {
				s.finish(nil, fmt.Errorf("reading reply: %w", err))
			}
			return
		}

		switch {
		case reply.IsError:
			var msg string
			if err := json.Unmarshal(reply.Result, &msg); err != nil {
				msg = string(reply.Result)
			}
			s.finish(nil, fmt.Errorf("remote error: %s", msg))
			return
		case reply.IsCompleted:
			s.finish(lastData, nil)
			return
		default:
			var p PartialResult
			if err := json.Unmarshal(reply.Result, &p); err != nil {
				s.finish(nil, fmt.Errorf("decoding partial result: %w", err))
				return
			}
			if len(p.Data) > 0 {
				lastData = p.Data
			}
			s.recv.OnNext(p)
		}
	}
}
