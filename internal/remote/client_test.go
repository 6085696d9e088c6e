package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skylens-io/skylens/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServiceURL starts a websocket endpoint scripted per test: the
// handler gets the decoded request and a connection to write replies on.
func fakeServiceURL(t *testing.T, handler func(t *testing.T, req rpcRequest, conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		handler(t, req, conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fakeService(t *testing.T, handler func(t *testing.T, req rpcRequest, conn *websocket.Conn)) *Client {
	t.Helper()
	return NewClient(ClientConfig{ServiceURL: fakeServiceURL(t, handler)})
}

func reply(conn *websocket.Conn, req rpcRequest, result any, isError, isCompleted bool) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return conn.WriteJSON(rpcReply{
		RequestID:   req.RequestID,
		Result:      raw,
		IsError:     isError,
		IsCompleted: isCompleted,
	})
}

func TestClient_StreamsPartialsThenCompletes(t *testing.T) {
	client := fakeService(t, func(t *testing.T, req rpcRequest, conn *websocket.Conn) {
		assert.Equal(t, "getSchema", req.Method)
		assert.Equal(t, core.Handle("ds-1"), req.ObjectID)
		require.NoError(t, reply(conn, req, PartialResult{Done: 0.5, Data: json.RawMessage(`{"rows":10}`)}, false, false))
		require.NoError(t, reply(conn, req, PartialResult{Done: 1, Data: json.RawMessage(`{"rows":20}`)}, false, false))
		require.NoError(t, reply(conn, req, nil, false, true))
	})

	var partials []float64
	recv, terminal := NewBlockingReceiver()
	counting := NewFuncReceiver(func(p PartialResult) {
		partials = append(partials, p.Done)
	}, recv.OnCompleted)

	proxy := NewTableProxy("ds-1", NewSeed(1))
	_, err := client.Submit(context.Background(), proxy.GetSchema(), counting)
	require.NoError(t, err)

	select {
	case got := <-terminal:
		require.NoError(t, got.Err)
		assert.JSONEq(t, `{"rows":20}`, string(got.Data), "terminal state carries the last partial's data")
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
	}
	assert.Equal(t, []float64{0.5, 1}, partials)
}

func TestClient_RemoteErrorIsTerminal(t *testing.T) {
	client := fakeService(t, func(t *testing.T, req rpcRequest, conn *websocket.Conn) {
		require.NoError(t, reply(conn, req, "column not found", true, false))
	})

	recv, terminal := NewBlockingReceiver()
	proxy := NewTableProxy("ds-1", NewSeed(1))
	_, err := client.Submit(context.Background(), proxy.HLogLog("nope"), recv)
	require.NoError(t, err)

	got := <-terminal
	require.Error(t, got.Err)
	assert.Contains(t, got.Err.Error(), "column not found")
}

func TestClient_CancelDeliversTerminalOnce(t *testing.T) {
	release := make(chan struct{})
	client := fakeService(t, func(t *testing.T, req rpcRequest, conn *websocket.Conn) {
		_ = reply(conn, req, PartialResult{Done: 0.1, Data: json.RawMessage(`{}`)}, false, false)
		<-release // hold the request open until the test ends
	})
	defer close(release)

	sawPartial := make(chan struct{}, 1)
	recv, terminal := NewBlockingReceiver()
	counting := NewFuncReceiver(func(PartialResult) {
		select {
		case sawPartial <- struct{}{}:
		default:
		}
	}, recv.OnCompleted)

	proxy := NewTableProxy("ds-1", NewSeed(1))
	stream, err := client.Submit(context.Background(), proxy.GetSchema(), counting)
	require.NoError(t, err)

	<-sawPartial
	assert.True(t, stream.Cancel())
	assert.False(t, stream.Cancel(), "second cancel is a no-op")

	got := <-terminal
	require.ErrorIs(t, got.Err, ErrCancelled)

	select {
	case extra := <-terminal:
		t.Fatalf("terminal state delivered twice: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SubmitLogsResultKind(t *testing.T) {
	url := fakeServiceURL(t, func(t *testing.T, req rpcRequest, conn *websocket.Conn) {
		require.NoError(t, reply(conn, req, nil, false, true))
	})

	var buf bytes.Buffer
	client := NewClient(ClientConfig{
		ServiceURL: url,
		Logger:     slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	recv, terminal := NewBlockingReceiver()
	proxy := NewTableProxy("ds-1", NewSeed(1))
	_, err := client.Submit(context.Background(), proxy.GetSchema(), recv)
	require.NoError(t, err)
	<-terminal

	logged := buf.String()
	assert.Contains(t, logged, "request submitted")
	assert.Contains(t, logged, "resultKind=schemaSummary")
}

func TestClient_ContextCancelStopsRequest(t *testing.T) {
	release := make(chan struct{})
	client := fakeService(t, func(t *testing.T, req rpcRequest, conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	recv, terminal := NewBlockingReceiver()
	proxy := NewTableProxy("ds-1", NewSeed(1))
	_, err := client.Submit(ctx, proxy.GetSchema(), recv)
	require.NoError(t, err)

	cancel()
	got := <-terminal
	require.ErrorIs(t, got.Err, ErrCancelled)
}

func TestDecodeObjectRef(t *testing.T) {
	h, err := DecodeObjectRef(json.RawMessage(`{"objectId":"obj-3"}`))
	require.NoError(t, err)
	assert.Equal(t, core.Handle("obj-3"), h)

	_, err = DecodeObjectRef(json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = DecodeObjectRef(json.RawMessage(`not json`))
	assert.Error(t, err)
}
