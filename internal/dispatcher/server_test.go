package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, time.Now()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	reg.MustRegister("test.slow", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		if err := Simulate(ctx, 400*time.Millisecond); err != nil {
			return nil, err
		}
		return "slow", nil
	})

	srv := NewServer(New(reg, logging.NewDiscardLogger()), "test-peer", logging.NewDiscardLogger())
	ts := httptest.NewServer(srv.Handler("/rpc"))
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/rpc"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) jsonrpc.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := jsonrpc.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestServerSendsHello(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	n, ok := readFrame(t, conn).(*jsonrpc.Notification)
	if !ok || n.Method != "system.hello" {
		t.Fatalf("expected system.hello notification, got %+v", n)
	}
	var hello struct {
		Server  string   `json:"server"`
		Methods []string `json:"methods"`
	}
	if err := json.Unmarshal(n.Params, &hello); err != nil {
		t.Fatalf("hello params: %v", err)
	}
	if hello.Server != "test-peer" || len(hello.Methods) != 3 {
		t.Fatalf("unexpected hello %+v", hello)
	}
}

func TestServerSlowHandlerDoesNotBlockOthers(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	readFrame(t, conn) // hello

	conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"test.slow"}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"system.ping"}`))

	start := time.Now()
	first, ok := readFrame(t, conn).(*jsonrpc.Response)
	if !ok || first.ID == nil || *first.ID != 2 {
		t.Fatalf("ping should answer first, got %+v", first)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("ping waited behind the slow handler: %s", elapsed)
	}

	second, ok := readFrame(t, conn).(*jsonrpc.Response)
	if !ok || second.ID == nil || *second.ID != 1 || string(second.Result) != `"slow"` {
		t.Fatalf("unexpected slow response %+v", second)
	}
}

func TestServerAnswersParseErrorAndKeepsConnection(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	readFrame(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`))
	resp, ok := readFrame(t, conn).(*jsonrpc.Response)
	if !ok || resp.Error == nil || resp.Error.Code != jsonrpc.CodeParseError {
		t.Fatalf("expected parse error response, got %+v", resp)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":9,"method":"system.ping"}`))
	resp, ok = readFrame(t, conn).(*jsonrpc.Response)
	if !ok || resp.ID == nil || *resp.ID != 9 {
		t.Fatalf("connection unusable after parse error: %+v", resp)
	}
}

func TestServerCloseConnectionsAndShutdown(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts)
	readFrame(t, conn)

	if n := srv.CloseConnections(); n != 1 {
		t.Fatalf("closed %d connections, want 1", n)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection should be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err == nil {
		t.Fatal("dial after Shutdown should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after Shutdown, got %v", resp)
	}
}
