package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studioforge/studiorpc/internal/config"
	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/jsonrpc"
)

func TestBuildServerServesCatalogue(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Latency.Create = time.Millisecond

	server, err := buildServer(&cfg, time.Now())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	ts := httptest.NewServer(server.Handler(cfg.Path))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+cfg.Path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	var hello struct {
		Method string               `json:"method"`
		Params interfaces.Handshake `json:"params"`
	}
	if err := json.Unmarshal(frame, &hello); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if hello.Method != interfaces.MethodHello || hello.Params.Server != cfg.Name || len(hello.Params.Methods) != 8 {
		t.Fatalf("unexpected hello %s", frame)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"design.create","params":{"name":"Poster"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, frame, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	msg, err := jsonrpc.Decode(frame)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok || resp.Error != nil {
		t.Fatalf("expected a result, got %s", frame)
	}
	var design interfaces.Design
	if err := json.Unmarshal(resp.Result, &design); err != nil || design.Name != "Poster" || design.ID == "" {
		t.Fatalf("unexpected design %s", resp.Result)
	}
}
