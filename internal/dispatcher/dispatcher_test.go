package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, time.Now()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	reg.MustRegister("test.echo", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var v map[string]interface{}
		if err := DecodeParams(params, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	reg.MustRegister("test.missing", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, jsonrpc.NotFound("design not found: %s", "abc")
	})
	reg.MustRegister("test.fail", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, errors.New("disk on fire")
	})
	reg.MustRegister("test.panic", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		panic("boom")
	})
	reg.Seal()
	return New(reg, logging.NewDiscardLogger())
}

func decodeResponse(t *testing.T, frame []byte) *jsonrpc.Response {
	t.Helper()
	msg, err := jsonrpc.Decode(frame)
	if err != nil {
		t.Fatalf("response frame does not decode: %v (%s)", err, frame)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		t.Fatalf("expected response, got %T", msg)
	}
	return resp
}

func TestDispatchEchoesID(t *testing.T) {
	d := newTestDispatcher(t)
	frame := d.DispatchFrame(context.Background(), []byte(`{"jsonrpc":"2.0","id":77,"method":"test.echo","params":{"a":1}}`))

	resp := decodeResponse(t, frame)
	if resp.ID == nil || *resp.ID != 77 {
		t.Fatalf("id not echoed: %v", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.Result) != `{"a":1}` {
		t.Fatalf("unexpected result %s", resp.Result)
	}
}

func TestDispatchErrorCodes(t *testing.T) {
	d := newTestDispatcher(t)

	tests := []struct {
		name    string
		frame   string
		code    int
		message string
	}{
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"no.such.method","params":{}}`, jsonrpc.CodeMethodNotFound, "Method not found: no.such.method"},
		{"application not found", `{"jsonrpc":"2.0","id":2,"method":"test.missing"}`, jsonrpc.CodeNotFound, "design not found: abc"},
		{"plain handler error", `{"jsonrpc":"2.0","id":3,"method":"test.fail"}`, jsonrpc.CodeInternalError, "Internal error: disk on fire"},
		{"handler panic", `{"jsonrpc":"2.0","id":4,"method":"test.panic"}`, jsonrpc.CodeInternalError, ""},
		{"invalid params", `{"jsonrpc":"2.0","id":5,"method":"test.echo","params":[1,2]}`, jsonrpc.CodeInvalidParams, ""},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeResponse(t, d.DispatchFrame(context.Background(), []byte(tt.frame)))
			if resp.ID == nil || *resp.ID != uint64(i+1) {
				t.Fatalf("id not echoed: %v", resp.ID)
			}
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.code)
			}
			if tt.message != "" && resp.Error.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Error.Message, tt.message)
			}
		})
	}
}

func TestDispatchParseError(t *testing.T) {
	d := newTestDispatcher(t)

	for _, frame := range []string{`{not json`, `[1,2,3]`, `{"jsonrpc":"1.0","id":1,"method":"x"}`} {
		resp := decodeResponse(t, d.DispatchFrame(context.Background(), []byte(frame)))
		if resp.ID != nil {
			t.Errorf("%s: parse error must carry a null id, got %d", frame, *resp.ID)
		}
		if resp.Error == nil || resp.Error.Code != jsonrpc.CodeParseError {
			t.Errorf("%s: expected -32700, got %+v", frame, resp.Error)
		}
	}
}

func TestDispatchIgnoresNotifications(t *testing.T) {
	d := newTestDispatcher(t)
	if frame := d.DispatchFrame(context.Background(), []byte(`{"jsonrpc":"2.0","method":"test.echo"}`)); frame != nil {
		t.Fatalf("notification must not be answered, got %s", frame)
	}
}

func TestBuiltins(t *testing.T) {
	d := newTestDispatcher(t)

	resp := decodeResponse(t, d.DispatchFrame(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"system.listMethods"}`)))
	var methods []string
	if err := json.Unmarshal(resp.Result, &methods); err != nil {
		t.Fatalf("listMethods result: %v", err)
	}
	want := []string{"system.listMethods", "system.ping", "test.echo", "test.fail", "test.missing", "test.panic"}
	if len(methods) != len(want) {
		t.Fatalf("methods = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Fatalf("methods = %v, want %v", methods, want)
		}
	}

	resp = decodeResponse(t, d.DispatchFrame(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"system.ping"}`)))
	var ping struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Result, &ping); err != nil || ping.Status != "ok" {
		t.Fatalf("ping result %s (%v)", resp.Result, err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	h := func(ctx context.Context, params json.RawMessage) (interface{}, error) { return nil, nil }

	if err := reg.Register("a.b", h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("a.b", h); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if err := reg.Register("", h); err == nil {
		t.Fatal("empty method name should fail")
	}
	reg.Seal()
	if err := reg.Register("c.d", h); err == nil {
		t.Fatal("registration after Seal should fail")
	}
	if _, ok := reg.Lookup("a.b"); !ok {
		t.Fatal("registered method not found")
	}
}

func TestSimulateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Simulate(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Simulate did not return promptly")
	}

	if got := Scaled(time.Second, 100*time.Millisecond, 5, 0); got != 1500*time.Millisecond {
		t.Fatalf("Scaled = %s", got)
	}
	if got := Scaled(time.Second, time.Second, 100, 5*time.Second); got != 5*time.Second {
		t.Fatalf("Scaled cap = %s", got)
	}
}
