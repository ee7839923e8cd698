package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// fakeLink records outbound frames and is always connected unless told otherwise
type fakeLink struct {
	sent chan *jsonrpc.Request

	mu         sync.Mutex
	state      State
	connectErr error
	sendErr    error
	connects   int
}

func newFakeLink() *fakeLink {
	return &fakeLink{sent: make(chan *jsonrpc.Request, 256), state: StateConnected}
}

func (l *fakeLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
	if l.connectErr != nil {
		return l.connectErr
	}
	l.state = StateConnected
	return nil
}

func (l *fakeLink) Send(data []byte) error {
	l.mu.Lock()
	err := l.sendErr
	l.mu.Unlock()
	if err != nil {
		return err
	}

	msg, decodeErr := jsonrpc.Decode(data)
	if decodeErr != nil {
		return decodeErr
	}
	l.sent <- msg.(*jsonrpc.Request)
	return nil
}

func (l *fakeLink) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLink) next(t *testing.T) *jsonrpc.Request {
	t.Helper()
	select {
	case req := <-l.sent:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no request sent")
		return nil
	}
}

func respond(t *testing.T, c *Correlator, id uint64, result interface{}) {
	t.Helper()
	resp, err := jsonrpc.NewResult(id, result)
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}
	frame, _ := jsonrpc.Encode(resp)
	c.HandleFrame(frame)
}

type callResult struct {
	result json.RawMessage
	err    error
}

func goCall(c *Correlator, ctx context.Context, method string, timeout time.Duration) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		r, err := c.Call(ctx, method, map[string]string{"k": "v"}, timeout)
		ch <- callResult{r, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("call did not settle")
		return callResult{}
	}
}

func newTestCorrelator(link Link) *Correlator {
	return NewCorrelator(link, time.Second, 0, logging.NewDiscardLogger())
}

func TestCorrelatorOutOfOrderResponses(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	first := goCall(c, context.Background(), "design.get", time.Second)
	req1 := link.next(t)
	second := goCall(c, context.Background(), "design.get", time.Second)
	req2 := link.next(t)

	if req1.ID == req2.ID {
		t.Fatalf("ids must differ, both %d", req1.ID)
	}

	respond(t, c, req2.ID, "second")
	respond(t, c, req1.ID, "first")

	if r := await(t, first); r.err != nil || string(r.result) != `"first"` {
		t.Fatalf("first call got %s, %v", r.result, r.err)
	}
	if r := await(t, second); r.err != nil || string(r.result) != `"second"` {
		t.Fatalf("second call got %s, %v", r.result, r.err)
	}
}

func TestCorrelatorUniqueIDsUnderConcurrency(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)
	const n = 100

	// echo every request id back as its result
	go func() {
		for req := range link.sent {
			resp, _ := jsonrpc.NewResult(req.ID, req.ID)
			frame, _ := jsonrpc.Encode(resp)
			c.HandleFrame(frame)
		}
	}()
	defer close(link.sent)

	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.Call(context.Background(), "system.ping", nil, time.Second)
			if err != nil {
				t.Errorf("call failed: %v", err)
				return
			}
			var id uint64
			json.Unmarshal(raw, &id)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d issued twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct ids, want %d", len(seen), n)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("pending table not empty: %d", c.PendingCount())
	}
}

func TestCorrelatorTimeout(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	start := time.Now()
	ch := goCall(c, context.Background(), "ai.generateDesign", 50*time.Millisecond)
	req := link.next(t)

	r := await(t, ch)
	elapsed := time.Since(start)
	if !errors.Is(r.err, ErrRequestTimeout) {
		t.Fatalf("expected timeout, got %v", r.err)
	}
	if elapsed > 400*time.Millisecond {
		t.Fatalf("timeout fired late: %s", elapsed)
	}

	// the late response must be dropped quietly
	respond(t, c, req.ID, "late")
	if c.PendingCount() != 0 {
		t.Fatal("late response re-created state")
	}
	if stats := c.Stats(); stats.TimedOutRequests != 1 || stats.TotalRequests != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCorrelatorRejectAllSettlesEveryCall(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	var calls []<-chan callResult
	for i := 0; i < 5; i++ {
		calls = append(calls, goCall(c, context.Background(), "design.create", time.Minute))
		link.next(t)
	}

	lost := &ConnectionError{Kind: KindLost, Cause: errors.New("peer went away")}
	if n := c.RejectAll(lost); n != 5 {
		t.Fatalf("rejected %d calls, want 5", n)
	}
	for i, ch := range calls {
		if r := await(t, ch); !errors.Is(r.err, ErrConnectionLost) {
			t.Fatalf("call %d: expected ErrConnectionLost, got %v", i, r.err)
		}
	}
}

func TestCorrelatorApplicationError(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	ch := goCall(c, context.Background(), "design.get", time.Second)
	req := link.next(t)

	id := req.ID
	frame, _ := jsonrpc.Encode(jsonrpc.NewErrorResponse(&id, jsonrpc.NotFound("design not found: %s", "x")))
	c.HandleFrame(frame)

	r := await(t, ch)
	var rpcErr *jsonrpc.Error
	if !errors.As(r.err, &rpcErr) || rpcErr.Code != 404 || rpcErr.Message != "design not found: x" {
		t.Fatalf("expected 404 application error, got %v", r.err)
	}
}

func TestCorrelatorDropsGarbageFrames(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	ch := goCall(c, context.Background(), "system.ping", time.Second)
	req := link.next(t)

	for _, frame := range []string{`{{{`, `[]`, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, `{"jsonrpc":"2.0","id":999999,"result":1}`} {
		c.HandleFrame([]byte(frame))
	}

	respond(t, c, req.ID, "pong")
	if r := await(t, ch); r.err != nil || string(r.result) != `"pong"` {
		t.Fatalf("call disturbed by garbage frames: %s %v", r.result, r.err)
	}
}

func TestCorrelatorContextCancel(t *testing.T) {
	link := newFakeLink()
	c := newTestCorrelator(link)

	ctx, cancel := context.WithCancel(context.Background())
	ch := goCall(c, ctx, "design.create", time.Minute)
	link.next(t)
	cancel()

	if r := await(t, ch); !errors.Is(r.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", r.err)
	}
	if c.PendingCount() != 0 {
		t.Fatal("cancelled call left a pending entry")
	}
}

func TestCorrelatorSendFailureSettles(t *testing.T) {
	link := newFakeLink()
	link.sendErr = &ConnectionError{Kind: KindLost, Cause: errNotConnected}
	c := newTestCorrelator(link)

	_, err := c.Call(context.Background(), "system.ping", nil, time.Second)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected send failure to surface, got %v", err)
	}
	if c.PendingCount() != 0 {
		t.Fatal("failed send left a pending entry")
	}
}

func TestCorrelatorFailsFastWhenConnectFails(t *testing.T) {
	link := newFakeLink()
	link.state = StateReconnecting
	link.connectErr = &ConnectionError{Kind: KindRefused, Cause: fmt.Errorf("dial tcp: refused")}
	c := newTestCorrelator(link)

	_, err := c.Call(context.Background(), "system.ping", nil, time.Second)
	if !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("expected refused, got %v", err)
	}
	if link.connects != 1 {
		t.Fatalf("expected exactly one connect attempt, got %d", link.connects)
	}
}

func TestCorrelatorCallConnectedNeverDials(t *testing.T) {
	link := newFakeLink()
	link.state = StateReconnecting
	c := newTestCorrelator(link)

	_, err := c.CallConnected(context.Background(), "system.ping", nil, time.Second)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if link.connects != 0 || c.PendingCount() != 0 {
		t.Fatalf("connects = %d pending = %d, want none", link.connects, c.PendingCount())
	}

	link.mu.Lock()
	link.state = StateConnected
	link.mu.Unlock()
	done := make(chan error, 1)
	go func() {
		_, err := c.CallConnected(context.Background(), "system.ping", nil, time.Second)
		done <- err
	}()
	req := link.next(t)
	respond(t, c, req.ID, "pong")
	if err := <-done; err != nil {
		t.Fatalf("CallConnected while connected: %v", err)
	}
}

func TestCorrelatorPendingLimit(t *testing.T) {
	link := newFakeLink()
	c := NewCorrelator(link, time.Second, 1, logging.NewDiscardLogger())

	first := goCall(c, context.Background(), "design.create", time.Minute)
	req := link.next(t)

	if _, err := c.Call(context.Background(), "design.create", nil, time.Minute); !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("expected ErrTooManyPending, got %v", err)
	}

	respond(t, c, req.ID, "ok")
	await(t, first)
}
