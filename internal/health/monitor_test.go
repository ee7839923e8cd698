package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
)

type fakePinger struct {
	mu    sync.Mutex
	state protocol.State
	errs  []error
	pings int
}

func (p *fakePinger) Ping(ctx context.Context) (*interfaces.PingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &interfaces.PingResult{Status: "ok", Uptime: "1m0s"}, nil
}

func (p *fakePinger) State() protocol.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePinger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pings
}

func TestCheckSkipsWhenNotConnected(t *testing.T) {
	p := &fakePinger{state: protocol.StateReconnecting}
	m := NewMonitor(p, time.Minute, time.Second, logging.NewDiscardLogger())

	if _, ok := m.Check(context.Background()); ok {
		t.Fatal("check must be skipped while reconnecting")
	}
	if p.count() != 0 {
		t.Fatal("monitor pinged a disconnected client")
	}
}

func TestCheckRecordsHistoryAndTrends(t *testing.T) {
	timeout := &protocol.TimeoutError{Method: interfaces.MethodPing, Window: time.Second}
	p := &fakePinger{state: protocol.StateConnected, errs: []error{timeout, timeout, nil, nil}}
	m := NewMonitor(p, time.Minute, time.Second, logging.NewDiscardLogger())

	for i := 0; i < 2; i++ {
		s, ok := m.Check(context.Background())
		if !ok || s.Status != StatusUnhealthy {
			t.Fatalf("check %d = %+v", i, s)
		}
	}
	if m.Trends().ConsecutiveFailures != 2 {
		t.Fatalf("consecutive failures = %d", m.Trends().ConsecutiveFailures)
	}

	m.Check(context.Background())
	m.Check(context.Background())

	latest, ok := m.Latest()
	if !ok || latest.Status != StatusHealthy || latest.ServerUptime != "1m0s" {
		t.Fatalf("latest = %+v", latest)
	}

	trends := m.Trends()
	if trends.SampleCount != 4 || trends.UptimePercentage != 50 || trends.AvailabilityTrend != "improving" || trends.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected trends %+v", trends)
	}
	if h := m.History(3); len(h) != 3 || h[2].Status != StatusHealthy {
		t.Fatalf("History(3) = %+v", h)
	}
}

type countingDialer struct {
	mu    sync.Mutex
	dials int
}

func (d *countingDialer) Dial(ctx context.Context, url string) (protocol.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	return nil, errors.New("connection refused")
}

// staleState reports connected while the wrapped client has already dropped
type staleState struct {
	*protocol.Client
}

func (staleState) State() protocol.State { return protocol.StateConnected }

func TestCheckNeverDialsAfterStateChange(t *testing.T) {
	dialer := &countingDialer{}
	client := protocol.NewClientWithDialer(protocol.DefaultOptions("ws://studio.test/rpc"), dialer, logging.NewDiscardLogger())
	defer client.Close()
	m := NewMonitor(staleState{client}, time.Minute, time.Second, logging.NewDiscardLogger())

	s, ok := m.Check(context.Background())
	if !ok || s.Status != StatusUnhealthy {
		t.Fatalf("check = %+v, %v", s, ok)
	}
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	if dialer.dials != 0 {
		t.Fatalf("monitor dialed %d times", dialer.dials)
	}
}

func TestHistoryBounded(t *testing.T) {
	p := &fakePinger{state: protocol.StateConnected}
	m := NewMonitor(p, time.Minute, time.Second, logging.NewDiscardLogger())
	m.maxHistorySize = 3

	for i := 0; i < 5; i++ {
		m.Check(context.Background())
	}
	if n := len(m.History(0)); n != 3 {
		t.Fatalf("history length = %d, want 3", n)
	}
}

func TestStartStop(t *testing.T) {
	p := &fakePinger{state: protocol.StateConnected}
	m := NewMonitor(p, 10*time.Millisecond, time.Second, logging.NewDiscardLogger())

	m.Start(context.Background())
	m.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for p.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	after := p.count()
	if after < 3 {
		t.Fatalf("only %d checks ran", after)
	}

	time.Sleep(50 * time.Millisecond)
	if p.count() != after {
		t.Fatal("checks continued after Stop")
	}
	m.Stop()
}

func TestTrendsEmpty(t *testing.T) {
	m := NewMonitor(&fakePinger{}, 0, 0, logging.NewDiscardLogger())
	if tr := m.Trends(); tr.SampleCount != 0 || tr.AvailabilityTrend != "stable" {
		t.Fatalf("unexpected trends %+v", tr)
	}
	if _, ok := m.Latest(); ok {
		t.Fatal("no snapshot expected")
	}
}
