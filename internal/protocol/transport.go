package protocol

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/studioforge/studiorpc/internal/logging"
)

var errNotConnected = errors.New("not connected")

// Hooks receive transport events. OnLost runs with the transport locked so
// that pending calls are rejected before any new connection can be made; it
// must not call back into the Transport.
type Hooks struct {
	OnMessage   func(data []byte)
	OnConnected func()
	OnLost      func(err error)
	OnExhausted func(err error)
}

// Transport owns the single logical connection and its reconnection state machine:
//
//	disconnected -> connecting -> connected -> reconnecting -> connected
//	                                   |              |
//	                                   +-> disconnected <-+ (exhausted)
//
// Concurrent Connect calls share one dial. Every established connection gets
// a new generation so read loops and dials that outlive it are ignored.
type Transport struct {
	opts   Options
	dialer Dialer
	hooks  Hooks
	logger *logging.Logger
	group  singleflight.Group

	// wait sleeps between reconnect attempts; replaced in tests
	wait func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	state         State
	conn          Conn
	gen           uint64
	attempts      int
	reconnects    int
	lastErr       error
	stopReconnect context.CancelFunc
}

// NewTransport creates a disconnected transport. A nil dialer dials WebSocket URLs.
func NewTransport(opts Options, dialer Dialer, hooks Hooks, logger *logging.Logger) *Transport {
	opts = opts.withDefaults()
	if dialer == nil {
		dialer = NewWebSocketDialer(opts.ConnectTimeout)
	}
	if logger == nil {
		logger = logging.GetProtocolLogger()
	}
	return &Transport{
		opts:   opts,
		dialer: dialer,
		hooks:  hooks,
		logger: logger.WithField("url", opts.URL),
		wait:   sleepContext,
		state:  StateDisconnected,
	}
}

// Connect establishes the connection. It returns immediately when already
// connected and joins any dial in flight. ctx only bounds how long the caller
// waits; the dial itself is bounded by the connect timeout.
func (t *Transport) Connect(ctx context.Context) error {
	if t.State() == StateConnected {
		return nil
	}
	return t.joinDial(ctx)
}

func (t *Transport) joinDial(ctx context.Context) error {
	ch := t.group.DoChan("connect", func() (interface{}, error) {
		return nil, t.dial()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) dial() error {
	t.mu.Lock()
	if t.state == StateConnected {
		t.mu.Unlock()
		return nil
	}
	gen := t.gen
	if t.state == StateDisconnected {
		t.setState(StateConnecting, "connect requested")
	}
	state := t.state
	t.mu.Unlock()

	t.logger.LogConnectionAttempt(t.opts.URL, state.String())
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := t.dialer.Dial(ctx, t.opts.URL)
	elapsed := time.Since(start)

	t.mu.Lock()
	if t.gen != gen {
		// Disconnect won the race
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return &ConnectionError{Kind: KindClosed, URL: t.opts.URL, Cause: errDisconnected}
	}

	if err != nil {
		cerr := t.classifyDialError(ctx, err)
		t.lastErr = cerr
		if t.state == StateConnecting {
			t.setState(StateDisconnected, string(cerr.Kind))
		}
		t.mu.Unlock()
		t.logger.LogConnectionFailure(t.opts.URL, err, elapsed)
		return cerr
	}

	if t.stopReconnect != nil {
		t.stopReconnect()
		t.stopReconnect = nil
	}
	if t.state == StateReconnecting {
		t.reconnects++
	}
	t.gen++
	connGen := t.gen
	t.conn = conn
	t.attempts = 0
	t.lastErr = nil
	t.setState(StateConnected, "dial succeeded")
	t.mu.Unlock()

	t.logger.LogConnectionSuccess(t.opts.URL, elapsed)
	go t.readLoop(conn, connGen)

	if t.hooks.OnConnected != nil {
		t.hooks.OnConnected()
	}
	return nil
}

func (t *Transport) classifyDialError(ctx context.Context, err error) *ConnectionError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ConnectionError{Kind: KindTimeout, URL: t.opts.URL, Cause: err}
	}
	return &ConnectionError{Kind: KindRefused, URL: t.opts.URL, Cause: err}
}

func (t *Transport) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			t.handleLoss(gen, err)
			return
		}
		if t.hooks.OnMessage != nil {
			t.hooks.OnMessage(data)
		}
	}
}

// handleLoss reacts to an unsolicited loss of the connection of generation gen
func (t *Transport) handleLoss(gen uint64, cause error) {
	t.mu.Lock()
	if t.gen != gen || t.conn == nil {
		t.mu.Unlock()
		return
	}

	conn := t.conn
	t.conn = nil
	t.gen++
	lossErr := &ConnectionError{Kind: KindLost, URL: t.opts.URL, Cause: cause}
	t.lastErr = lossErr

	if !t.opts.DisableAutoReconnect {
		t.setState(StateReconnecting, "connection lost")
		ctx, cancel := context.WithCancel(context.Background())
		t.stopReconnect = cancel
		go t.reconnectLoop(ctx)
	} else {
		t.setState(StateDisconnected, "connection lost")
	}

	if t.hooks.OnLost != nil {
		t.hooks.OnLost(lossErr)
	}
	t.mu.Unlock()

	conn.Close()
}

// reconnectLoop waits Delay(k) before attempt k and gives up after MaxAttempts failures
func (t *Transport) reconnectLoop(ctx context.Context) {
	policy := t.opts.Retry
	for {
		t.mu.Lock()
		if ctx.Err() != nil || t.state != StateReconnecting {
			t.mu.Unlock()
			return
		}
		if t.attempts >= policy.MaxAttempts {
			t.exhaust()
			return
		}
		t.attempts++
		attempt := t.attempts
		t.mu.Unlock()

		delay := policy.Delay(attempt)
		t.logger.LogReconnectAttempt(attempt, policy.MaxAttempts, delay)
		if err := t.wait(ctx, delay); err != nil {
			return
		}

		err := t.joinDial(ctx)
		if err == nil || errors.Is(err, ErrConnectionClosed) || ctx.Err() != nil {
			return
		}
	}
}

// exhaust is called with t.mu held and releases it
func (t *Transport) exhaust() {
	err := &ConnectionError{
		Kind:     KindExhausted,
		URL:      t.opts.URL,
		Attempts: t.attempts,
		Cause:    t.lastErr,
	}
	t.lastErr = err
	if t.stopReconnect != nil {
		t.stopReconnect()
		t.stopReconnect = nil
	}
	t.setState(StateDisconnected, "reconnect attempts exhausted")
	t.mu.Unlock()

	t.logger.Error("Reconnection exhausted", "attempts", err.Attempts, "error", err.Error())
	if t.hooks.OnExhausted != nil {
		t.hooks.OnExhausted(err)
	}
}

// Send writes one frame. A write failure closes the connection so the read
// loop reports the loss.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return &ConnectionError{Kind: KindLost, URL: t.opts.URL, Cause: errNotConnected}
	}
	if err := conn.WriteMessage(data); err != nil {
		conn.Close()
		return &ConnectionError{Kind: KindLost, URL: t.opts.URL, Cause: err}
	}
	return nil
}

// Disconnect closes the connection, stops any reconnection and rejects
// everything pending. It is safe to call in any state.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.gen++
	if t.stopReconnect != nil {
		t.stopReconnect()
		t.stopReconnect = nil
	}
	t.attempts = 0
	if t.state != StateDisconnected {
		t.setState(StateDisconnected, "disconnect requested")
	}
	if t.hooks.OnLost != nil {
		t.hooks.OnLost(&ConnectionError{Kind: KindLost, URL: t.opts.URL, Cause: errDisconnected})
	}
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// State returns the current connection state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts returns the reconnect attempt counter; it is reset by a successful dial
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Reconnects returns how many times the state machine re-established the connection
func (t *Transport) Reconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnects
}

// LastError returns the most recent transport failure, or nil after a successful dial
func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// URL returns the endpoint the transport dials
func (t *Transport) URL() string {
	return t.opts.URL
}

// setState is called with t.mu held
func (t *Transport) setState(to State, reason string) {
	from := t.state
	if from == to {
		return
	}
	t.state = to
	t.logger.LogStateTransition(from.String(), to.String(), reason)
}
