package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// Client implements the ProtocolClient interface over one WebSocket connection
type Client struct {
	transport  *Transport
	correlator *Correlator
	validator  *RequestValidator
	logger     *logging.Logger

	failures chan error

	mutex     sync.RWMutex
	handshake *interfaces.Handshake
}

var _ interfaces.ProtocolClient = (*Client)(nil)

// NewClient creates a disconnected client for opts.URL
func NewClient(opts Options, logger *logging.Logger) *Client {
	return newClient(opts, nil, logger)
}

// NewClientWithDialer creates a client that opens connections through dialer
func NewClientWithDialer(opts Options, dialer Dialer, logger *logging.Logger) *Client {
	return newClient(opts, dialer, logger)
}

func newClient(opts Options, dialer Dialer, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetProtocolLogger()
	}
	opts = opts.withDefaults()

	c := &Client{
		validator: NewRequestValidator(true),
		logger:    logger,
		failures:  make(chan error, 1),
	}

	maxPending := opts.MaxPending
	if maxPending < 0 {
		maxPending = 0
	}

	c.transport = NewTransport(opts, dialer, Hooks{
		OnMessage: func(data []byte) { c.correlator.HandleFrame(data) },
		OnLost:    func(err error) { c.correlator.RejectAll(err) },
		OnExhausted: func(err error) {
			c.correlator.RejectAll(err)
			c.reportFailure(err)
		},
	}, logger)
	c.correlator = NewCorrelator(c.transport, opts.RequestTimeout, maxPending, logger)
	c.correlator.OnNotification(c.handleNotification)

	return c
}

// Connect establishes the connection or joins an attempt already in flight
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// Call issues method and blocks until it is settled. Params are encoded as
// JSON; nil sends no params member.
func (c *Client) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	return c.correlator.Call(ctx, method, params, timeout)
}

// Disconnect closes the connection and rejects every pending call
func (c *Client) Disconnect() error {
	return c.transport.Disconnect()
}

// Close is Disconnect for use with defer
func (c *Client) Close() error {
	return c.Disconnect()
}

// IsConnected returns whether the connection is currently established
func (c *Client) IsConnected() bool {
	return c.transport.State() == StateConnected
}

// State returns the transport state
func (c *Client) State() State {
	return c.transport.State()
}

// ReconnectAttempts returns the current reconnect attempt counter
func (c *Client) ReconnectAttempts() int {
	return c.transport.Attempts()
}

// URL returns the endpoint of this client
func (c *Client) URL() string {
	return c.transport.URL()
}

// GetLastError returns the most recent transport failure
func (c *Client) GetLastError() error {
	return c.transport.LastError()
}

// Failures delivers terminal transport failures such as exhausted reconnection.
// Only the most recent unread failure is kept.
func (c *Client) Failures() <-chan error {
	return c.failures
}

// Handshake returns the last system.hello received from the peer
func (c *Client) Handshake() *interfaces.Handshake {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.handshake
}

// PendingCount returns the number of calls awaiting a response
func (c *Client) PendingCount() int {
	return c.correlator.PendingCount()
}

// Stats returns call statistics including reconnect count
func (c *Client) Stats() ConnectionStatistics {
	stats := c.correlator.Stats()
	stats.Reconnects = c.transport.Reconnects()
	return stats
}

func (c *Client) handleNotification(n *jsonrpc.Notification) {
	if n.Method != interfaces.MethodHello {
		c.logger.Debug("Ignoring notification", "method", n.Method)
		return
	}

	var hello interfaces.Handshake
	if err := json.Unmarshal(n.Params, &hello); err != nil {
		c.logger.Warn("Malformed handshake", "error", err.Error())
		return
	}

	c.mutex.Lock()
	c.handshake = &hello
	c.mutex.Unlock()

	c.logger.Info("Peer handshake received",
		"server", hello.Server,
		"version", hello.Version,
		"methods", len(hello.Methods))
}

func (c *Client) reportFailure(err error) {
	for {
		select {
		case c.failures <- err:
			return
		default:
		}
		// drop the stale failure so the newest one is delivered
		select {
		case <-c.failures:
		default:
		}
	}
}
