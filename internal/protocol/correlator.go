package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// Link is the part of the Transport Manager the correlator depends on
type Link interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	State() State
}

// Correlator issues request ids, registers pending calls and settles them
// from inbound responses, timer expiry or connection loss.
type Correlator struct {
	link           Link
	table          *PendingTable
	nextID         atomic.Uint64
	defaultTimeout time.Duration
	logger         *logging.Logger

	onNotification func(*jsonrpc.Notification)

	statsMutex sync.Mutex
	stats      ConnectionStatistics
}

// NewCorrelator creates a correlator sending through link
func NewCorrelator(link Link, defaultTimeout time.Duration, maxPending int, logger *logging.Logger) *Correlator {
	if logger == nil {
		logger = logging.GetProtocolLogger()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultRequestTimeout
	}
	return &Correlator{
		link:           link,
		table:          NewPendingTable(max(maxPending, 0)),
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// OnNotification registers the callback for inbound notifications. It must be
// set before the first frame arrives.
func (c *Correlator) OnNotification(fn func(*jsonrpc.Notification)) {
	c.onNotification = fn
}

// Call sends method with params and blocks until the matching response, the
// timeout, connection loss or ctx cancellation settles it. A non-positive
// timeout uses the default request timeout.
func (c *Correlator) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	return c.call(ctx, method, params, timeout, true)
}

// CallConnected is Call without the on-demand connect: unless the link is
// connected it fails at once with a lost ConnectionError.
func (c *Correlator) CallConnected(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	return c.call(ctx, method, params, timeout, false)
}

func (c *Correlator) call(ctx context.Context, method string, params interface{}, timeout time.Duration, dial bool) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	if c.link.State() != StateConnected {
		if !dial {
			return nil, &ConnectionError{Kind: KindLost, Cause: errNotConnected}
		}
		if err := c.link.Connect(ctx); err != nil {
			return nil, err
		}
	}

	id := c.nextID.Add(1)
	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	frame, err := jsonrpc.Encode(req)
	if err != nil {
		return nil, err
	}

	pending, err := c.table.Add(id, method, timeout)
	if err != nil {
		return nil, err
	}

	if err := c.link.Send(frame); err != nil {
		c.table.Reject(id, err)
	}

	var out Outcome
	select {
	case out = <-pending.Done():
	case <-ctx.Done():
		// local cancellation; a concurrent settlement may already have won
		c.table.Reject(id, ctx.Err())
		out = <-pending.Done()
	}

	c.record(pending, out)
	return out.Result, out.Err
}

// HandleFrame processes one inbound frame from the transport. Unparsable
// frames and responses without a pending entry are logged and dropped.
func (c *Correlator) HandleFrame(data []byte) {
	msg, err := jsonrpc.Decode(data)
	if err != nil {
		c.logger.Warn("Dropping unparsable frame", "error", err.Error(), "size", len(data))
		return
	}

	switch m := msg.(type) {
	case *jsonrpc.Response:
		c.handleResponse(m)
	case *jsonrpc.Notification:
		if c.onNotification != nil {
			c.onNotification(m)
		} else {
			c.logger.Debug("Ignoring notification", "method", m.Method)
		}
	case *jsonrpc.Request:
		c.logger.Warn("Ignoring request from peer", "id", m.ID, "method", m.Method)
	}
}

func (c *Correlator) handleResponse(resp *jsonrpc.Response) {
	if resp.ID == nil {
		if resp.Error != nil {
			c.logger.Warn("Peer reported uncorrelated error", "code", resp.Error.Code, "message", resp.Error.Message)
		}
		return
	}

	var settled bool
	if resp.Error != nil {
		settled = c.table.Reject(*resp.ID, resp.Error)
	} else {
		settled = c.table.Resolve(*resp.ID, resp.Result)
	}
	if !settled {
		c.logger.Debug("Dropping response without pending request", "id", *resp.ID)
	}
}

// RejectAll drains the pending table, rejecting every call with err
func (c *Correlator) RejectAll(err error) int {
	n := c.table.Drain(err)
	if n > 0 {
		c.logger.Info("Rejected pending requests", "count", n, "reason", err.Error())
	}
	return n
}

// PendingCount returns the number of unsettled calls
func (c *Correlator) PendingCount() int {
	return c.table.Len()
}

// Stats returns a copy of the call statistics
func (c *Correlator) Stats() ConnectionStatistics {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return c.stats
}

func (c *Correlator) record(p *PendingRequest, out Outcome) {
	elapsed := time.Since(p.IssuedAt)

	outcome := "success"
	switch {
	case out.Err == nil:
	case errors.Is(out.Err, ErrRequestTimeout):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	c.logger.LogCallSettled(p.ID, p.Method, outcome, elapsed)

	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()

	stats := &c.stats
	stats.TotalRequests++
	stats.LastRequestTime = time.Now()
	switch outcome {
	case "success":
		stats.SuccessfulRequests++
	case "timeout":
		stats.TimedOutRequests++
		stats.FailedRequests++
	default:
		stats.FailedRequests++
	}

	if stats.TotalRequests == 1 {
		stats.AverageResponseTime = elapsed
	} else {
		total := stats.AverageResponseTime * time.Duration(stats.TotalRequests-1)
		stats.AverageResponseTime = (total + elapsed) / time.Duration(stats.TotalRequests)
	}
}
