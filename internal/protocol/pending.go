package protocol

import (
	"encoding/json"
	"sync"
	"time"
)

// Outcome is the settlement of a PendingRequest: either Result or Err is meaningful
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// PendingRequest is an issued call that has not been settled yet
type PendingRequest struct {
	ID       uint64
	Method   string
	IssuedAt time.Time
	Timeout  time.Duration

	timer *time.Timer
	done  chan Outcome
}

// Done delivers exactly one Outcome
func (p *PendingRequest) Done() <-chan Outcome {
	return p.done
}

// PendingTable maps request ids to unsettled calls. Callers, the receive loop
// and timer callbacks all go through the same mutex; an entry is removed at
// the moment it is settled, so a second settlement finds nothing.
type PendingTable struct {
	mutex   sync.Mutex
	entries map[uint64]*PendingRequest
	limit   int
}

// NewPendingTable creates a table holding at most limit entries (0 means unbounded)
func NewPendingTable(limit int) *PendingTable {
	return &PendingTable{
		entries: make(map[uint64]*PendingRequest),
		limit:   limit,
	}
}

// Add registers id and arms its timer. When the timer fires before any other
// settlement the entry is rejected with a *TimeoutError.
func (t *PendingTable) Add(id uint64, method string, timeout time.Duration) (*PendingRequest, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.limit > 0 && len(t.entries) >= t.limit {
		return nil, ErrTooManyPending
	}

	p := &PendingRequest{
		ID:       id,
		Method:   method,
		IssuedAt: time.Now(),
		Timeout:  timeout,
		done:     make(chan Outcome, 1),
	}
	t.entries[id] = p
	// armed under the lock so the callback cannot run before the entry exists
	p.timer = time.AfterFunc(timeout, func() {
		t.settle(id, Outcome{Err: &TimeoutError{ID: id, Method: method, Window: timeout}})
	})
	return p, nil
}

// Resolve settles id with a successful result
func (t *PendingTable) Resolve(id uint64, result json.RawMessage) bool {
	return t.settle(id, Outcome{Result: result})
}

// Reject settles id with err
func (t *PendingTable) Reject(id uint64, err error) bool {
	return t.settle(id, Outcome{Err: err})
}

// Drain removes every entry and rejects each with err. It returns the number
// of entries rejected.
func (t *PendingTable) Drain(err error) int {
	t.mutex.Lock()
	drained := t.entries
	t.entries = make(map[uint64]*PendingRequest)
	t.mutex.Unlock()

	for _, p := range drained {
		p.timer.Stop()
		p.done <- Outcome{Err: err}
	}
	return len(drained)
}

// Len returns the number of unsettled entries
func (t *PendingTable) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.entries)
}

// Lookup returns the pending entry for id without settling it
func (t *PendingTable) Lookup(id uint64) (*PendingRequest, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	p, ok := t.entries[id]
	return p, ok
}

// settle removes id and delivers outcome; false means id was not pending
func (t *PendingTable) settle(id uint64, outcome Outcome) bool {
	t.mutex.Lock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mutex.Unlock()

	if !ok {
		return false
	}
	p.timer.Stop()
	p.done <- outcome
	return true
}
