// Package health keeps watch over a live studio connection. A Monitor pings
// the peer on an interval while the client is connected and keeps a bounded
// history of the results for the console.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
)

// Snapshot statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

const (
	DefaultInterval       = 15 * time.Second
	DefaultCheckTimeout   = 5 * time.Second
	DefaultMaxHistorySize = 100
)

// Pinger is the part of the client a Monitor needs
type Pinger interface {
	Ping(ctx context.Context) (*interfaces.PingResult, error)
	State() protocol.State
}

// Snapshot captures one liveness check
type Snapshot struct {
	Timestamp    time.Time     `json:"timestamp"`
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"responseTime"`
	ServerUptime string        `json:"serverUptime,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Trends summarises the recorded history
type Trends struct {
	SampleCount         int           `json:"sampleCount"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	AvailabilityTrend   string        `json:"availabilityTrend"` // "improving", "degrading", "stable"
	ConsecutiveFailures int           `json:"consecutiveFailures"`
}

// Monitor periodically pings the peer
type Monitor struct {
	pinger         Pinger
	interval       time.Duration
	checkTimeout   time.Duration
	maxHistorySize int
	logger         *logging.Logger

	mutex            sync.RWMutex
	history          []Snapshot
	consecutiveFails int
	cancel           context.CancelFunc
	done             chan struct{}
}

// NewMonitor creates a stopped monitor; zero durations take the defaults
func NewMonitor(pinger Pinger, interval, checkTimeout time.Duration, logger *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = logging.GetProtocolLogger().WithComponent("health")
	}
	return &Monitor{
		pinger:         pinger,
		interval:       interval,
		checkTimeout:   checkTimeout,
		maxHistorySize: DefaultMaxHistorySize,
		logger:         logger,
	}
}

// Start runs checks every interval until Stop or ctx is done. Starting a
// running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop halts the check loop and waits for it to exit
func (m *Monitor) Stop() {
	m.mutex.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mutex.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings the peer once and records the result. Checks are skipped while
// the client is not connected so the monitor never triggers a dial of its own.
func (m *Monitor) Check(ctx context.Context) (Snapshot, bool) {
	if m.pinger.State() != protocol.StateConnected {
		return Snapshot{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	start := time.Now()
	result, err := m.pinger.Ping(ctx)
	snapshot := Snapshot{
		Timestamp:    start,
		Status:       StatusHealthy,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		snapshot.Status = StatusUnhealthy
		snapshot.Error = err.Error()
	} else if result != nil {
		snapshot.ServerUptime = result.Uptime
	}

	m.record(snapshot)
	return snapshot, true
}

func (m *Monitor) record(snapshot Snapshot) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.history = append(m.history, snapshot)
	if len(m.history) > m.maxHistorySize {
		m.history = m.history[1:]
	}

	if snapshot.Status == StatusHealthy {
		if m.consecutiveFails > 0 {
			m.logger.Info("Peer healthy again", "after_failures", m.consecutiveFails)
		}
		m.consecutiveFails = 0
		return
	}
	m.consecutiveFails++
	m.logger.Warn("Liveness check failed",
		"error", snapshot.Error,
		"consecutive_failures", m.consecutiveFails)
}

// Latest returns the most recent snapshot, if any
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if len(m.history) == 0 {
		return Snapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// History returns up to limit of the most recent snapshots, oldest first
func (m *Monitor) History(limit int) []Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	start := 0
	if limit > 0 && len(m.history) > limit {
		start = len(m.history) - limit
	}
	result := make([]Snapshot, len(m.history[start:]))
	copy(result, m.history[start:])
	return result
}

// Trends analyses the recorded history
func (m *Monitor) Trends() Trends {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	trends := Trends{
		SampleCount:         len(m.history),
		ConsecutiveFailures: m.consecutiveFails,
		AvailabilityTrend:   "stable",
	}
	if len(m.history) == 0 {
		return trends
	}

	var total time.Duration
	for _, s := range m.history {
		total += s.ResponseTime
	}
	trends.UptimePercentage = healthyPercent(m.history)
	trends.AverageResponseTime = total / time.Duration(len(m.history))

	if len(m.history) >= 2 {
		half := len(m.history) / 2
		first, second := healthyPercent(m.history[:half]), healthyPercent(m.history[half:])
		switch {
		case second > first:
			trends.AvailabilityTrend = "improving"
		case second < first:
			trends.AvailabilityTrend = "degrading"
		}
	}
	return trends
}

func healthyPercent(snapshots []Snapshot) float64 {
	healthy := 0
	for _, s := range snapshots {
		if s.Status == StatusHealthy {
			healthy++
		}
	}
	return float64(healthy) / float64(len(snapshots)) * 100
}
