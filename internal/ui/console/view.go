package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/studioforge/studiorpc/internal/health"
	"github.com/studioforge/studiorpc/internal/protocol"
	"github.com/studioforge/studiorpc/internal/ui/components"
)

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting console..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.palette.RenderStatusBar(m.Status(), m.width))
	b.WriteString("\n")
	if m.inflight > 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(m.input.View())
	return b.String()
}

// Status snapshots the client for the status bar
func (m *Model) Status() components.ConnectionStatus {
	stats := m.client.Stats()
	status := components.ConnectionStatus{
		State:       m.client.State().String(),
		URL:         m.client.URL(),
		Attempts:    m.client.ReconnectAttempts(),
		MaxAttempts: m.maxAttempts,
		Pending:     m.client.PendingCount(),
		Calls:       stats.TotalRequests,
		AvgLatency:  stats.AverageResponseTime,
	}
	if hs := m.client.Handshake(); hs != nil {
		status.Server = hs.Server
	}
	if m.health != nil {
		if latest, ok := m.health.Latest(); ok {
			status.Health = latest.Status
			status.RTT = latest.ResponseTime
		}
	}
	return status
}

func formatMethods(methods []string, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d methods (%s):", len(methods), source)
	for _, name := range methods {
		b.WriteString("\n  " + name)
	}
	return b.String()
}

func formatStats(s protocol.ConnectionStatistics, pending int) string {
	last := "never"
	if !s.LastRequestTime.IsZero() {
		last = s.LastRequestTime.Format(time.TimeOnly)
	}
	return fmt.Sprintf(
		"calls %d  ok %d  failed %d  timed out %d\navg latency %s  pending %d  reconnects %d  last call %s",
		s.TotalRequests, s.SuccessfulRequests, s.FailedRequests, s.TimedOutRequests,
		s.AverageResponseTime.Round(time.Millisecond), pending, s.Reconnects, last,
	)
}

func formatHealth(latest health.Snapshot, trends health.Trends) string {
	line := fmt.Sprintf("peer %s, rtt %s", latest.Status, latest.ResponseTime.Round(time.Millisecond))
	if latest.ServerUptime != "" {
		line += ", server up " + latest.ServerUptime
	}
	if latest.Error != "" {
		line += "\n  " + latest.Error
	}
	return fmt.Sprintf("%s\n%d checks  %.0f%% healthy  avg rtt %s  trend %s",
		line, trends.SampleCount, trends.UptimePercentage,
		trends.AverageResponseTime.Round(time.Millisecond), trends.AvailabilityTrend)
}
