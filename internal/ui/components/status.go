// Package components provides shared interface elements for the studio
// console: the connection status bar, status lines and the error pane.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/studioforge/studiorpc/internal/config"
)

// Palette holds the lipgloss styles derived from a configured theme
type Palette struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultPalette is used when no theme is configured
func DefaultPalette() Palette {
	return NewPalette(&config.Theme{
		Success: "#A6E3A1",
		Error:   "#F38BA8",
		Warning: "#FAB387",
		Info:    "#89B4FA",
		Muted:   "#6C7086",
	})
}

// NewPalette builds styles from theme colours
func NewPalette(theme *config.Theme) Palette {
	if theme == nil {
		return DefaultPalette()
	}
	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return Palette{
		Success: fg(theme.Success),
		Error:   fg(theme.Error),
		Warning: fg(theme.Warning),
		Info:    fg(theme.Info),
		Muted:   fg(theme.Muted),
	}
}

// statusIcons maps status strings to their corresponding icon.
var statusIcons = map[string]string{
	"pending": "⏳",
	"success": "✅",
	"error":   "❌",
	"warning": "⚠️",
	"info":    "ℹ️",
}

// style picks the palette entry for a status string
func (p Palette) style(status string) lipgloss.Style {
	switch status {
	case "success":
		return p.Success
	case "error":
		return p.Error
	case "warning", "pending":
		return p.Warning
	case "info":
		return p.Info
	default:
		return p.Muted
	}
}

// RenderStatus formats a status message with an appropriate icon and color.
func (p Palette) RenderStatus(status, message string) string {
	icon, exists := statusIcons[status]
	if !exists {
		icon = "🔹"
	}
	return p.style(status).Render(fmt.Sprintf("%s %s", icon, message))
}

// ConnectionStatus is a snapshot of the client for the status bar
type ConnectionStatus struct {
	State       string
	URL         string
	Server      string
	Attempts    int
	MaxAttempts int
	Pending     int
	Calls       int
	AvgLatency  time.Duration
	Health      string
	RTT         time.Duration
}

var stateIcons = map[string]string{
	"connected":    "●",
	"connecting":   "◌",
	"reconnecting": "↻",
	"disconnected": "○",
}

// stateStyle maps the connection state onto the palette
func (p Palette) stateStyle(state string) lipgloss.Style {
	switch state {
	case "connected":
		return p.Success.Bold(true)
	case "connecting", "reconnecting":
		return p.Warning.Bold(true)
	default:
		return p.Error.Bold(true)
	}
}

// RenderStatusBar renders the one-line connection summary, truncated to width
func (p Palette) RenderStatusBar(s ConnectionStatus, width int) string {
	icon, ok := stateIcons[s.State]
	if !ok {
		icon = "?"
	}

	state := s.State
	if s.State == "reconnecting" && s.MaxAttempts > 0 {
		state = fmt.Sprintf("reconnecting %d/%d", s.Attempts, s.MaxAttempts)
	}

	parts := []string{p.stateStyle(s.State).Render(icon + " " + state)}
	target := s.URL
	if s.Server != "" {
		target = s.Server + " @ " + s.URL
	}
	if target != "" {
		parts = append(parts, p.Muted.Render(target))
	}
	parts = append(parts, p.Info.Render(fmt.Sprintf("pending %d", s.Pending)))
	switch s.Health {
	case "healthy":
		parts = append(parts, p.Success.Render(fmt.Sprintf("rtt %s", s.RTT.Round(time.Millisecond))))
	case "unhealthy":
		parts = append(parts, p.Error.Render("ping failing"))
	}
	if s.Calls > 0 {
		parts = append(parts, p.Muted.Render(fmt.Sprintf("calls %d avg %s", s.Calls, s.AvgLatency.Round(time.Millisecond))))
	}

	bar := strings.Join(parts, p.Muted.Render(" │ "))
	if width > 0 {
		bar = lipgloss.NewStyle().MaxWidth(width).Render(bar)
	}
	return bar
}
