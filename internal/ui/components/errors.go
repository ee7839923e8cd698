package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/studioforge/studiorpc/internal/errors"
)

var (
	errorPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			Padding(0, 1)

	hintTitleStyle = lipgloss.NewStyle().Bold(true)
)

// RenderErrorPane renders a classified error: message, code and recovery hints.
func (p Palette) RenderErrorPane(ce *errors.ContextualError, width int) string {
	if ce == nil {
		return ""
	}

	tone := p.Error
	if ce.Severity == errors.SeverityLow {
		tone = p.Warning
	}

	var b strings.Builder
	b.WriteString(tone.Bold(true).Render(fmt.Sprintf("❌ %s error: %s", ce.Type, ce.GetUserMessage())))
	if ce.Code != "" {
		b.WriteString("\n")
		b.WriteString(p.Muted.Italic(true).Render("   code " + ce.Code))
	}
	if ce.Cause != nil && ce.Cause.Error() != ce.GetUserMessage() {
		b.WriteString("\n")
		b.WriteString(p.Muted.Render("   " + ce.Cause.Error()))
	}
	if ce.RetryAfter != nil {
		b.WriteString("\n")
		b.WriteString(p.Muted.Render(fmt.Sprintf("   retry in %s", ce.RetryAfter.Round(time.Millisecond))))
	}

	if hints := ce.GetRecoveryHints(); len(hints) > 0 {
		b.WriteString("\n")
		b.WriteString(hintTitleStyle.Inherit(p.Success).Render("Try:"))
		for _, h := range hints {
			b.WriteString("\n  • " + h)
		}
	}

	style := errorPaneStyle.BorderForeground(tone.GetForeground())
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(b.String())
}
