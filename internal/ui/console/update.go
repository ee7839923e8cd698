package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studioforge/studiorpc/internal/errors"
	"github.com/studioforge/studiorpc/internal/protocol"
)

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var commands []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKeyInput(msg); cmd != nil {
			commands = append(commands, cmd)
		}

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case statusTickMsg:
		m.observeState()
		commands = append(commands, pollStatus())

	case callResultMsg:
		m.handleCallResult(msg)

	case metaResultMsg:
		if msg.err != nil {
			m.appendError(msg.err)
		} else if msg.text != "" {
			m.appendLine(msg.text)
		}

	case failureMsg:
		m.appendError(msg.err)
		commands = append(commands, waitForFailure(m.client.Failures()))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		commands = append(commands, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		commands = append(commands, cmd)
	}

	return m, tea.Batch(commands...)
}

func (m *Model) handleKeyInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if line == "" {
			return nil
		}
		m.pushHistory(line)
		return m.Submit(line)

	case "up":
		m.navigateInputHistory(-1)
		return nil

	case "down":
		m.navigateInputHistory(1)
		return nil

	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// Submit runs one console line and returns the command that completes it
func (m *Model) Submit(line string) tea.Cmd {
	cmd, err := ParseInput(line)
	if err != nil {
		if err != ErrEmptyInput {
			m.appendLine(m.palette.RenderStatus("error", err.Error()))
		}
		return nil
	}

	m.appendLine(m.palette.Muted.Render("› " + line))

	if !cmd.IsMeta() {
		m.inflight++
		m.logger.Debug("Console call submitted", "method", cmd.Method, "inflight", m.inflight)
		return m.callCmd(cmd.Method, cmd.Params)
	}

	switch cmd.Meta {
	case MetaConnect:
		m.appendLine(m.palette.RenderStatus("pending", "connecting to "+m.client.URL()))
		return m.connectCmd()
	case MetaDisconnect:
		if err := m.client.Disconnect(); err != nil {
			m.appendError(err)
		} else {
			m.appendLine(m.palette.RenderStatus("info", "disconnected"))
		}
		return nil
	case MetaMethods:
		return m.listMethodsCmd()
	case MetaStats:
		m.appendLine(formatStats(m.client.Stats(), m.client.PendingCount()))
		return nil
	case MetaHealth:
		return m.healthCmd()
	case MetaClear:
		m.transcript = nil
		m.refreshViewport()
		return nil
	case MetaHelp:
		m.appendLine(helpText)
		return nil
	case MetaQuit:
		m.quitting = true
		return tea.Quit
	}
	return nil
}

func (m *Model) handleCallResult(msg callResultMsg) {
	if m.inflight > 0 {
		m.inflight--
	}
	elapsed := msg.elapsed.Round(time.Millisecond)

	if msg.err != nil {
		m.logger.Debug("Console call failed", "method", msg.method, "error", msg.err.Error())
		m.appendLine(m.palette.RenderStatus("error", fmt.Sprintf("%s failed after %s", msg.method, elapsed)))
		m.appendError(msg.err)
		return
	}

	m.appendLine(m.palette.RenderStatus("success", fmt.Sprintf("%s (%s)", msg.method, elapsed)))
	body, err := m.highlighter.HighlightJSON(msg.result)
	if err != nil {
		body = string(msg.result)
	}
	m.appendLine(body)
}

// observeState writes a transcript line whenever the connection state changes
func (m *Model) observeState() {
	state := m.client.State()
	if state == m.lastState {
		return
	}
	prev := m.lastState
	m.lastState = state

	switch state {
	case protocol.StateConnected:
		m.appendLine(m.palette.RenderStatus("success", "connected to "+m.client.URL()))
	case protocol.StateReconnecting:
		m.appendLine(m.palette.RenderStatus("warning", "connection lost, reconnecting"))
	case protocol.StateDisconnected:
		if prev != protocol.StateConnecting {
			m.appendLine(m.palette.RenderStatus("info", "disconnected"))
		}
	}
}

func (m *Model) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	m.refreshViewport()
}

func (m *Model) appendError(err error) {
	m.appendLine(m.palette.RenderErrorPane(errors.Classify(err), m.width))
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) setSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = height - chromeHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.Width = width - 4
	m.ready = true
	m.refreshViewport()
}

func (m *Model) pushHistory(line string) {
	if n := len(m.inputHistory); n == 0 || m.inputHistory[n-1] != line {
		m.inputHistory = append(m.inputHistory, line)
		if len(m.inputHistory) > maxInputHistory {
			m.inputHistory = m.inputHistory[1:]
		}
	}
	m.inputHistoryIndex = len(m.inputHistory)
}

func (m *Model) navigateInputHistory(direction int) {
	if len(m.inputHistory) == 0 {
		return
	}
	idx := m.inputHistoryIndex + direction
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.inputHistory) {
		m.inputHistoryIndex = len(m.inputHistory)
		m.input.SetValue("")
		return
	}
	m.inputHistoryIndex = idx
	m.input.SetValue(m.inputHistory[idx])
	m.input.CursorEnd()
}
