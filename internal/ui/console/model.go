// Package console implements the interactive studio console: a transcript
// viewport, a command line and a live connection status bar, driving one
// protocol client.
package console

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studioforge/studiorpc/internal/content"
	"github.com/studioforge/studiorpc/internal/health"
	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
	"github.com/studioforge/studiorpc/internal/ui/components"
)

// Client is the part of protocol.Client the console drives
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error)
	ListMethods(ctx context.Context) ([]string, error)
	State() protocol.State
	ReconnectAttempts() int
	URL() string
	PendingCount() int
	Stats() protocol.ConnectionStatistics
	Handshake() *interfaces.Handshake
	Failures() <-chan error
}

var _ Client = (*protocol.Client)(nil)

// Options configures a console Model
type Options struct {
	Palette        *components.Palette
	Highlighter    *content.SyntaxHighlighter
	MaxAttempts    int
	ConnectTimeout time.Duration
	// ConnectOnStart dials as soon as the program starts
	ConnectOnStart bool
	// Health, when set, feeds the status bar and /health
	Health *health.Monitor
	Logger *logging.Logger
}

const (
	statusPollInterval = 250 * time.Millisecond
	maxInputHistory    = 100
	chromeHeight       = 3
)

// Model is the Bubble Tea model of the console
type Model struct {
	client      Client
	palette     components.Palette
	highlighter *content.SyntaxHighlighter
	logger      *logging.Logger
	health      *health.Monitor

	maxAttempts    int
	connectTimeout time.Duration
	connectOnStart bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript []string
	inflight   int
	lastState  protocol.State

	inputHistory      []string
	inputHistoryIndex int

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a console model for client
func New(client Client, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = logging.GetUILogger()
	}
	if opts.Highlighter == nil {
		opts.Highlighter = content.NewSyntaxHighlighter("github", content.FormatterTerminal256)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = protocol.DefaultConnectTimeout
	}
	palette := components.DefaultPalette()
	if opts.Palette != nil {
		palette = *opts.Palette
	}

	input := textinput.New()
	input.Placeholder = `method {"param":"value"}  or /help`
	input.Prompt = "› "
	input.CharLimit = 4096
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = palette.Warning

	return &Model{
		client:         client,
		palette:        palette,
		highlighter:    opts.Highlighter,
		logger:         opts.Logger,
		health:         opts.Health,
		maxAttempts:    opts.MaxAttempts,
		connectTimeout: opts.ConnectTimeout,
		connectOnStart: opts.ConnectOnStart,
		input:          input,
		viewport:       viewport.New(80, 20),
		spinner:        spin,
		lastState:      client.State(),
	}
}

// Init starts the cursor blink, spinner, status polling and failure watch
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		pollStatus(),
		waitForFailure(m.client.Failures()),
	}
	if m.connectOnStart {
		cmds = append(cmds, m.connectCmd())
	}
	return tea.Batch(cmds...)
}

// Transcript returns the lines written so far
func (m *Model) Transcript() []string {
	return m.transcript
}

// Inflight returns the number of calls started from the console and not yet settled
func (m *Model) Inflight() int {
	return m.inflight
}

// Messages

type statusTickMsg time.Time

type callResultMsg struct {
	method  string
	result  json.RawMessage
	err     error
	elapsed time.Duration
}

type metaResultMsg struct {
	text string
	err  error
}

type failureMsg struct {
	err error
}

func pollStatus() tea.Cmd {
	return tea.Tick(statusPollInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// waitForFailure delivers the next terminal client failure; a nil channel disables the watch
func waitForFailure(failures <-chan error) tea.Cmd {
	if failures == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-failures
		if !ok {
			return nil
		}
		return failureMsg{err: err}
	}
}

func (m *Model) connectCmd() tea.Cmd {
	client, timeout := m.client, m.connectTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Connect(ctx); err != nil {
			return metaResultMsg{err: err}
		}
		return metaResultMsg{text: "connected to " + client.URL()}
	}
}

func (m *Model) callCmd(method string, params json.RawMessage) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		start := time.Now()
		var p interface{}
		if len(params) > 0 {
			p = params
		}
		result, err := client.Call(context.Background(), method, p, 0)
		return callResultMsg{method: method, result: result, err: err, elapsed: time.Since(start)}
	}
}

func (m *Model) listMethodsCmd() tea.Cmd {
	client, timeout := m.client, m.connectTimeout
	return func() tea.Msg {
		if hs := client.Handshake(); hs != nil && client.State() == protocol.StateConnected {
			return metaResultMsg{text: formatMethods(hs.Methods, "from handshake")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		methods, err := client.ListMethods(ctx)
		if err != nil {
			return metaResultMsg{err: err}
		}
		return metaResultMsg{text: formatMethods(methods, "from system.listMethods")}
	}
}

func (m *Model) healthCmd() tea.Cmd {
	monitor := m.health
	return func() tea.Msg {
		if monitor == nil {
			return metaResultMsg{text: "health monitoring is off"}
		}
		latest, ok := monitor.Check(context.Background())
		if !ok {
			return metaResultMsg{text: "not connected; nothing to check"}
		}
		return metaResultMsg{text: formatHealth(latest, monitor.Trends())}
	}
}
