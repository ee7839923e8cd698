// Package protocol implements the client side of the studio RPC layer: a
// single WebSocket connection with a reconnection state machine, and a
// correlator matching JSON-RPC responses to outstanding calls by id.
package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/studioforge/studiorpc/internal/interfaces"
)

// Version is reported in the dial User-Agent and the peer handshake
const Version = "1.0.0"

// Timeouts and bounds used when Options leaves a field zero
const (
	DefaultConnectTimeout       = 10 * time.Second
	DefaultRequestTimeout       = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxPending           = 1024
	WriteTimeout                = 10 * time.Second
)

// State of the single logical connection
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Client. Zero fields take the Default* values; a
// negative MaxPending leaves the pending table unbounded.
type Options struct {
	URL            string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxPending     int
	Retry          RetryPolicy
	// DisableAutoReconnect leaves the client disconnected after an unsolicited
	// loss instead of running the reconnection state machine
	DisableAutoReconnect bool
}

// DefaultOptions returns options for url with every default applied
func DefaultOptions(url string) Options {
	return Options{
		URL:            url,
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxPending:     DefaultMaxPending,
		Retry:          DefaultRetryPolicy(),
	}
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxPending == 0 {
		o.MaxPending = DefaultMaxPending
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if o.Retry.InitialDelay <= 0 {
		o.Retry.InitialDelay = DefaultReconnectBaseDelay
	}
	if o.Retry.MaxDelay <= 0 {
		o.Retry.MaxDelay = DefaultReconnectMaxDelay
	}
	if o.Retry.BackoffFactor < 1 {
		o.Retry.BackoffFactor = 2
	}
	return o
}

// ConnectionStatistics tracks call outcomes for monitoring and the console status bar
type ConnectionStatistics struct {
	TotalRequests       int           `json:"totalRequests"`
	SuccessfulRequests  int           `json:"successfulRequests"`
	FailedRequests      int           `json:"failedRequests"`
	TimedOutRequests    int           `json:"timedOutRequests"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	LastRequestTime     time.Time     `json:"lastRequestTime"`
	Reconnects          int           `json:"reconnects"`
}

// ValidationError represents errors in request validation before sending
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface for ValidationError
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", ve.Field, ve.Message)
}

// Validation limits
const (
	maxNameLength   = 200
	maxPromptLength = 2000
	maxQueryLength  = 500
	maxCanvasSide   = 10000
)

// RequestValidator checks typed requests before they are sent
type RequestValidator struct {
	strictMode bool
}

// NewRequestValidator creates a new request validator with specified validation mode
func NewRequestValidator(strictMode bool) *RequestValidator {
	return &RequestValidator{strictMode: strictMode}
}

// ValidateCreateDesign ensures design creation parameters are usable
func (rv *RequestValidator) ValidateCreateDesign(req *interfaces.CreateDesignParams) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Message: "name cannot be empty"}
	}
	if rv.strictMode && len(req.Name) > maxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("name exceeds maximum length of %d characters", maxNameLength)}
	}
	return validateCanvas(req.Width, req.Height)
}

// ValidateGenerate ensures an AI generation prompt is present and bounded
func (rv *RequestValidator) ValidateGenerate(req *interfaces.GenerateDesignParams) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "prompt cannot be empty"}
	}
	if rv.strictMode && len(req.Prompt) > maxPromptLength {
		return &ValidationError{Field: "prompt", Message: fmt.Sprintf("prompt exceeds maximum length of %d characters", maxPromptLength)}
	}
	return validateCanvas(req.Width, req.Height)
}

// ValidateTemplateQuery bounds free-text search input
func (rv *RequestValidator) ValidateTemplateQuery(req *interfaces.TemplateQuery) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if rv.strictMode && len(req.Query) > maxQueryLength {
		return &ValidationError{Field: "query", Message: fmt.Sprintf("query exceeds maximum length of %d characters", maxQueryLength)}
	}
	if req.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "limit cannot be negative", Value: req.Limit}
	}
	return nil
}

// ValidateID ensures an identifier is present
func (rv *RequestValidator) ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Message: field + " cannot be empty"}
	}
	return nil
}

func validateCanvas(width, height int) error {
	if width < 0 || width > maxCanvasSide {
		return &ValidationError{Field: "width", Message: "width out of range", Value: width}
	}
	if height < 0 || height > maxCanvasSide {
		return &ValidationError{Field: "height", Message: "height out of range", Value: height}
	}
	return nil
}
