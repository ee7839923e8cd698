// Package errors turns the failures a studio client can see into contextual
// errors carrying a category, a severity and recovery hints for presentation.
package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/studioforge/studiorpc/internal/logging"
)

// ErrorType categorizes errors for presentation
type ErrorType string

const (
	ErrorTypeConnection    ErrorType = "connection"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeProtocol      ErrorType = "protocol"
	ErrorTypeApplication   ErrorType = "application"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeRuntime       ErrorType = "runtime"
)

// ErrorSeverity indicates the impact level of an error
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ContextualError provides enhanced error information with diagnostic context
type ContextualError struct {
	Type        ErrorType              `json:"type"`
	Severity    ErrorSeverity          `json:"severity"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Component   string                 `json:"component"`
	Operation   string                 `json:"operation,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	StackTrace  []string               `json:"stackTrace,omitempty"`
	Cause       error                  `json:"-"`
	Recoverable bool                   `json:"recoverable"`
	RetryAfter  *time.Duration         `json:"retryAfter,omitempty"`
	Hints       []string               `json:"hints,omitempty"`
}

// Error implements the error interface
func (e *ContextualError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Type, e.Message)
}

// Unwrap provides access to the underlying error
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *ContextualError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// IsRecoverable indicates if the error can potentially be resolved
func (e *ContextualError) IsRecoverable() bool {
	return e.Recoverable
}

// GetRecoveryHints returns suggested next steps, falling back to per-type defaults
func (e *ContextualError) GetRecoveryHints() []string {
	if len(e.Hints) > 0 {
		return e.Hints
	}

	switch e.Type {
	case ErrorTypeConnection:
		return []string{"/connect to retry", "check that studiod is running"}
	case ErrorTypeTimeout:
		return []string{"retry the call", "raise STUDIORPC_REQUEST_TIMEOUT"}
	case ErrorTypeProtocol:
		return []string{"check the method name and params JSON", "/methods lists what the peer serves"}
	case ErrorTypeValidation:
		return []string{"fix the params and try again"}
	case ErrorTypeConfiguration:
		return []string{"edit the profiles file", "unset the STUDIORPC_* overrides"}
	default:
		return []string{"retry the call"}
	}
}

// ErrorBuilder provides a fluent interface for creating contextual errors
type ErrorBuilder struct {
	err          *ContextualError
	logger       *logging.Logger
	captureStack bool
}

// NewErrorBuilder creates a new error builder with default settings
func NewErrorBuilder(errorType ErrorType, component string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &ContextualError{
			Type:        errorType,
			Severity:    SeverityMedium,
			Component:   component,
			Context:     make(map[string]interface{}),
			Timestamp:   time.Now(),
			Recoverable: true,
		},
		logger:       logging.GetGlobalLogger().WithComponent(component),
		captureStack: true,
	}
}

// WithSeverity sets the error severity level
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.err.Severity = severity
	return eb
}

// WithMessage sets the technical error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.err.Message = message
	return eb
}

// WithUserMessage sets the message shown in the console
func (eb *ErrorBuilder) WithUserMessage(userMessage string) *ErrorBuilder {
	eb.err.UserMessage = userMessage
	return eb
}

// WithCode sets a short machine-readable code
func (eb *ErrorBuilder) WithCode(code string) *ErrorBuilder {
	eb.err.Code = code
	return eb
}

// WithOperation names the operation that failed
func (eb *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	eb.err.Operation = operation
	return eb
}

// WithCause sets the underlying error
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.err.Cause = cause
	return eb
}

// WithContext adds a diagnostic key/value
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.err.Context[key] = value
	return eb
}

// WithRecoverable marks whether retrying can help
func (eb *ErrorBuilder) WithRecoverable(recoverable bool) *ErrorBuilder {
	eb.err.Recoverable = recoverable
	return eb
}

// WithRetryAfter suggests a delay before retrying
func (eb *ErrorBuilder) WithRetryAfter(delay time.Duration) *ErrorBuilder {
	eb.err.RetryAfter = &delay
	return eb
}

// WithHints replaces the default recovery hints
func (eb *ErrorBuilder) WithHints(hints ...string) *ErrorBuilder {
	eb.err.Hints = append(eb.err.Hints, hints...)
	return eb
}

// WithoutStackTrace skips stack capture
func (eb *ErrorBuilder) WithoutStackTrace() *ErrorBuilder {
	eb.captureStack = false
	return eb
}

// WithoutLogging builds the error without emitting a log record
func (eb *ErrorBuilder) WithoutLogging() *ErrorBuilder {
	eb.logger = nil
	return eb
}

// Build finalizes the error and logs it according to severity
func (eb *ErrorBuilder) Build() *ContextualError {
	if eb.captureStack {
		eb.err.StackTrace = captureStackTrace(3)
	}
	if eb.err.Message == "" && eb.err.Cause != nil {
		eb.err.Message = eb.err.Cause.Error()
	}

	if eb.logger != nil {
		args := []interface{}{
			"error_type", string(eb.err.Type),
			"severity", string(eb.err.Severity),
			"recoverable", eb.err.Recoverable,
		}
		if eb.err.Operation != "" {
			args = append(args, "operation", eb.err.Operation)
		}
		if eb.err.Code != "" {
			args = append(args, "code", eb.err.Code)
		}
		if eb.err.Cause != nil {
			args = append(args, "cause", eb.err.Cause.Error())
		}

		switch eb.err.Severity {
		case SeverityCritical, SeverityHigh:
			eb.logger.Error(eb.err.Message, args...)
		case SeverityMedium:
			eb.logger.Warn(eb.err.Message, args...)
		default:
			eb.logger.Debug(eb.err.Message, args...)
		}
	}

	return eb.err
}

func captureStackTrace(skip int) []string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var trace []string
	for {
		frame, more := frames.Next()
		// runtime frames add nothing for a console user
		if !strings.HasPrefix(frame.Function, "runtime.") {
			trace = append(trace, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return trace
}

// Convenience builders
func NewConnectionError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeConnection, component).WithSeverity(SeverityHigh)
}

func NewTimeoutError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeTimeout, component)
}

func NewProtocolError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeProtocol, component).WithRecoverable(false)
}

func NewApplicationError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeApplication, component).WithSeverity(SeverityLow)
}

func NewValidationError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeValidation, component).WithSeverity(SeverityLow).WithRecoverable(false)
}

func NewConfigurationError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeConfiguration, component).WithSeverity(SeverityHigh)
}

// ErrorChain collects several errors from one operation
type ErrorChain struct {
	errors []error
	logger *logging.Logger
}

// NewErrorChain creates an empty chain; a nil logger disables logging
func NewErrorChain(logger *logging.Logger) *ErrorChain {
	return &ErrorChain{logger: logger}
}

// Add appends a non-nil error
func (ec *ErrorChain) Add(err error) *ErrorChain {
	if err == nil {
		return ec
	}
	ec.errors = append(ec.errors, err)
	if ec.logger != nil {
		ec.logger.Debug("Error added to chain", "error", err.Error(), "chain_length", len(ec.errors))
	}
	return ec
}

// HasErrors reports whether anything was added
func (ec *ErrorChain) HasErrors() bool {
	return len(ec.errors) > 0
}

// GetErrors returns the collected errors in order
func (ec *ErrorChain) GetErrors() []error {
	return ec.errors
}

// ToCombinedError folds the chain into one error, classified by its first
// member. A chain of one returns that error's classification unchanged.
func (ec *ErrorChain) ToCombinedError(component string) *ContextualError {
	if !ec.HasErrors() {
		return nil
	}

	errs := ec.GetErrors()
	if len(errs) == 1 {
		return Classify(errs[0])
	}

	first := Classify(errs[0])
	messages := make([]string, len(errs))
	var hints []string
	for i, err := range errs {
		ce := Classify(err)
		messages[i] = ce.Message
		for _, h := range ce.Hints {
			if !containsString(hints, h) {
				hints = append(hints, h)
			}
		}
	}

	return NewErrorBuilder(first.Type, component).
		WithSeverity(first.Severity).
		WithCode(first.Code).
		WithOperation(first.Operation).
		WithMessage(fmt.Sprintf("%d errors: %s", len(errs), strings.Join(messages, "; "))).
		WithUserMessage(fmt.Sprintf("%s (and %d more)", first.GetUserMessage(), len(errs)-1)).
		WithRecoverable(first.Recoverable).
		WithHints(hints...).
		WithCause(errs[0]).
		WithContext("error_count", len(errs)).
		WithoutStackTrace().
		WithoutLogging().
		Build()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
