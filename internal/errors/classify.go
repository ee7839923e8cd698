package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/protocol"
)

const classifyComponent = "client"

// Classify maps an error returned by the client into a ContextualError.
// It never logs; callers decide whether the failure is worth a record.
func Classify(err error) *ContextualError {
	if err == nil {
		return nil
	}

	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce
	}

	var (
		connErr    *protocol.ConnectionError
		timeoutErr *protocol.TimeoutError
		rpcErr     *jsonrpc.Error
		validErr   *protocol.ValidationError
	)

	switch {
	case stderrors.As(err, &validErr):
		return quiet(NewValidationError(classifyComponent)).
			WithCode("invalid_" + validErr.Field).
			WithUserMessage(fmt.Sprintf("%s: %s", validErr.Field, validErr.Message)).
			WithCause(err).
			Build()

	case stderrors.As(err, &timeoutErr):
		return quiet(NewTimeoutError(classifyComponent)).
			WithCode("request_timeout").
			WithOperation(timeoutErr.Method).
			WithUserMessage(fmt.Sprintf("%s got no answer within %s", timeoutErr.Method, timeoutErr.Window)).
			WithContext("request_id", timeoutErr.ID).
			WithCause(err).
			Build()

	case stderrors.As(err, &connErr):
		return classifyConnection(connErr, err)

	case stderrors.As(err, &rpcErr):
		return classifyRPC(rpcErr, err)

	case stderrors.Is(err, protocol.ErrTooManyPending):
		return quiet(NewErrorBuilder(ErrorTypeRuntime, classifyComponent)).
			WithCode("too_many_pending").
			WithUserMessage("Too many calls are waiting for an answer").
			WithHints("wait for outstanding calls to finish").
			WithCause(err).
			Build()

	case stderrors.Is(err, context.Canceled):
		return quiet(NewErrorBuilder(ErrorTypeRuntime, classifyComponent)).
			WithSeverity(SeverityLow).
			WithCode("cancelled").
			WithUserMessage("Call cancelled").
			WithCause(err).
			Build()

	case stderrors.Is(err, context.DeadlineExceeded):
		return quiet(NewTimeoutError(classifyComponent)).
			WithCode("deadline_exceeded").
			WithUserMessage("Call deadline exceeded").
			WithCause(err).
			Build()
	}

	return quiet(NewErrorBuilder(ErrorTypeRuntime, classifyComponent)).
		WithCause(err).
		Build()
}

func classifyConnection(connErr *protocol.ConnectionError, err error) *ContextualError {
	b := quiet(NewConnectionError(classifyComponent)).
		WithCode("connection_" + string(connErr.Kind)).
		WithRecoverable(connErr.IsRetryable()).
		WithCause(err)
	if connErr.URL != "" {
		b.WithContext("url", connErr.URL)
	}
	if connErr.IsRetryable() {
		b.WithRetryAfter(protocol.DefaultRetryPolicy().Delay(connErr.Attempts + 1))
	}

	switch connErr.Kind {
	case protocol.KindRefused:
		b.WithUserMessage("The studio peer refused the connection").
			WithHints("check that studiod is running", "/connect to retry")
	case protocol.KindTimeout:
		b.WithUserMessage("Connecting to the studio peer timed out").
			WithHints("check the server URL", "/connect to retry")
	case protocol.KindLost:
		b.WithSeverity(SeverityMedium).
			WithUserMessage("Connection lost; the call was abandoned").
			WithHints("the client reconnects on its own", "retry the call once connected")
	case protocol.KindExhausted:
		b.WithSeverity(SeverityCritical).
			WithUserMessage(fmt.Sprintf("Gave up reconnecting after %d attempts", connErr.Attempts)).
			WithContext("attempts", connErr.Attempts).
			WithHints("/connect to start over", "check that studiod is running")
	case protocol.KindClosed:
		b.WithSeverity(SeverityLow).
			WithUserMessage("Connection closed by the console")
	}
	return b.Build()
}

func classifyRPC(rpcErr *jsonrpc.Error, err error) *ContextualError {
	var b *ErrorBuilder
	switch rpcErr.Code {
	case jsonrpc.CodeParseError, jsonrpc.CodeInvalidRequest:
		b = NewProtocolError(classifyComponent).
			WithUserMessage("The peer could not read the request")
	case jsonrpc.CodeInvalidParams:
		b = NewValidationError(classifyComponent).
			WithUserMessage(rpcErr.Message)
	case jsonrpc.CodeMethodNotFound:
		b = NewApplicationError(classifyComponent).
			WithRecoverable(false).
			WithUserMessage(rpcErr.Message).
			WithHints("/methods lists what the peer serves")
	case jsonrpc.CodeInternalError:
		b = NewApplicationError(classifyComponent).
			WithSeverity(SeverityHigh).
			WithUserMessage("The peer failed while handling the call")
	case jsonrpc.CodeNotFound:
		b = NewApplicationError(classifyComponent).
			WithRecoverable(false).
			WithUserMessage(rpcErr.Message).
			WithHints("design.list shows existing designs", "template.search shows templates")
	default:
		b = NewApplicationError(classifyComponent).
			WithUserMessage(rpcErr.Message)
	}

	return quiet(b).
		WithCode(strconv.Itoa(rpcErr.Code)).
		WithCause(err).
		Build()
}

func quiet(b *ErrorBuilder) *ErrorBuilder {
	return b.WithoutStackTrace().WithoutLogging()
}
