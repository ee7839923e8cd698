package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Error codes carried in error.code
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Application codes
	CodeNotFound = 404
)

// Error is the structured error object of a failed Response
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// WithData attaches marshalled data to a copy of the error
func (e *Error) WithData(data interface{}) *Error {
	out := *e
	raw, err := json.Marshal(data)
	if err == nil {
		out.Data = raw
	}
	return &out
}

// NewError creates an application error with a custom code
func NewError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ParseFailure reports an unreadable frame; the reason travels in data
func ParseFailure(err error) *Error {
	return (&Error{Code: CodeParseError, Message: "Parse error"}).WithData(err.Error())
}

func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

func InvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
}

func InternalError(err error) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
}

func NotFound(format string, args ...interface{}) *Error {
	return NewError(CodeNotFound, format, args...)
}
