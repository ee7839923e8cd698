// Package jsonrpc implements the JSON-RPC 2.0 envelope codec shared by the
// client correlator and the peer dispatcher. One JSON object travels per
// WebSocket text frame; this package only turns frames into messages and back.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only protocol version accepted on the wire
const Version = "2.0"

// Message is one of *Request, *Response or *Notification
type Message interface {
	isMessage()
}

// Request is a call that expects a correlated Response
type Request struct {
	ID     uint64
	Method string
	Params json.RawMessage
}

// Response settles the Request carrying the same ID. Exactly one of Result
// and Error is set. ID is nil only when the peer could not read the request
// id (parse errors), in which case the response cannot be correlated.
type Response struct {
	ID     *uint64
	Result json.RawMessage
	Error  *Error
}

// Notification is a message without an id; no response is produced for it
type Notification struct {
	Method string
	Params json.RawMessage
}

func (*Request) isMessage()      {}
func (*Response) isMessage()     {}
func (*Notification) isMessage() {}

// ParseError reports a frame that is not valid JSON or not a valid envelope
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Cause)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// envelope is the superset of every message shape on the wire
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

var null = json.RawMessage("null")

// NewRequest builds a Request, marshalling params unless they are already raw JSON
func NewRequest(id uint64, method string, params interface{}) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a Notification with marshalled params
func NewNotification(method string, params interface{}) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	return &Notification{Method: method, Params: raw}, nil
}

// NewResult builds a success Response for id
func NewResult(id uint64, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{ID: &id, Result: raw}, nil
}

// NewErrorResponse builds a failure Response. A nil id is encoded as null.
func NewErrorResponse(id *uint64, rpcErr *Error) *Response {
	return &Response{ID: id, Error: rpcErr}
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	}
	return json.Marshal(params)
}

// Encode serializes a message into a single frame
func Encode(msg Message) ([]byte, error) {
	env := envelope{JSONRPC: Version}

	switch m := msg.(type) {
	case *Request:
		if m.Method == "" {
			return nil, fmt.Errorf("request %d has no method", m.ID)
		}
		env.ID = json.RawMessage(fmt.Sprintf("%d", m.ID))
		env.Method = m.Method
		env.Params = m.Params
	case *Response:
		if m.ID == nil {
			env.ID = null
		} else {
			env.ID = json.RawMessage(fmt.Sprintf("%d", *m.ID))
		}
		if m.Error != nil {
			env.Error = m.Error
		} else if len(m.Result) == 0 {
			env.Result = null
		} else {
			env.Result = m.Result
		}
	case *Notification:
		if m.Method == "" {
			return nil, fmt.Errorf("notification has no method")
		}
		env.Method = m.Method
		env.Params = m.Params
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}

	return json.Marshal(&env)
}

// Decode parses a single frame. Invalid JSON and structurally invalid
// envelopes both yield a *ParseError.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ParseError{Reason: "frame is not a JSON object"}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Cause: err}
	}

	if env.JSONRPC != Version {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported jsonrpc version %q", env.JSONRPC)}
	}

	if env.Method != "" {
		if env.Result != nil || env.Error != nil {
			return nil, &ParseError{Reason: "request carries result or error"}
		}
		if env.ID == nil {
			return &Notification{Method: env.Method, Params: env.Params}, nil
		}
		id, err := parseID(env.ID)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, &ParseError{Reason: "request id must not be null"}
		}
		return &Request{ID: *id, Method: env.Method, Params: env.Params}, nil
	}

	if env.ID == nil {
		return nil, &ParseError{Reason: "envelope has neither method nor id"}
	}
	if (env.Result == nil) == (env.Error == nil) {
		return nil, &ParseError{Reason: "response must carry exactly one of result and error"}
	}
	id, err := parseID(env.ID)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Result: env.Result, Error: env.Error}, nil
}

func parseID(raw json.RawMessage) (*uint64, error) {
	if bytes.Equal(bytes.TrimSpace(raw), null) {
		return nil, nil
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid id %s", string(raw)), Cause: err}
	}
	return &id, nil
}
