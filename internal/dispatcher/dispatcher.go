package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
	"github.com/studioforge/studiorpc/internal/logging"
)

// Dispatcher routes decoded requests to registry handlers. It holds no
// per-request state and may be called from any number of goroutines.
type Dispatcher struct {
	registry *Registry
	logger   *logging.Logger
}

// New creates a dispatcher over registry
func New(registry *Registry, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetDispatchLogger()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Registry returns the registry the dispatcher serves
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// DispatchFrame handles one inbound frame and returns the encoded response.
// Unparsable frames produce a -32700 response with a null id; notifications
// and stray responses produce nothing.
func (d *Dispatcher) DispatchFrame(ctx context.Context, data []byte) []byte {
	msg, err := jsonrpc.Decode(data)
	if err != nil {
		d.logger.Warn("Unparsable request frame", "error", err.Error(), "size", len(data))
		return d.encode(jsonrpc.NewErrorResponse(nil, jsonrpc.ParseFailure(err)))
	}

	switch m := msg.(type) {
	case *jsonrpc.Request:
		return d.encode(d.Dispatch(ctx, m))
	case *jsonrpc.Notification:
		d.logger.Debug("Ignoring client notification", "method", m.Method)
	case *jsonrpc.Response:
		d.logger.Debug("Ignoring response sent to peer")
	}
	return nil
}

// Dispatch runs the handler for req and returns a response echoing req.ID
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	id := req.ID

	resp := d.dispatch(ctx, req)

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	d.logger.LogDispatch(id, req.Method, code, time.Since(start))
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	id := req.ID

	handler, ok := d.registry.Lookup(req.Method)
	if !ok {
		return jsonrpc.NewErrorResponse(&id, jsonrpc.MethodNotFound(req.Method))
	}

	result, err := d.invoke(ctx, handler, req)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return jsonrpc.NewErrorResponse(&id, rpcErr)
		}
		return jsonrpc.NewErrorResponse(&id, jsonrpc.InternalError(err))
	}

	resp, err := jsonrpc.NewResult(id, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(&id, jsonrpc.InternalError(err))
	}
	return resp
}

// invoke converts a handler panic into an error so one bad request cannot take the connection down
func (d *Dispatcher) invoke(ctx context.Context, h Handler, req *jsonrpc.Request) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Handler panic",
				"method", req.Method,
				"id", req.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, req.Params)
}

func (d *Dispatcher) encode(resp *jsonrpc.Response) []byte {
	frame, err := jsonrpc.Encode(resp)
	if err != nil {
		// only reachable if an error's data cannot be marshalled
		d.logger.Error("Failed to encode response", "error", err.Error())
		frame, _ = jsonrpc.Encode(jsonrpc.NewErrorResponse(resp.ID, jsonrpc.InternalError(err)))
	}
	return frame
}
