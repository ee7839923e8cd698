// Package dispatcher implements the peer side of the studio RPC layer: a
// method registry, a dispatcher producing correlated responses, and a
// WebSocket server running every request on its own goroutine.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/studioforge/studiorpc/internal/jsonrpc"
)

// Handler serves one method. Returning a *jsonrpc.Error sends it unchanged;
// any other error is reported as an internal error.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Registry maps method names to handlers. It is filled during startup and
// sealed before serving; lookups after Seal need no locking.
type Registry struct {
	handlers map[string]Handler
	sealed   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for method
func (r *Registry) Register(method string, h Handler) error {
	if r.sealed {
		return fmt.Errorf("registry sealed: cannot register %q", method)
	}
	if method == "" || h == nil {
		return fmt.Errorf("invalid registration for method %q", method)
	}
	if _, dup := r.handlers[method]; dup {
		return fmt.Errorf("method already registered: %s", method)
	}
	r.handlers[method] = h
	return nil
}

// MustRegister is Register for startup code where a failure is a programming error
func (r *Registry) MustRegister(method string, h Handler) {
	if err := r.Register(method, h); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal was called
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup returns the handler for method
func (r *Registry) Lookup(method string) (Handler, bool) {
	h, ok := r.handlers[method]
	return h, ok
}

// Methods returns the registered method names in sorted order
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeParams unmarshals params into v. Absent params leave v untouched.
// Failures are reported as invalid params.
func DecodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return jsonrpc.InvalidParams(err)
	}
	return nil
}
