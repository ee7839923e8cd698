package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/studioforge/studiorpc/internal/interfaces"
)

// RegisterBuiltins adds the immediate system.* methods to reg
func RegisterBuiltins(reg *Registry, started time.Time) error {
	if err := reg.Register(interfaces.MethodPing, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		now := time.Now()
		return interfaces.PingResult{
			Status:     "ok",
			ServerTime: now.UTC(),
			Uptime:     now.Sub(started).Truncate(time.Second).String(),
		}, nil
	}); err != nil {
		return err
	}

	return reg.Register(interfaces.MethodListMethods, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return reg.Methods(), nil
	})
}
