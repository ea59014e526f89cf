package llm

import (
	"context"
	"encoding/json"
)

// CallHook observes model calls without changing the Client surface.
// Implementations must not panic.
type CallHook interface {
	Before(ctx context.Context, phase string, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

type hooked struct {
	base Client
	hook CallHook
}

// WithHook decorates a client so every GenerateJSON call is reported to
// hook, tagged with the call's phase.
func WithHook(base Client, hook CallHook) Client {
	return &hooked{base: base, hook: hook}
}

func (h *hooked) Name() string { return h.base.Name() }
func (h *hooked) Close() error { return h.base.Close() }

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if h.hook != nil {
		h.hook.Before(ctx, PhaseFrom(ctx), prompt, input)
	}
	raw, err := h.base.GenerateJSON(ctx, prompt, input)
	if h.hook != nil {
		h.hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return raw, err
}
