package notify

import (
	"context"

	"github.com/google/uuid"
)

type layerCtx struct{}

// WithLayer attaches an execution layer identity to the context. Scheduler
// implementations stamp the contexts they run tasks with; application code
// running outside any scheduler may tag its own contexts to give the bus
// ownership check a stable caller identity.
func WithLayer(ctx context.Context, t SchedulerType) context.Context {
	return context.WithValue(ctx, layerCtx{}, t)
}

// LayerFromContext extracts the execution layer identity from the context.
// Returns External if not present.
func LayerFromContext(ctx context.Context) SchedulerType {
	if t, ok := ctx.Value(layerCtx{}).(SchedulerType); ok {
		return t
	}
	return External
}

type broadcastIDCtx struct{}

// WithBroadcastID attaches a broadcast correlation ID to the context.
func WithBroadcastID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, broadcastIDCtx{}, id)
}

// BroadcastID extracts the broadcast correlation ID from the context.
// Returns empty string if not present.
func BroadcastID(ctx context.Context) string {
	if id, ok := ctx.Value(broadcastIDCtx{}).(string); ok {
		return id
	}
	return ""
}

// ensureBroadcastID stamps a fresh correlation ID unless the context already
// carries one, so nested broadcasts stay distinguishable in logs.
func ensureBroadcastID(ctx context.Context) context.Context {
	if BroadcastID(ctx) != "" {
		return ctx
	}
	return WithBroadcastID(ctx, uuid.New().String())
}
