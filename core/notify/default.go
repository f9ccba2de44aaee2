package notify

import (
	"context"
	"reflect"
	"sync"
)

// The package-level default router is a convenience for application wiring.
// Tests and libraries should construct their own CrossAppRouter instead of
// sharing process-global state.
var (
	defaultOnce   sync.Once
	defaultRouter *CrossAppRouter
)

// Default returns the process-wide cross-app router, created on first use.
func Default() *CrossAppRouter {
	defaultOnce.Do(func() {
		defaultRouter = NewCrossAppRouter(NewRouter())
	})
	return defaultRouter
}

// Broadcast broadcasts on the default router.
func Broadcast(ctx context.Context, n Notification) error {
	return Default().Broadcast(ctx, n)
}

// BroadcastLazy lazily broadcasts on the default router.
func BroadcastLazy(ctx context.Context, supplier func() Notification, declared reflect.Type) error {
	return Default().BroadcastLazy(ctx, supplier, declared)
}

// AddHandler registers a subscriber on the default router.
func AddHandler(ctx context.Context, sub Subscriber) error {
	return Default().AddHandler(ctx, sub)
}

// RegisterExecutionLayer registers an execution layer on the default router.
func RegisterExecutionLayer(scheduler Scheduler, bus *Bus, opts ...BroadcasterOption) (*Broadcaster, error) {
	return Default().RegisterExecutionLayer(scheduler, bus, opts...)
}

// ClearAllHandlers clears the default router.
func ClearAllHandlers() {
	Default().ClearAllHandlers()
}

// SetBroadcastPriority switches the default router's dispatch policy.
func SetBroadcastPriority(p DispatchPolicy) {
	Default().SetBroadcastPriority(p)
}
