package notify

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dessimlab/dessim/core/logger"
)

// BroadcastLogger receives realized notifications for the types it accepts.
// Accepts is consulted before the notification is realized, so a logger that
// declines a type never forces a lazy supplier to run.
type BroadcastLogger interface {
	Accepts(t reflect.Type) bool
	Log(ctx context.Context, n Notification)
}

// NewSlogBroadcastLogger adapts a slog.Logger into a BroadcastLogger. A nil
// accepts func accepts every type.
func NewSlogBroadcastLogger(logger *slog.Logger, accepts func(reflect.Type) bool) BroadcastLogger {
	return &slogBroadcastLogger{logger: logger, accepts: accepts}
}

type slogBroadcastLogger struct {
	logger  *slog.Logger
	accepts func(reflect.Type) bool
}

func (l *slogBroadcastLogger) Accepts(t reflect.Type) bool {
	return l.accepts == nil || l.accepts(t)
}

func (l *slogBroadcastLogger) Log(ctx context.Context, n Notification) {
	l.logger.InfoContext(ctx, "notification broadcast",
		logger.Notification(typeName(reflect.TypeOf(n))),
		logger.BroadcastID(BroadcastID(ctx)),
		logger.Layer(string(LayerFromContext(ctx))))
}

// CrossAppRouter is the process-wide broadcast entry point. It decorates a
// Router with cross-cutting concerns: an eavesdropper consumer, a
// type-gated broadcast logger, and a global suppression flag, without
// touching the fan-out algorithm. Lazily supplied notifications are realized
// at most once across logging, eavesdropping, and real dispatch.
type CrossAppRouter struct {
	inner *Router

	mu           sync.RWMutex
	eavesdropper func(Notification)
	logger       BroadcastLogger
	suppress     atomic.Bool
}

// NewCrossAppRouter decorates the given router; a nil inner gets a fresh one.
func NewCrossAppRouter(inner *Router) *CrossAppRouter {
	if inner == nil {
		inner = NewRouter()
	}
	return &CrossAppRouter{inner: inner}
}

// Router returns the decorated within-app router.
func (c *CrossAppRouter) Router() *Router { return c.inner }

// SetEavesdropper installs a consumer that observes every realized broadcast
// before dispatch. Pass nil to remove it.
func (c *CrossAppRouter) SetEavesdropper(fn func(Notification)) {
	c.mu.Lock()
	c.eavesdropper = fn
	c.mu.Unlock()
}

// SetLogger installs a broadcast logger. Pass nil to remove it.
func (c *CrossAppRouter) SetLogger(l BroadcastLogger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

// SetShouldSuppressBroadcast toggles global suppression: while enabled,
// broadcasts are still logged and eavesdropped but never delegated to the
// within-app router.
func (c *CrossAppRouter) SetShouldSuppressBroadcast(suppress bool) {
	c.suppress.Store(suppress)
}

// Broadcast logs, eavesdrops, and, unless suppressed, delegates to the
// within-app router.
func (c *CrossAppRouter) Broadcast(ctx context.Context, n Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	ctx = ensureBroadcastID(ctx)
	return c.observeAndDispatch(ctx, eagerFuture(n), reflect.TypeOf(n), acceptCanHandle)
}

// BroadcastLazy behaves like Router.BroadcastLazy, but an installed logger
// accepting the declared type, or an eavesdropper, also forces the single
// realization.
func (c *CrossAppRouter) BroadcastLazy(ctx context.Context, supplier func() Notification, declared reflect.Type) error {
	if supplier == nil || declared == nil {
		return ErrNilNotification
	}
	ctx = ensureBroadcastID(ctx)
	return c.observeAndDispatch(ctx, newFuture(supplier), declared, acceptRegistered)
}

// AddHandler delegates to the within-app router.
func (c *CrossAppRouter) AddHandler(ctx context.Context, sub Subscriber) error {
	return c.inner.AddHandler(ctx, sub)
}

// RegisterExecutionLayer delegates to the within-app router.
func (c *CrossAppRouter) RegisterExecutionLayer(scheduler Scheduler, bus *Bus, opts ...BroadcasterOption) (*Broadcaster, error) {
	return c.inner.RegisterExecutionLayer(scheduler, bus, opts...)
}

// ClearAllHandlers delegates to the within-app router.
func (c *CrossAppRouter) ClearAllHandlers() {
	c.inner.ClearAllHandlers()
}

// SetBroadcastPriority delegates to the within-app router.
func (c *CrossAppRouter) SetBroadcastPriority(p DispatchPolicy) {
	c.inner.SetBroadcastPriority(p)
}

func (c *CrossAppRouter) observeAndDispatch(ctx context.Context, f *future, declared reflect.Type, accepts func(*Broadcaster, reflect.Type) bool) error {
	c.mu.RLock()
	eavesdropper := c.eavesdropper
	logger := c.logger
	c.mu.RUnlock()

	if logger != nil && logger.Accepts(declared) {
		logger.Log(ctx, f.value())
	}
	if eavesdropper != nil {
		eavesdropper(f.value())
	}
	if c.suppress.Load() {
		return nil
	}
	return c.inner.dispatch(ctx, f, declared, accepts)
}
