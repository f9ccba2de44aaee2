package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/dessimlab/dessim/core/logger"
)

// Router owns the ordered broadcaster registry of one application and
// executes the fan-out algorithm across its execution layers. The registry is
// a copy-on-write immutable slice behind an atomic pointer: readers never
// block and always see a consistent snapshot.
type Router struct {
	broadcasters atomic.Pointer[[]*Broadcaster]
	policy       atomic.Int32
	validator    *PointToPointValidator
	logger       *slog.Logger

	broadcasts atomic.Int64
	handoffs   atomic.Int64
	inline     atomic.Int64
}

// RouterStats provides observability counters for monitoring and debugging.
type RouterStats struct {
	Broadcasts       int64
	Handoffs         int64
	InlineDeliveries int64
	Layers           int
	Policy           DispatchPolicy
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger configures structured logging for router operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDispatchPolicy overrides the process-default dispatch policy for this
// router.
func WithDispatchPolicy(p DispatchPolicy) RouterOption {
	return func(r *Router) {
		r.policy.Store(int32(p))
	}
}

// NewRouter creates a router with an empty layer registry, a fresh shared
// point-to-point validator, and the process-default dispatch policy.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		validator: NewPointToPointValidator(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	empty := make([]*Broadcaster, 0)
	r.broadcasters.Store(&empty)
	r.policy.Store(int32(DefaultDispatchPolicy()))

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RegisterExecutionLayer binds a scheduler and its bus into the registry and
// returns the broadcaster serving the layer. The bus adopts the router's
// shared point-to-point validator. Fails with ErrDuplicateLayer if the
// scheduler type is already registered. Insertion order is significant under
// BroadcasterRegistrationOrder dispatch.
func (r *Router) RegisterExecutionLayer(scheduler Scheduler, bus *Bus, opts ...BroadcasterOption) (*Broadcaster, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("%w: nil scheduler", ErrDuplicateLayer)
	}
	if bus == nil {
		bus = NewBus()
	}
	bus.setValidator(r.validator)
	b := NewBroadcaster(scheduler, bus, opts...)

	for {
		cur := r.broadcasters.Load()
		for _, existing := range *cur {
			if existing.SchedulerType() == b.SchedulerType() {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, b.SchedulerType())
			}
		}
		next := make([]*Broadcaster, len(*cur), len(*cur)+1)
		copy(next, *cur)
		next = append(next, b)
		if r.broadcasters.CompareAndSwap(cur, &next) {
			r.logger.Debug("execution layer registered",
				logger.Layer(string(b.SchedulerType())),
				logger.Count("layers", len(next)))
			return b, nil
		}
	}
}

// AddHandler routes the subscriber to the broadcaster serving its declared
// scheduler type. Fails with ErrUnknownLayer when no such layer is
// registered.
func (r *Router) AddHandler(ctx context.Context, sub Subscriber) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscriber", ErrInvalidBinding)
	}
	for _, b := range *r.broadcasters.Load() {
		if b.HandlesSubscriber(sub.SchedulerType()) {
			return b.AddHandler(ctx, sub)
		}
	}
	return fmt.Errorf("%w: %q (register the execution layer first)",
		ErrUnknownLayer, sub.SchedulerType())
}

// Broadcast fans the notification out to every layer whose bus structurally
// accepts its type, whether or not a live subscriber exists there. Delivery
// is inline or handed off per layer, ordered by the active dispatch policy.
func (r *Router) Broadcast(ctx context.Context, n Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	ctx = ensureBroadcastID(ctx)
	return r.dispatch(ctx, eagerFuture(n), reflect.TypeOf(n), acceptCanHandle)
}

// BroadcastLazy fans out a notification that is expensive to construct. The
// supplier is invoked at most once, and only when at least one layer has a
// handler registered for the declared type or an ancestor of it; with nothing
// listening the supplier is never called.
func (r *Router) BroadcastLazy(ctx context.Context, supplier func() Notification, declared reflect.Type) error {
	if supplier == nil || declared == nil {
		return ErrNilNotification
	}
	ctx = ensureBroadcastID(ctx)
	return r.dispatch(ctx, newFuture(supplier), declared, acceptRegistered)
}

// SetBroadcastPriority switches the active dispatch policy. Takes effect for
// subsequent broadcasts; in-flight dispatches keep the policy they started
// with.
func (r *Router) SetBroadcastPriority(p DispatchPolicy) {
	r.policy.Store(int32(p))
	r.logger.Debug("dispatch policy changed", logger.Policy(p.String()))
}

// Policy returns the active dispatch policy.
func (r *Router) Policy() DispatchPolicy {
	return DispatchPolicy(r.policy.Load())
}

// ClearAllHandlers atomically discards the whole registry, clears every
// discarded layer's bus, and resets the shared point-to-point validator.
func (r *Router) ClearAllHandlers() {
	empty := make([]*Broadcaster, 0)
	old := r.broadcasters.Swap(&empty)
	for _, b := range *old {
		b.bus.ClearAllHandlers()
	}
	r.validator.Reset()
	r.logger.Debug("router cleared", logger.Count("discarded_layers", len(*old)))
}

// Validator exposes the shared point-to-point validator, so scenario code can
// pre-seed standalone buses with it.
func (r *Router) Validator() *PointToPointValidator { return r.validator }

// Stats returns current router counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Broadcasts:       r.broadcasts.Load(),
		Handoffs:         r.handoffs.Load(),
		InlineDeliveries: r.inline.Load(),
		Layers:           len(*r.broadcasters.Load()),
		Policy:           r.Policy(),
	}
}

// acceptance predicates for the two broadcast forms: eager fan-out goes by
// structural acceptance, lazy fan-out by live registration.
func acceptCanHandle(b *Broadcaster, t reflect.Type) bool {
	return b.bus.CanHandleNotification(t)
}

func acceptRegistered(b *Broadcaster, t reflect.Type) bool {
	return b.bus.IsNotificationRegistered(t)
}

func (r *Router) dispatch(ctx context.Context, f *future, declared reflect.Type, accepts func(*Broadcaster, reflect.Type) bool) error {
	bs := *r.broadcasters.Load()
	desc := typeName(declared)
	r.broadcasts.Add(1)

	switch DispatchPolicy(r.policy.Load()) {
	case CrossThreadFirst:
		// All cross-layer enqueues happen before anything runs inline, so two
		// broadcasts in sequence from one layer reach every other layer in
		// that same sequence. The caller's own layer, if any, is served last.
		var inThread *Broadcaster
		for _, b := range bs {
			if !accepts(b, declared) {
				continue
			}
			if b.RequiresScheduling(ctx) {
				r.handoffs.Add(1)
				b.scheduleFuture(ctx, f, desc)
				continue
			}
			if inThread != nil {
				return fmt.Errorf("%w: layers %q and %q during dispatch of %s",
					ErrPolicyViolation, inThread.SchedulerType(), b.SchedulerType(), desc)
			}
			inThread = b
		}
		if inThread == nil {
			return nil
		}
		r.inline.Add(1)
		return inThread.directFuture(ctx, f)

	default: // BroadcasterRegistrationOrder
		var errs []error
		for _, b := range bs {
			if !accepts(b, declared) {
				continue
			}
			if b.RequiresScheduling(ctx) {
				r.handoffs.Add(1)
				b.scheduleFuture(ctx, f, desc)
				continue
			}
			r.inline.Add(1)
			if err := b.directFuture(ctx, f); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
