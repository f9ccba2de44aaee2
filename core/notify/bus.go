package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dessimlab/dessim/core/logger"
)

// impliedCacheSize bounds the memo of "is this type, or any ancestor of it,
// registered" answers. Simulated applications use a few dozen notification
// types; the bound only guards against pathological type churn.
const impliedCacheSize = 512

// Bus is the type-indexed, thread-owned, synchronous multicast dispatcher of
// one execution layer. Registration is safe from any layer; broadcasting is
// restricted to the layer that first drives the bus until handlers are
// cleared.
//
// Example:
//
//	bus := notify.NewBus(notify.WithBusLogger(logger))
//	if err := bus.AddHandler(subscriber); err != nil {
//	    return err
//	}
//	err := bus.Broadcast(ctx, OrderFilled{OrderID: "o-1", Price: 101.5})
type Bus struct {
	root      reflect.Type
	validator *PointToPointValidator
	logger    *slog.Logger

	// owner is the lazily claimed layer identity; a separate atomic keeps the
	// broadcast fast path free of lock overhead.
	owner atomic.Pointer[SchedulerType]

	mu         sync.RWMutex
	registered map[reflect.Type]struct{}
	handlers   map[reflect.Type][]Binding
	implied    *lru.Cache[reflect.Type, bool]

	broadcasts atomic.Int64
	deliveries atomic.Int64
}

// BusStats provides observability counters for monitoring and debugging.
type BusStats struct {
	Broadcasts      int64
	Deliveries      int64
	RegisteredTypes int
	Owner           SchedulerType
	Owned           bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger configures structured logging for bus operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRootType narrows the bus to notification types assignable to root.
// Default is the Notification marker itself.
func WithRootType(root reflect.Type) BusOption {
	return func(b *Bus) {
		if root != nil && root.AssignableTo(notificationType) {
			b.root = root
		}
	}
}

// WithBusValidator sets the point-to-point validator the bus runs
// registrations through. A router adopts its own shared validator on layer
// registration; standalone buses get a private one.
func WithBusValidator(v *PointToPointValidator) BusOption {
	return func(b *Bus) {
		if v != nil {
			b.validator = v
		}
	}
}

// NewBus creates a bus for one execution layer.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		root:       notificationType,
		validator:  NewPointToPointValidator(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		registered: make(map[reflect.Type]struct{}),
		handlers:   make(map[reflect.Type][]Binding),
	}
	b.implied, _ = lru.New[reflect.Type, bool](impliedCacheSize)

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// AddHandler registers the subscriber's bindings. Each bound type must be
// assignable to the bus root type, and point-to-point types must not conflict
// with earlier registrations. Safe to call from any layer.
func (b *Bus) AddHandler(sub Subscriber) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscriber", ErrInvalidBinding)
	}

	bindings := sub.Bindings()
	types := make([]reflect.Type, 0, len(bindings))
	for _, bd := range bindings {
		if err := bd.validate(b.root); err != nil {
			return err
		}
		types = append(types, bd.Type())
	}

	if err := b.validator.Validate(reflect.TypeOf(sub), types); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, bd := range bindings {
		b.registered[bd.Type()] = struct{}{}
		b.handlers[bd.Type()] = append(b.handlers[bd.Type()], bd)
	}
	b.implied.Purge()

	b.logger.Debug("handlers registered",
		logger.Subscriber(typeName(reflect.TypeOf(sub))),
		logger.Count("bindings", len(bindings)))
	return nil
}

// Broadcast synchronously delivers the notification to every handler bound to
// its runtime type or to any interface it implements. The first layer to
// broadcast claims the bus; any other layer fails with ErrOwnershipViolation
// until handlers are cleared. Handler errors are aggregated and returned
// unmasked; dispatch order across matching handlers is unspecified.
func (b *Bus) Broadcast(ctx context.Context, n Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	if err := b.claimOwner(LayerFromContext(ctx)); err != nil {
		return err
	}

	dtype := reflect.TypeOf(n)

	b.mu.RLock()
	var matched []Binding
	for t, hs := range b.handlers {
		if dtype.AssignableTo(t) {
			matched = append(matched, hs...)
		}
	}
	b.mu.RUnlock()

	b.broadcasts.Add(1)

	var errs []error
	for _, bd := range matched {
		if err := bd.fn(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("handler %s failed: %w", bd.name, err))
		}
	}
	b.deliveries.Add(int64(len(matched)))

	return errors.Join(errs...)
}

// IsNotificationRegistered reports whether t, or any type it is assignable to,
// has an explicitly registered handler. Direct hits return immediately; the
// assignability walk is memoized per queried type until the registration
// table changes.
func (b *Bus) IsNotificationRegistered(t reflect.Type) bool {
	if t == nil {
		return false
	}

	b.mu.RLock()
	_, direct := b.registered[t]
	b.mu.RUnlock()
	if direct {
		return true
	}

	if v, ok := b.implied.Get(t); ok {
		return v
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	for r := range b.registered {
		if t.AssignableTo(r) {
			found = true
			break
		}
	}
	b.implied.Add(t, found)
	return found
}

// CanHandleNotification reports whether t is structurally acceptable to this
// bus, i.e. assignable to its root type. Always at least as permissive as
// IsNotificationRegistered.
func (b *Bus) CanHandleNotification(t reflect.Type) bool {
	return t != nil && t.AssignableTo(b.root)
}

// ClearAllHandlers empties the registration table and the implied cache,
// discards all handlers, and releases the layer-ownership claim. Subscribers
// must re-register.
func (b *Bus) ClearAllHandlers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registered = make(map[reflect.Type]struct{})
	b.handlers = make(map[reflect.Type][]Binding)
	b.implied.Purge()
	b.owner.Store(nil)

	b.logger.Debug("all handlers cleared")
}

// Stats returns current bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	registered := len(b.registered)
	b.mu.RUnlock()

	s := BusStats{
		Broadcasts:      b.broadcasts.Load(),
		Deliveries:      b.deliveries.Load(),
		RegisteredTypes: registered,
	}
	if owner := b.owner.Load(); owner != nil {
		s.Owner = *owner
		s.Owned = true
	}
	return s
}

// claimOwner enforces the single-layer invariant with a lock-free
// compare-and-set: the first caller claims ownership, later callers from
// other layers fail.
func (b *Bus) claimOwner(caller SchedulerType) error {
	for {
		cur := b.owner.Load()
		if cur == nil {
			claimed := caller
			if b.owner.CompareAndSwap(nil, &claimed) {
				return nil
			}
			continue
		}
		if *cur != caller {
			return fmt.Errorf("%w: claimed by %q, broadcast attempted from %q",
				ErrOwnershipViolation, *cur, caller)
		}
		return nil
	}
}

// setValidator swaps the validator; used by the router so every layer's bus
// shares one process-wide point-to-point registry.
func (b *Bus) setValidator(v *PointToPointValidator) {
	if v != nil {
		b.validator = v
	}
}
