package notify

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/dessimlab/dessim/core/logger"
)

// Broadcaster pairs one Bus with one scheduler handle and decides, per
// broadcast, whether delivery can happen inline or must be handed off to the
// owning layer's scheduler.
type Broadcaster struct {
	bus       *Bus
	scheduler Scheduler
	logger    *slog.Logger
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger configures structured logging for broadcaster
// operations, notably delivery failures on the handed-off path.
func WithBroadcasterLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroadcaster binds a scheduler and a bus into one execution layer handle.
func NewBroadcaster(scheduler Scheduler, bus *Bus, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		bus:       bus,
		scheduler: scheduler,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Bus returns the layer's notification bus.
func (b *Broadcaster) Bus() *Bus { return b.bus }

// SchedulerType returns the layer identity this broadcaster serves.
func (b *Broadcaster) SchedulerType() SchedulerType { return b.scheduler.Type() }

// HandlesSubscriber reports whether a subscriber declaring t belongs to this
// layer. Used by the router to route AddHandler calls.
func (b *Broadcaster) HandlesSubscriber(t SchedulerType) bool {
	return b.scheduler.Type() == t
}

// RequiresScheduling reports whether the calling context belongs to another
// layer, so delivery must be handed off.
func (b *Broadcaster) RequiresScheduling(ctx context.Context) bool {
	return b.scheduler.IsHandoverRequired(ctx)
}

// DirectBroadcast delivers into the bus synchronously on the calling layer.
func (b *Broadcaster) DirectBroadcast(ctx context.Context, n Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	return b.directFuture(ctx, eagerFuture(n))
}

// ScheduleBroadcast asks the scheduler to deliver the notification "now" on
// its own logical thread and returns immediately. Delivery errors cannot
// reach the caller, which has already returned; they are logged on the
// servicing layer.
func (b *Broadcaster) ScheduleBroadcast(ctx context.Context, n Notification) {
	b.scheduleFuture(ctx, eagerFuture(n), typeName(reflect.TypeOf(n)))
}

// Broadcast delivers inline when the caller already runs on this layer, and
// hands off otherwise.
func (b *Broadcaster) Broadcast(ctx context.Context, n Notification) error {
	if n == nil {
		return ErrNilNotification
	}
	if b.RequiresScheduling(ctx) {
		b.ScheduleBroadcast(ctx, n)
		return nil
	}
	return b.DirectBroadcast(ctx, n)
}

// AddHandler forwards registration to the bus. Registration is thread-safe,
// but by convention happens on the owning layer; a call from elsewhere is
// allowed with a warning.
func (b *Broadcaster) AddHandler(ctx context.Context, sub Subscriber) error {
	if b.scheduler.IsHandoverRequired(ctx) {
		b.logger.WarnContext(ctx, "handler registered from a foreign layer",
			logger.Layer(string(b.scheduler.Type())),
			logger.Caller(string(LayerFromContext(ctx))))
	}
	return b.bus.AddHandler(sub)
}

func (b *Broadcaster) directFuture(ctx context.Context, f *future) error {
	return b.bus.Broadcast(ctx, f.value())
}

func (b *Broadcaster) scheduleFuture(ctx context.Context, f *future, desc string) {
	// The broadcast ID survives the hand-off; the layer identity does not,
	// the target scheduler stamps its own.
	id := BroadcastID(ctx)
	enqueued := time.Now()
	b.scheduler.RunNow(func(taskCtx context.Context) {
		if id != "" {
			taskCtx = WithBroadcastID(taskCtx, id)
		}
		if err := b.bus.Broadcast(taskCtx, f.value()); err != nil {
			b.logger.ErrorContext(taskCtx, "scheduled broadcast failed",
				logger.Notification(desc),
				logger.Layer(string(b.scheduler.Type())),
				logger.Elapsed(enqueued),
				logger.Error(err))
		}
	}, "broadcast "+desc)
}
