package sched

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dessimlab/dessim/core/logger"
	"github.com/dessimlab/dessim/core/notify"
)

// DefaultTaskBuffer is the default task queue capacity of a Loop.
const DefaultTaskBuffer = 256

type task struct {
	run         func(context.Context)
	description string
}

// Loop services one execution layer with a single goroutine draining a
// buffered task queue. It implements notify.Scheduler: tasks handed to RunNow
// execute in enqueue order on the loop's goroutine, under a context carrying
// the loop's layer identity.
//
// Example:
//
//	loop := sched.NewLoop("sim", sched.WithLoopLogger(logger))
//	defer loop.Close()
type Loop struct {
	stype  notify.SchedulerType
	logger *slog.Logger
	base   context.Context

	tasks  chan task
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTaskBuffer sets the task queue capacity. Default is DefaultTaskBuffer.
func WithTaskBuffer(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.tasks = make(chan task, size)
		}
	}
}

// WithLoopLogger configures structured logging for loop operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBaseContext sets the context tasks derive from. Default is
// context.Background(). The loop stamps its layer identity on it either way.
func WithBaseContext(ctx context.Context) LoopOption {
	return func(l *Loop) {
		if ctx != nil {
			l.base = ctx
		}
	}
}

// NewLoop creates and starts a loop for the given layer identity.
func NewLoop(t notify.SchedulerType, opts ...LoopOption) *Loop {
	l := &Loop{
		stype:  t,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:   context.Background(),
		tasks:  make(chan task, DefaultTaskBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	go l.run()
	return l
}

// Type implements notify.Scheduler.
func (l *Loop) Type() notify.SchedulerType { return l.stype }

// RunNow implements notify.Scheduler. The task is enqueued for execution on
// the loop's goroutine and RunNow returns immediately. Tasks submitted after
// Close are dropped with a warning.
func (l *Loop) RunNow(run func(context.Context), description string) {
	if run == nil {
		return
	}
	if l.closed.Load() {
		l.logger.Warn("task dropped, loop closed",
			logger.Layer(string(l.stype)),
			logger.Task(description))
		return
	}
	select {
	case l.tasks <- task{run: run, description: description}:
	case <-l.quit:
		l.logger.Warn("task dropped, loop closing",
			logger.Layer(string(l.stype)),
			logger.Task(description))
	}
}

// IsHandoverRequired implements notify.Scheduler: true when the calling
// context belongs to a different layer.
func (l *Loop) IsHandoverRequired(ctx context.Context) bool {
	return notify.LayerFromContext(ctx) != l.stype
}

// Close stops the loop after draining tasks already enqueued. Idempotent;
// blocks until the loop goroutine has exited.
func (l *Loop) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		close(l.quit)
	}
	<-l.done
	return nil
}

func (l *Loop) run() {
	defer close(l.done)

	ctx := notify.WithLayer(l.base, l.stype)
	for {
		select {
		case t := <-l.tasks:
			l.execute(ctx, t)
		case <-l.quit:
			// Drain what was enqueued before the close, then exit.
			for {
				select {
				case t := <-l.tasks:
					l.execute(ctx, t)
				default:
					return
				}
			}
		}
	}
}

// execute recovers task panics: a misbehaving handler must not take the
// whole layer down.
func (l *Loop) execute(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked",
				logger.Layer(string(l.stype)),
				logger.Task(t.description),
				logger.Panic(r),
				logger.Stack())
		}
	}()
	t.run(ctx)
}
