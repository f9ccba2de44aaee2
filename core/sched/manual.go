package sched

import (
	"context"
	"sync"

	"github.com/dessimlab/dessim/core/notify"
)

// Manual is a step-by-step scheduler for deterministic tests: tasks queue up
// until the test runs them explicitly, on the calling goroutine, under the
// scheduler's layer identity. It implements notify.Scheduler.
//
// Example:
//
//	sim := sched.NewManual("sim")
//	broadcaster.ScheduleBroadcast(ctx, tick)
//	sim.Drain() // delivers tick
type Manual struct {
	stype notify.SchedulerType
	base  context.Context

	mu    sync.Mutex
	queue []task
}

// NewManual creates a manual scheduler for the given layer identity.
func NewManual(t notify.SchedulerType) *Manual {
	return &Manual{stype: t, base: context.Background()}
}

// Type implements notify.Scheduler.
func (m *Manual) Type() notify.SchedulerType { return m.stype }

// RunNow implements notify.Scheduler by queueing the task until Step or
// Drain runs it.
func (m *Manual) RunNow(run func(context.Context), description string) {
	if run == nil {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, task{run: run, description: description})
	m.mu.Unlock()
}

// IsHandoverRequired implements notify.Scheduler: true when the calling
// context belongs to a different layer.
func (m *Manual) IsHandoverRequired(ctx context.Context) bool {
	return notify.LayerFromContext(ctx) != m.stype
}

// Step runs the oldest queued task, if any, and reports whether one ran.
// The task may enqueue further tasks; they stay queued.
func (m *Manual) Step() bool {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return false
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	t.run(notify.WithLayer(m.base, m.stype))
	return true
}

// Drain steps until the queue is empty, including tasks enqueued while
// draining, and returns the number of tasks run.
func (m *Manual) Drain() int {
	n := 0
	for m.Step() {
		n++
	}
	return n
}

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
