package notify

import "context"

// SchedulerType is the opaque, comparable identity of one logical execution
// layer of the simulated application.
type SchedulerType string

// External identifies callers running outside any registered execution layer.
// Contexts with no layer identity resolve to it.
const External SchedulerType = "external"

// Scheduler is the per-layer handle this package consumes from the
// discrete-event scheduler. Implementations may map a layer to a real OS
// thread or to a cooperative simulation loop; the routing core is agnostic.
type Scheduler interface {
	// Type returns the stable layer identity used for routing.
	Type() SchedulerType

	// RunNow executes task on the scheduler's own logical thread at its
	// current logical time. It returns immediately to any other calling
	// thread; the task receives a context carrying the scheduler's layer
	// identity.
	RunNow(task func(context.Context), description string)

	// IsHandoverRequired reports whether the calling context belongs to a
	// different layer than this scheduler, i.e. whether delivery must be
	// handed off rather than executed inline.
	IsHandoverRequired(ctx context.Context) bool
}
