// Package notify is the notification routing and broadcast layer of the
// simulation framework: an in-process publish/subscribe bus that lets
// components exchange typed messages without holding references to one
// another, with well-defined delivery ordering across the logical execution
// layers that make up one simulated application.
//
// # Core Components
//
// Notification is the marker carried by every routed value; embed Base to
// implement it. Two capability markers refine it: PointToPointNotification
// (at most one subscribing class system-wide, enforced at registration) and
// FireAndForgetNotification (zero subscribers is expected and acceptable).
//
// Subscriber declares the execution layer its handlers run on and a static
// list of Bindings created with On or NewBinding. There is no reflection
// based method discovery; registration is explicit.
//
// Bus is the per-layer dispatch table: type-indexed, synchronous multicast,
// owned by the first layer that broadcasts through it until cleared.
//
// Broadcaster pairs one Bus with one Scheduler handle and decides inline
// delivery versus hand-off to the owning layer.
//
// Router owns the ordered broadcaster registry of one application and fans
// every broadcast out across its layers under the active DispatchPolicy.
//
// CrossAppRouter decorates a Router with cross-cutting concerns: an
// eavesdropper, a type-gated broadcast logger, and global suppression, with
// at-most-once realization of lazily supplied notifications.
//
// # Basic Usage
//
//	type PriceTick struct {
//	    notify.Base
//	    Symbol string
//	    Price  float64
//	}
//
//	type tickRecorder struct {
//	    ticks []PriceTick
//	}
//
//	func (r *tickRecorder) SchedulerType() notify.SchedulerType { return "sim" }
//	func (r *tickRecorder) Bindings() []notify.Binding {
//	    return []notify.Binding{
//	        notify.On(func(ctx context.Context, n PriceTick) error {
//	            r.ticks = append(r.ticks, n)
//	            return nil
//	        }),
//	    }
//	}
//
//	func main() {
//	    loop := sched.NewLoop("sim")
//	    defer loop.Close()
//
//	    router := notify.NewCrossAppRouter(notify.NewRouter())
//	    if _, err := router.RegisterExecutionLayer(loop, notify.NewBus()); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := router.AddHandler(context.Background(), &tickRecorder{}); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    err := router.Broadcast(context.Background(), PriceTick{Symbol: "ACME", Price: 101.5})
//	}
//
// # Layer Identity
//
// Go has no thread identity, so the "current thread" of the original design
// is context-borne: scheduler implementations stamp their layer identity on
// the contexts they run tasks with, and the bus ownership check compares the
// caller's identity from the context against the lazily claimed owner.
// Callers outside any layer resolve to the External identity.
//
// # Lazy Broadcasts
//
// Expensive-to-construct notifications go through BroadcastLazy, which skips
// the supplier entirely when no layer has a handler registered for the
// declared type or an ancestor of it:
//
//	err := router.BroadcastLazy(ctx, func() notify.Notification {
//	    return buildExpensiveReport()
//	}, notify.TypeOf[ReportReady]())
//
// # Dispatch Policies
//
// CrossThreadFirst (the default, configurable via BROADCAST_PRIORITY) hands
// off to every foreign layer before serving the caller's own layer, giving
// cross-layer subscribers a consistent relative order for sequential
// broadcasts. BroadcasterRegistrationOrder is the legacy policy with the
// weaker, registration-ordered guarantee. The policy is switchable at any
// time via SetBroadcastPriority.
//
// # Error Handling
//
// All failures are programming or wiring errors and fail the calling
// operation: ownership violations, point-to-point conflicts, duplicate or
// missing layers, malformed bindings, and policy invariant violations. Errors
// returned by handlers during dispatch are aggregated with errors.Join and
// propagate unmasked to whatever called Broadcast; handed-off deliveries log
// them on the servicing layer instead, since the caller has already returned.
package notify
