package notify_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dessimlab/dessim/core/notify"
	"github.com/dessimlab/dessim/core/sched"
)

// inlineScheduler always accepts inline delivery, regardless of the calling
// layer. Used to provoke the cross-thread-first policy invariant.
type inlineScheduler struct{ stype notify.SchedulerType }

func (s *inlineScheduler) Type() notify.SchedulerType { return s.stype }
func (s *inlineScheduler) RunNow(task func(context.Context), description string) {
	task(notify.WithLayer(context.Background(), s.stype))
}
func (s *inlineScheduler) IsHandoverRequired(ctx context.Context) bool { return false }

// TestRouter_RegisterExecutionLayer_RejectsDuplicates verifies at most one
// broadcaster per scheduler type.
func TestRouter_RegisterExecutionLayer_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter()

	_, err := r.RegisterExecutionLayer(sched.NewManual("sim"), notify.NewBus())
	require.NoError(t, err)

	_, err = r.RegisterExecutionLayer(sched.NewManual("sim"), notify.NewBus())
	require.ErrorIs(t, err, notify.ErrDuplicateLayer)
	assert.Contains(t, err.Error(), "sim")
}

// TestRouter_RegisterExecutionLayer_ConcurrentRegistrations verifies the
// copy-on-write registry under contention.
func TestRouter_RegisterExecutionLayer_ConcurrentRegistrations(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			layer := notify.SchedulerType(fmt.Sprintf("layer-%d", i))
			_, err := r.RegisterExecutionLayer(sched.NewManual(layer), notify.NewBus())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, r.Stats().Layers)
}

// TestRouter_AddHandler_RequiresRegisteredLayer verifies the missing-layer
// error instructs the caller to register first.
func TestRouter_AddHandler_RequiresRegisteredLayer(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter()
	sub := newRecorder("ghost", func(rec *recorder) []notify.Binding {
		return []notify.Binding{recordAll[TickNotification](rec)}
	})

	err := r.AddHandler(context.Background(), sub)
	require.ErrorIs(t, err, notify.ErrUnknownLayer)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), "register the execution layer first")
}

// TestRouter_AddHandler_RoutesByDeclaredLayer verifies subscribers land on
// the broadcaster serving their declared scheduler type.
func TestRouter_AddHandler_RoutesByDeclaredLayer(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	simSched := sched.NewManual("sim")
	uiSched := sched.NewManual("ui")
	_, err := r.RegisterExecutionLayer(simSched, notify.NewBus())
	require.NoError(t, err)
	_, err = r.RegisterExecutionLayer(uiSched, notify.NewBus())
	require.NoError(t, err)

	simSub := newRecorder("sim", func(rec *recorder) []notify.Binding {
		return []notify.Binding{recordAll[TickNotification](rec)}
	})
	uiSub := newRecorder("ui", func(rec *recorder) []notify.Binding {
		return []notify.Binding{recordAll[TickNotification](rec)}
	})
	require.NoError(t, r.AddHandler(context.Background(), simSub))
	require.NoError(t, r.AddHandler(context.Background(), uiSub))

	require.NoError(t, r.Broadcast(layerCtx("sim"), TickNotification{Seq: 1}))
	simSched.Drain()
	uiSched.Drain()

	assert.Len(t, simSub.recorder.notifications(), 1)
	assert.Len(t, uiSub.recorder.notifications(), 1)
}

// TestRouter_BroadcastLazy_SupplierSkippedWithNoHandlers verifies the
// supplier never runs when nothing is listening.
func TestRouter_BroadcastLazy_SupplierSkippedWithNoHandlers(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	simSched := sched.NewManual("sim")
	_, err := r.RegisterExecutionLayer(simSched, notify.NewBus())
	require.NoError(t, err)

	var calls atomic.Int32
	err = r.BroadcastLazy(layerCtx("sim"), func() notify.Notification {
		calls.Add(1)
		return TickNotification{Seq: 1}
	}, notify.TypeOf[TickNotification]())
	require.NoError(t, err)
	simSched.Drain()

	assert.Zero(t, calls.Load(), "supplier must not run without a registered handler")
}

// TestRouter_BroadcastLazy_SupplierRunsExactlyOnce verifies at-most-once
// realization even with several accepting layers.
func TestRouter_BroadcastLazy_SupplierRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	simSched := sched.NewManual("sim")
	uiSched := sched.NewManual("ui")
	_, err := r.RegisterExecutionLayer(simSched, notify.NewBus())
	require.NoError(t, err)
	_, err = r.RegisterExecutionLayer(uiSched, notify.NewBus())
	require.NoError(t, err)

	simSub := newRecorder("sim", func(rec *recorder) []notify.Binding {
		return []notify.Binding{recordAll[TickNotification](rec)}
	})
	uiSub := newRecorder("ui", func(rec *recorder) []notify.Binding {
		return []notify.Binding{recordAll[MarketNotification](rec)}
	})
	require.NoError(t, r.AddHandler(context.Background(), simSub))
	require.NoError(t, r.AddHandler(context.Background(), uiSub))

	var calls atomic.Int32
	err = r.BroadcastLazy(layerCtx("sim"), func() notify.Notification {
		calls.Add(1)
		return TickNotification{Sym: "ACME", Seq: 1}
	}, notify.TypeOf[TickNotification]())
	require.NoError(t, err)
	simSched.Drain()
	uiSched.Drain()

	assert.Equal(t, int32(1), calls.Load(), "two accepting layers, one realization")
	assert.Len(t, simSub.recorder.notifications(), 1)
	assert.Len(t, uiSub.recorder.notifications(), 1)
}

// TestRouter_Broadcast_EagerReachesStructurallyMatchingLayers verifies eager
// fan-out uses structural acceptance, delivering into layers with no live
// subscriber.
func TestRouter_Broadcast_EagerReachesStructurallyMatchingLayers(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	simSched := sched.NewManual("sim")
	uiSched := sched.NewManual("ui")
	simB, err := r.RegisterExecutionLayer(simSched, notify.NewBus())
	require.NoError(t, err)
	uiB, err := r.RegisterExecutionLayer(uiSched, notify.NewBus())
	require.NoError(t, err)

	require.NoError(t, r.Broadcast(layerCtx("sim"), TickNotification{Seq: 1}))
	simSched.Drain()
	uiSched.Drain()

	// Both buses saw a broadcast despite having zero handlers.
	assert.Equal(t, int64(1), simB.Bus().Stats().Broadcasts)
	assert.Equal(t, int64(1), uiB.Bus().Stats().Broadcasts)
}

// orderingFixture wires the nested re-broadcast scenario: the caller's own
// layer relays a SeedNotification into a FollowUpNotification during the
// seed's dispatch, while a foreign layer observes both.
type orderingFixture struct {
	router  *notify.Router
	alpha   *sched.Manual
	beta    *sched.Manual
	betaSub *subscriberFunc
}

func newOrderingFixture(t *testing.T, policy notify.DispatchPolicy) *orderingFixture {
	t.Helper()

	f := &orderingFixture{
		router: notify.NewRouter(notify.WithDispatchPolicy(policy)),
		alpha:  sched.NewManual("alpha"),
		beta:   sched.NewManual("beta"),
	}
	_, err := f.router.RegisterExecutionLayer(f.alpha, notify.NewBus())
	require.NoError(t, err)
	_, err = f.router.RegisterExecutionLayer(f.beta, notify.NewBus())
	require.NoError(t, err)

	relay := newRecorder("alpha", func(rec *recorder) []notify.Binding {
		return []notify.Binding{
			notify.On(func(ctx context.Context, n SeedNotification) error {
				return f.router.Broadcast(ctx, FollowUpNotification{Label: n.Label})
			}),
		}
	})
	require.NoError(t, f.router.AddHandler(context.Background(), relay))

	f.betaSub = newRecorder("beta", func(rec *recorder) []notify.Binding {
		return []notify.Binding{
			recordAll[SeedNotification](rec),
			recordAll[FollowUpNotification](rec),
		}
	})
	require.NoError(t, f.router.AddHandler(context.Background(), f.betaSub))

	return f
}

func (f *orderingFixture) run(t *testing.T) []notify.Notification {
	t.Helper()
	require.NoError(t, f.router.Broadcast(notify.WithLayer(context.Background(), "alpha"),
		SeedNotification{Label: "n1"}))
	f.beta.Drain()
	f.alpha.Drain()
	return f.betaSub.recorder.notifications()
}

// TestRouter_CrossThreadFirst_PreservesSequenceAcrossLayers verifies the
// preferred policy: the foreign layer observes the seed before the follow-up
// broadcast from within the seed's handler.
func TestRouter_CrossThreadFirst_PreservesSequenceAcrossLayers(t *testing.T) {
	t.Parallel()

	f := newOrderingFixture(t, notify.CrossThreadFirst)
	seen := f.run(t)

	require.Len(t, seen, 2)
	assert.IsType(t, SeedNotification{}, seen[0])
	assert.IsType(t, FollowUpNotification{}, seen[1])
}

// TestRouter_RegistrationOrder_AllowsReversedSequence verifies the documented
// weaker guarantee: the legacy policy delivers inline first, so the nested
// follow-up is enqueued to the foreign layer ahead of the seed.
func TestRouter_RegistrationOrder_AllowsReversedSequence(t *testing.T) {
	t.Parallel()

	f := newOrderingFixture(t, notify.BroadcasterRegistrationOrder)
	seen := f.run(t)

	require.Len(t, seen, 2)
	assert.IsType(t, FollowUpNotification{}, seen[0], "legacy policy reverses the pair")
	assert.IsType(t, SeedNotification{}, seen[1])
}

// TestRouter_CrossThreadFirst_RebroadcastFromForeignLayer verifies ordering
// when the foreign layer's handler rebroadcasts: both layers still observe
// the two notifications in broadcast order.
func TestRouter_CrossThreadFirst_RebroadcastFromForeignLayer(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	alpha := sched.NewManual("alpha")
	beta := sched.NewManual("beta")
	_, err := r.RegisterExecutionLayer(alpha, notify.NewBus())
	require.NoError(t, err)
	_, err = r.RegisterExecutionLayer(beta, notify.NewBus())
	require.NoError(t, err)

	alphaObs := newRecorder("alpha", func(rec *recorder) []notify.Binding {
		return []notify.Binding{
			recordAll[SeedNotification](rec),
			recordAll[FollowUpNotification](rec),
		}
	})
	require.NoError(t, r.AddHandler(context.Background(), alphaObs))

	betaRelay := newRecorder("beta", func(rec *recorder) []notify.Binding {
		return []notify.Binding{
			notify.On(func(ctx context.Context, n SeedNotification) error {
				rec.record(n)
				return r.Broadcast(ctx, FollowUpNotification{Label: n.Label})
			}),
			recordAll[FollowUpNotification](rec),
		}
	})
	require.NoError(t, r.AddHandler(context.Background(), betaRelay))

	require.NoError(t, r.Broadcast(notify.WithLayer(context.Background(), "alpha"),
		SeedNotification{Label: "n1"}))
	beta.Drain()
	alpha.Drain()

	alphaSeen := alphaObs.recorder.notifications()
	require.Len(t, alphaSeen, 2)
	assert.IsType(t, SeedNotification{}, alphaSeen[0])
	assert.IsType(t, FollowUpNotification{}, alphaSeen[1])

	betaSeen := betaRelay.recorder.notifications()
	require.Len(t, betaSeen, 2)
	assert.IsType(t, SeedNotification{}, betaSeen[0])
	assert.IsType(t, FollowUpNotification{}, betaSeen[1])
}

// TestRouter_CrossThreadFirst_RejectsSecondInlineLayer verifies the policy
// invariant: two broadcasters accepting in-thread delivery indicate registry
// corruption.
func TestRouter_CrossThreadFirst_RejectsSecondInlineLayer(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	_, err := r.RegisterExecutionLayer(&inlineScheduler{stype: "a"}, notify.NewBus())
	require.NoError(t, err)
	_, err = r.RegisterExecutionLayer(&inlineScheduler{stype: "b"}, notify.NewBus())
	require.NoError(t, err)

	err = r.Broadcast(context.Background(), TickNotification{Seq: 1})
	require.ErrorIs(t, err, notify.ErrPolicyViolation)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Contains(t, err.Error(), `"b"`)
}

// TestRouter_SetBroadcastPriority_SwitchesAtRuntime verifies the policy is a
// mutable field, not fixed at startup.
func TestRouter_SetBroadcastPriority_SwitchesAtRuntime(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.BroadcasterRegistrationOrder))
	require.Equal(t, notify.BroadcasterRegistrationOrder, r.Policy())

	r.SetBroadcastPriority(notify.CrossThreadFirst)
	assert.Equal(t, notify.CrossThreadFirst, r.Policy())
}

// TestRouter_ClearAllHandlers_ReleasesEverything verifies the global clear:
// registry swapped, buses cleared, point-to-point claims released.
func TestRouter_ClearAllHandlers_ReleasesEverything(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	simSched := sched.NewManual("sim")
	_, err := r.RegisterExecutionLayer(simSched, notify.NewBus())
	require.NoError(t, err)

	a := &commandSubscriberA{bindings: []notify.Binding{swallow[ShutdownCommand]()}}
	require.NoError(t, r.AddHandler(context.Background(), a))

	r.ClearAllHandlers()
	assert.Equal(t, 0, r.Stats().Layers)

	// Fresh registration of the layer and a different class on the same
	// point-to-point type succeeds after the clear.
	_, err = r.RegisterExecutionLayer(sched.NewManual("sim"), notify.NewBus())
	require.NoError(t, err)
	b := &commandSubscriberB{bindings: []notify.Binding{swallow[ShutdownCommand]()}}
	assert.NoError(t, r.AddHandler(context.Background(), b))
}

// TestRouter_SharedValidatorSpansLayers verifies point-to-point exclusivity
// holds across buses of different layers registered with one router.
func TestRouter_SharedValidatorSpansLayers(t *testing.T) {
	t.Parallel()

	r := notify.NewRouter(notify.WithDispatchPolicy(notify.CrossThreadFirst))
	_, err := r.RegisterExecutionLayer(sched.NewManual("sim"), notify.NewBus())
	require.NoError(t, err)
	_, err = r.RegisterExecutionLayer(sched.NewManual("ui"), notify.NewBus())
	require.NoError(t, err)

	a := &commandSubscriberA{bindings: []notify.Binding{swallow[ShutdownCommand]()}}
	require.NoError(t, r.AddHandler(context.Background(), a))

	// Different layer, different bus, same point-to-point type.
	b := &uiCommandSubscriber{bindings: []notify.Binding{swallow[ShutdownCommand]()}}
	err = r.AddHandler(context.Background(), b)
	assert.ErrorIs(t, err, notify.ErrPointToPointConflict)
}

type uiCommandSubscriber struct{ bindings []notify.Binding }

func (s *uiCommandSubscriber) SchedulerType() notify.SchedulerType { return "ui" }
func (s *uiCommandSubscriber) Bindings() []notify.Binding          { return s.bindings }
