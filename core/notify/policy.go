package notify

import (
	"fmt"
	"sync"

	"github.com/dessimlab/dessim/core/config"
)

// DispatchPolicy selects the fan-out order the router uses across execution
// layers for one broadcast.
type DispatchPolicy int32

const (
	// BroadcasterRegistrationOrder iterates layers in registration order,
	// delivering inline or handing off per layer as it goes. No ordering
	// guarantee is made between two cross-layer deliveries. Legacy behavior.
	BroadcasterRegistrationOrder DispatchPolicy = iota

	// CrossThreadFirst hands off to every foreign layer before delivering to
	// the caller's own layer, so sequential broadcasts from one layer reach
	// every other layer in that same sequence. Preferred.
	CrossThreadFirst
)

// String implements fmt.Stringer.
func (p DispatchPolicy) String() string {
	switch p {
	case BroadcasterRegistrationOrder:
		return "registration_order"
	case CrossThreadFirst:
		return "cross_thread_first"
	default:
		return fmt.Sprintf("DispatchPolicy(%d)", int32(p))
	}
}

// ParseDispatchPolicy converts a configuration string to a policy.
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch s {
	case "registration_order":
		return BroadcasterRegistrationOrder, nil
	case "cross_thread_first":
		return CrossThreadFirst, nil
	default:
		return CrossThreadFirst, fmt.Errorf("unknown dispatch policy %q", s)
	}
}

// broadcastConfig is the process-wide routing configuration, read once.
type broadcastConfig struct {
	Priority string `env:"BROADCAST_PRIORITY" envDefault:"cross_thread_first"`
}

var (
	defaultPolicyOnce sync.Once
	defaultPolicy     DispatchPolicy
)

// DefaultDispatchPolicy returns the policy new routers start with, read once
// from the BROADCAST_PRIORITY environment variable. Unset or unparseable
// values fall back to CrossThreadFirst. Runtime overrides go through
// Router.SetBroadcastPriority.
func DefaultDispatchPolicy() DispatchPolicy {
	defaultPolicyOnce.Do(func() {
		defaultPolicy = CrossThreadFirst

		var cfg broadcastConfig
		if err := config.Load(&cfg); err != nil {
			return
		}
		if p, err := ParseDispatchPolicy(cfg.Priority); err == nil {
			defaultPolicy = p
		}
	})
	return defaultPolicy
}
