package notify

import (
	"fmt"
	"reflect"
	"sync"
)

// PointToPointValidator rejects registrations that would create ambiguous
// point-to-point routing: across the whole process, at most one subscribing
// class may hold a handler for a point-to-point type or for any type aliasing
// it (same type, or assignable either way).
//
// The check is intentionally weak: only directly declared point-to-point
// types are compared pairwise against previously accepted ones. Hierarchies
// that alias only through non-point-to-point ancestors pass undetected. This
// is a documented limitation, not a bug to silently fix.
type PointToPointValidator struct {
	mu      sync.Mutex
	records []p2pRecord
}

type p2pRecord struct {
	ntype      reflect.Type
	subscriber reflect.Type
}

// NewPointToPointValidator creates an empty validator.
func NewPointToPointValidator() *PointToPointValidator {
	return &PointToPointValidator{}
}

// Validate filters bound to point-to-point types and, for each in turn,
// checks it against every accepted (type, class) pair before recording it.
// On conflict it returns an error identifying both subscribing classes, or
// the single class for a double subscription; this includes two aliasing
// types declared by one subscriber in a single registration.
func (v *PointToPointValidator) Validate(subscriber reflect.Type, bound []reflect.Type) error {
	var p2p []reflect.Type
	for _, t := range bound {
		if IsPointToPoint(t) {
			p2p = append(p2p, t)
		}
	}
	if len(p2p) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Each type is checked against the records accumulated so far and then
	// recorded itself, so two aliasing types declared in one batch conflict
	// the same way they would across batches.
	for _, n := range p2p {
		for _, rec := range v.records {
			if !aliases(n, rec.ntype) {
				continue
			}
			if rec.subscriber == subscriber {
				return fmt.Errorf("%w: %s subscribes twice to %s (already recorded for %s)",
					ErrPointToPointConflict, typeName(subscriber), typeName(n), typeName(rec.ntype))
			}
			return fmt.Errorf("%w: %s and %s both subscribe to %s (recorded for %s)",
				ErrPointToPointConflict, typeName(subscriber), typeName(rec.subscriber), typeName(n), typeName(rec.ntype))
		}
		v.records = append(v.records, p2pRecord{ntype: n, subscriber: subscriber})
	}
	return nil
}

// Reset clears all recorded pairs. Called in lockstep with a global clear.
func (v *PointToPointValidator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = nil
}

// aliases reports whether two point-to-point types would match the same
// broadcast: identical types, or one assignable to the other.
func aliases(a, b reflect.Type) bool {
	return a.AssignableTo(b) || b.AssignableTo(a)
}
