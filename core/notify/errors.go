package notify

import "errors"

var (
	// ErrOwnershipViolation is returned when a bus broadcast is attempted from
	// a different execution layer after another layer has claimed the bus.
	ErrOwnershipViolation = errors.New("notification bus is owned by another execution layer")

	// ErrPointToPointConflict is returned when a registration would let two
	// subscribing classes compete for an aliasing point-to-point type.
	ErrPointToPointConflict = errors.New("conflicting point-to-point subscription")

	// ErrDuplicateLayer is returned when a broadcaster is registered for a
	// scheduler type that already has one.
	ErrDuplicateLayer = errors.New("execution layer already registered")

	// ErrUnknownLayer is returned when a subscriber declares a scheduler type
	// with no registered broadcaster.
	ErrUnknownLayer = errors.New("no registered broadcaster for scheduler type")

	// ErrInvalidBinding is returned when a handler binding is malformed or its
	// notification type is not assignable to the bus root type.
	ErrInvalidBinding = errors.New("invalid handler binding")

	// ErrNilNotification is returned when a nil notification or supplier is
	// broadcast.
	ErrNilNotification = errors.New("nil notification")

	// ErrPolicyViolation is returned when cross-thread-first dispatch finds
	// more than one broadcaster accepting in-thread delivery. It indicates a
	// corrupted broadcaster registry.
	ErrPolicyViolation = errors.New("more than one broadcaster accepts in-thread delivery")
)
