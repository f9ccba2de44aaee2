package notify

import "reflect"

// Notification is the marker interface carried by every value routed through
// the bus. Notifications are immutable messages with no required fields;
// embed Base to implement the marker.
//
// Example:
//
//	type OrderFilled struct {
//	    notify.Base
//	    OrderID string
//	    Price   float64
//	}
type Notification interface {
	notification()
}

// Base is embedded by notification types to satisfy the Notification marker.
type Base struct{}

func (Base) notification() {}

// PointToPointNotification marks notification types constrained to at most one
// subscribing class system-wide. Registrations that would let two different
// subscriber types compete for an aliasing point-to-point type are rejected by
// the PointToPointValidator. Embed PointToPoint to implement the marker.
type PointToPointNotification interface {
	Notification
	pointToPoint()
}

// PointToPoint is embedded by notification types to satisfy the
// PointToPointNotification marker.
type PointToPoint struct{ Base }

func (PointToPoint) pointToPoint() {}

// FireAndForgetNotification marks notification types for which zero
// subscribers is the expected, acceptable case. The marker carries no
// invariant; it documents that the broadcast must never be relied on for
// control flow. Embed FireAndForget to implement the marker.
type FireAndForgetNotification interface {
	Notification
	fireAndForget()
}

// FireAndForget is embedded by notification types to satisfy the
// FireAndForgetNotification marker.
type FireAndForget struct{ Base }

func (FireAndForget) fireAndForget() {}

var (
	notificationType = reflect.TypeOf((*Notification)(nil)).Elem()
	pointToPointType = reflect.TypeOf((*PointToPointNotification)(nil)).Elem()
)

// TypeOf returns the reflect.Type of the notification type T. For interface
// types it returns the interface type itself, not a concrete implementation.
//
// Example:
//
//	router.BroadcastLazy(ctx, buildReport, notify.TypeOf[ReportReady]())
func TypeOf[T Notification]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsPointToPoint reports whether t carries the point-to-point marker.
func IsPointToPoint(t reflect.Type) bool {
	return t != nil && t.Implements(pointToPointType)
}

// typeName extracts the bare type name, unwrapping pointers. Matches the
// naming used in error messages and log attributes across the package.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
