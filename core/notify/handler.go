package notify

import (
	"context"
	"fmt"
	"reflect"
)

// Binding associates one notification type with a handler closure. Bindings
// are declared statically by subscribers; there is no runtime method
// discovery.
type Binding struct {
	ntype reflect.Type
	name  string
	fn    func(context.Context, Notification) error
}

// On creates a type-safe binding for notifications of type T. T may be a
// concrete notification type or an interface extending Notification; the
// handler fires for every broadcast whose runtime type is assignable to T.
//
// Example:
//
//	notify.On(func(ctx context.Context, n OrderFilled) error {
//	    return book.Record(n)
//	})
func On[T Notification](fn func(context.Context, T) error) Binding {
	t := TypeOf[T]()
	name := "On(" + typeName(t) + ")"
	if fn == nil {
		return Binding{ntype: t, name: name}
	}
	return Binding{
		ntype: t,
		name:  name,
		fn: func(ctx context.Context, n Notification) error {
			typed, ok := n.(T)
			if !ok {
				return fmt.Errorf("%w: %s received %T", ErrInvalidBinding, name, n)
			}
			return fn(ctx, typed)
		},
	}
}

// NewBinding creates a binding from a dynamically known notification type.
// The handler receives the untyped notification; name identifies the binding
// in registration errors and logs.
func NewBinding(t reflect.Type, name string, fn func(context.Context, Notification) error) Binding {
	if name == "" {
		name = "On(" + typeName(t) + ")"
	}
	return Binding{ntype: t, name: name, fn: fn}
}

// Type returns the bound notification type.
func (b Binding) Type() reflect.Type { return b.ntype }

// Name returns the binding's label, used in errors and logs.
func (b Binding) Name() string { return b.name }

// validate checks the binding is well-formed and its type is assignable to
// the bus root notification type.
func (b Binding) validate(root reflect.Type) error {
	if b.ntype == nil {
		return fmt.Errorf("%w: %s has no notification type", ErrInvalidBinding, b.name)
	}
	if b.fn == nil {
		return fmt.Errorf("%w: %s has no handler func", ErrInvalidBinding, b.name)
	}
	if !b.ntype.AssignableTo(notificationType) {
		return fmt.Errorf("%w: %s binds %s, which is not a Notification", ErrInvalidBinding, b.name, typeName(b.ntype))
	}
	if !b.ntype.AssignableTo(root) {
		return fmt.Errorf("%w: %s binds %s, which is not assignable to bus root type %s",
			ErrInvalidBinding, b.name, typeName(b.ntype), typeName(root))
	}
	return nil
}

// Subscriber is the capability held by application code: it declares the
// execution layer its handlers must run on and the static list of
// (notification type, handler) bindings.
//
// The subscriber's concrete Go type is its identity for point-to-point
// validation: two values of the same type count as one subscribing class.
type Subscriber interface {
	// SchedulerType returns the layer the subscriber's handlers run on.
	SchedulerType() SchedulerType

	// Bindings returns the handler bindings to register. The slice is read
	// once at registration time.
	Bindings() []Binding
}
