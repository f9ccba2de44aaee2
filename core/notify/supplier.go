package notify

import "sync"

// future realizes a notification at most once, no matter how many of the
// logging, eavesdropping, and dispatch steps touch it, or which goroutine
// touches it first.
type future struct {
	once sync.Once
	fn   func() Notification
	val  Notification
}

// newFuture wraps a supplier. The supplier runs at most once, on first use.
func newFuture(fn func() Notification) *future {
	return &future{fn: fn}
}

// eagerFuture wraps an already realized notification.
func eagerFuture(n Notification) *future {
	return &future{val: n}
}

// value returns the realized notification, invoking the supplier on first
// call.
func (f *future) value() Notification {
	f.once.Do(func() {
		if f.fn != nil {
			f.val = f.fn()
			f.fn = nil
		}
	})
	return f.val
}
