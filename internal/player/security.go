package player

import "sync"

// SecurityListener receives security-policy violation signals.
type SecurityListener interface {
	OnSecurityViolation(v SecurityViolation)
}

// SecurityObserver is the process-wide subject for security-policy violation
// signals. Active sessions register with it and are dispatched structured
// events; unregistering one session never disturbs the others.
type SecurityObserver struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]SecurityListener
}

// NewSecurityObserver returns an empty observer.
func NewSecurityObserver() *SecurityObserver {
	return &SecurityObserver{listeners: make(map[int]SecurityListener)}
}

// Subscribe registers l and returns its unsubscribe function. Unsubscribing
// twice is a no-op.
func (o *SecurityObserver) Subscribe(l SecurityListener) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// Dispatch delivers v to every currently registered listener.
func (o *SecurityObserver) Dispatch(v SecurityViolation) {
	o.mu.Lock()
	listeners := make([]SecurityListener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.Unlock()

	for _, l := range listeners {
		l.OnSecurityViolation(v)
	}
}

// ListenerCount returns the number of registered listeners. Used for metrics.
func (o *SecurityObserver) ListenerCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners)
}
