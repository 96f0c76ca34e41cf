// Package event provides the observer registry used to notify external
// listeners about connection lifecycle events.
package event

import (
	"cmp"
	"slices"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-grbl/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// ClosedMessage is the message carried by connection closure events.
const ClosedMessage = "Connection Closed"

// ConnectionEvent describes a connection lifecycle event.
type ConnectionEvent struct {
	Message  string
	PortName string
	Time     time.Time
}

// NewClosedEvent creates the event fired when a connection is closed.
func NewClosedEvent(portName string) ConnectionEvent {
	return ConnectionEvent{
		Message:  ClosedMessage,
		PortName: portName,
		Time:     time.Now(),
	}
}

// Listener is notified when a connection is closed.
//
// Note: listeners are invoked synchronously by the goroutine that closed the
// connection. Take care with long-running implementations.
type Listener interface {
	ConnectionClosed(ev ConnectionEvent)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ev ConnectionEvent)

// ConnectionClosed calls f(ev).
func (f ListenerFunc) ConnectionClosed(ev ConnectionEvent) { f(ev) }

// Handle identifies a registered listener.
type Handle uint64

// Registry is a set of lifecycle listeners notified in registration order.
//
// The registry does not own its listeners: removing a listener is the
// registrant's responsibility. It is safe for concurrent use, and listeners may
// add or remove registrations while being notified.
type Registry struct {
	seq       atomic.Uint64
	listeners *xsync.MapOf[Handle, Listener]
	logger    logger.Logger
}

// NewRegistry creates an empty Registry. A nil logger selects the package
// default logger.
func NewRegistry(l logger.Logger) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		listeners: xsync.NewMapOf[Handle, Listener](),
		logger:    l,
	}
}

// Add registers l and returns its handle. A nil listener is ignored and the
// zero Handle is returned.
func (r *Registry) Add(l Listener) Handle {
	if l == nil {
		return 0
	}
	h := Handle(r.seq.Add(1))
	r.listeners.Store(h, l)

	return h
}

// AddFunc registers a function listener.
func (r *Registry) AddFunc(f func(ev ConnectionEvent)) Handle {
	if f == nil {
		return 0
	}

	return r.Add(ListenerFunc(f))
}

// Remove unregisters the listener with handle h. It reports whether the
// listener was registered.
func (r *Registry) Remove(h Handle) bool {
	_, ok := r.listeners.LoadAndDelete(h)
	return ok
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	return r.listeners.Size()
}

// Clear removes all listeners.
func (r *Registry) Clear() {
	r.listeners.Clear()
}

// FireConnectionClosed notifies every registered listener, synchronously and
// in registration order. A panicking listener is logged and does not stop the
// remaining notifications.
func (r *Registry) FireConnectionClosed(ev ConnectionEvent) {
	for _, l := range r.snapshot() {
		r.notify(l, ev)
	}
}

type entry struct {
	handle   Handle
	listener Listener
}

func (r *Registry) snapshot() []Listener {
	entries := make([]entry, 0, r.listeners.Size())
	r.listeners.Range(func(h Handle, l Listener) bool {
		entries = append(entries, entry{handle: h, listener: l})
		return true
	})
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.handle, b.handle) })

	out := make([]Listener, len(entries))
	for i, e := range entries {
		out[i] = e.listener
	}

	return out
}

func (r *Registry) notify(l Listener, ev ConnectionEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event: listener panicked", "event", ev.Message, "panic", rec)
		}
	}()
	l.ConnectionClosed(ev)
}
