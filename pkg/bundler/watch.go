package bundler

import (
	"sync"
	"time"
)

// EventCode identifies a point in a watch-mode build cycle.
type EventCode string

// Build cycle events, in the order a successful cycle emits them.
// A failed cycle emits EventError in place of the remaining events.
const (
	EventStart       EventCode = "START"
	EventBundleStart EventCode = "BUNDLE_START"
	EventBundleEnd   EventCode = "BUNDLE_END"
	EventEnd         EventCode = "END"
	EventError       EventCode = "ERROR"
)

// Event is emitted by a Watcher.
type Event struct {
	Code     EventCode
	Duration time.Duration // Set on EventBundleEnd
	Err      error         // Set on EventError
	// Fatal is set on the EventError sent when the watcher itself stopped.
	// No further cycles follow it.
	Fatal bool
}

// Watcher is a watch-mode build that rebuilds on source changes.
type Watcher interface {
	// OnEvent registers fn for every subsequent event. The returned func
	// removes the listener; calling it more than once is harmless.
	OnEvent(fn func(Event)) (remove func())
	Close() error
}

// Emitter is a listener registry for watchers.
//
// Events emitted while no listener is registered are held and replayed to
// the next listener that subscribes, so a cycle that completes before the
// caller gets around to subscribing is not lost. Only the latest cycle is
// held: a START drops everything held before it.
type Emitter struct {
	// deliver serializes deliveries so a replay and a live event never
	// interleave.
	deliver   sync.Mutex
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
	order     []int
	pending   []Event
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[int]func(Event))}
}

// OnEvent implements the Watcher listener contract.
func (e *Emitter) OnEvent(fn func(Event)) (remove func()) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.order = append(e.order, id)
	replay := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, ev := range replay {
		if !e.has(id) {
			break
		}
		fn(ev)
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.listeners[id]; !ok {
			return
		}
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers ev to every registered listener in registration order.
// Listeners may remove themselves but must not emit or subscribe.
func (e *Emitter) Emit(ev Event) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	if len(e.order) == 0 {
		if ev.Code == EventStart {
			e.pending = e.pending[:0]
		}
		e.pending = append(e.pending, ev)
		e.mu.Unlock()
		return
	}
	fns := make([]func(Event), 0, len(e.order))
	for _, id := range e.order {
		fns = append(fns, e.listeners[id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Listeners returns the number of registered listeners.
func (e *Emitter) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

func (e *Emitter) has(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.listeners[id]
	return ok
}
