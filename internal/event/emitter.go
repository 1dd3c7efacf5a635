// Package event provides a flat publish/subscribe emitter.
//
// Listeners are invoked on a separate goroutine, one event at a time, in the
// order the events were emitted. Emitting never blocks on listeners, so
// producers may emit while holding their own locks, and listeners may call
// back into the producer.
package event

import "sync"

type listener[T any] struct {
	fn func(T)
}

type delivery[T any] struct {
	value     T
	listeners []*listener[T]
}

// Emitter dispatches values of type T to listeners registered by name.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners map[string][]*listener[T]
	queue     []delivery[T]
	draining  bool
	idle      *sync.Cond
}

// On registers fn for events called name and returns a function removing it.
func (e *Emitter[T]) On(name string, fn func(T)) (off func()) {
	l := &listener[T]{fn: fn}
	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener[T])
	}
	e.listeners[name] = append(e.listeners[name], l)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(name, l) })
	}
}

func (e *Emitter[T]) remove(name string, l *listener[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[name]
	for i, candidate := range ls {
		if candidate == l {
			// copy so snapshots already queued stay intact
			next := make([]*listener[T], 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			e.listeners[name] = next
			return
		}
	}
}

// Has reports whether at least one listener is registered for name.
func (e *Emitter[T]) Has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name]) > 0
}

// RemoveAll drops every listener. Events already emitted are still delivered.
func (e *Emitter[T]) RemoveAll() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

// Emit queues v for the listeners currently registered under name.
// It reports whether any listener was registered.
func (e *Emitter[T]) Emit(name string, v T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[name]
	if len(ls) == 0 {
		return false
	}
	e.queue = append(e.queue, delivery[T]{value: v, listeners: ls})
	if !e.draining {
		e.draining = true
		go e.drain()
	}
	return true
}

func (e *Emitter[T]) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			if e.idle != nil {
				e.idle.Broadcast()
			}
			e.mu.Unlock()
			return
		}
		d := e.queue[0]
		e.queue[0] = delivery[T]{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		for _, l := range d.listeners {
			l.fn(d.value)
		}
	}
}

// Wait blocks until every event emitted so far has been delivered.
// It must not be called from a listener.
func (e *Emitter[T]) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idle == nil {
		e.idle = sync.NewCond(&e.mu)
	}
	for e.draining {
		e.idle.Wait()
	}
}
