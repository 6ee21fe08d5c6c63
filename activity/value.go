package activity

import "sync"

// Value is an observable cell holding the current value produced by a running
// activity.
//
// Listeners registered via Subscribe are notified synchronously, in update
// order, while the cell's lock is held. This is what allows a workflow to
// aggregate task reports without polling: by the time Set or Update returns,
// every listener has seen the new value. The flip side is that a listener
// must not call back into the same cell; updating a *different* cell (such as
// a parent's aggregate) from a listener is fine and is the intended use.
type Value[T any] struct {
	mu        sync.Mutex
	current   T
	listeners map[int]func(T)
	nextID    int
}

// NewValue creates a cell holding the given initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies all listeners before returning.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = value
	v.notifyLocked()
}

// Update atomically applies fn to the current value and notifies all
// listeners. Concurrent Update calls are serialized, so read-modify-write
// sequences cannot lose updates. Returns the new value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.notifyLocked()
	return v.current
}

// Subscribe registers a listener called on every subsequent update. The
// returned function removes the listener; it is safe to call more than once.
func (v *Value[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listeners == nil {
		v.listeners = make(map[int]func(T))
	}
	id := v.nextID
	v.nextID++
	v.listeners[id] = listener

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

func (v *Value[T]) notifyLocked() {
	for _, listener := range v.listeners {
		listener(v.current)
	}
}
