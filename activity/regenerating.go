package activity

import "sync"

// Regenerating wraps an activity factory so that every run executes a fresh
// instance. Activities that accumulate run-scoped state (parse buffers,
// connections, partial results) stay correct across repeated starts without
// having to implement their own cleanup.
//
// A prototype instance is created once, up front, and used only for
// metadata: the derived name and the initial value. It is never run.
type Regenerating[T any] struct {
	factory   func() Activity[T]
	prototype Activity[T]

	mu      sync.Mutex
	current Activity[T]
}

// NewRegenerating creates a Regenerating wrapper around factory.
func NewRegenerating[T any](factory func() Activity[T]) *Regenerating[T] {
	return &Regenerating[T]{
		factory:   factory,
		prototype: factory(),
	}
}

// Run instantiates a fresh inner activity and delegates to it. The instance
// is retained for the duration of the run so Cancel and Reset can reach it.
func (r *Regenerating[T]) Run(ctx *Context[T]) error {
	inner := r.factory()

	r.mu.Lock()
	r.current = inner
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	}()

	return inner.Run(ctx)
}

// Name returns the name derived from the prototype instance.
func (r *Regenerating[T]) Name() string {
	return NameOf(r.prototype)
}

// InitialValue returns the prototype's initial value, or the zero value when
// the inner activity does not declare one.
func (r *Regenerating[T]) InitialValue() T {
	if iv, ok := r.prototype.(InitialValuer[T]); ok {
		return iv.InitialValue()
	}
	var zero T
	return zero
}

// Cancel forwards to the live instance's Canceler hook. With no run in
// flight there is nothing to cancel; a request racing the end of a run may
// land on no instance, which is the same outcome as the run finishing first.
func (r *Regenerating[T]) Cancel() {
	r.mu.Lock()
	inner := r.current
	r.mu.Unlock()

	if canceler, ok := inner.(Canceler); ok {
		canceler.Cancel()
	}
}

// Reset forwards to the live instance's Resetter hook, if any.
func (r *Regenerating[T]) Reset() {
	r.mu.Lock()
	inner := r.current
	r.mu.Unlock()

	if resetter, ok := inner.(Resetter); ok {
		resetter.Reset()
	}
}
