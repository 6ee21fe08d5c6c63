package activity

// Activity is a unit of background work that produces and incrementally
// updates a value of type T.
//
// IMPLEMENTATION CONTRACT:
//   - Run performs the work, reading and writing the current value through
//     the supplied Context. Return nil for success, an error for failure.
//   - Run must watch ctx.Context() and return promptly once it is cancelled.
//   - An Activity must not keep run-scoped state across calls to Run; wrap
//     stateful implementations in Regenerating so each run gets a fresh
//     instance.
//
// The optional capability interfaces below (Named, Canceler, Resetter,
// InitialValuer) are detected at runtime and default to no-ops when absent.
type Activity[T any] interface {
	// Run executes the unit of work. It blocks until the work is done,
	// failed, or cancelled.
	Run(ctx *Context[T]) error
}

// Canceler is implemented by activities that need an explicit cancellation
// hook beyond context cancellation, for example to abort an external process.
type Canceler interface {
	Cancel()
}

// Resetter is implemented by activities that hold state which must be cleared
// when the externally visible value is reset to its initial value.
type Resetter interface {
	Reset()
}

// InitialValuer is implemented by activities that declare a non-zero initial
// value. The initial value is visible before the first run and restored by
// Control.Reset.
type InitialValuer[T any] interface {
	InitialValue() T
}
