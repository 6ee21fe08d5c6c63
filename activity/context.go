package activity

import (
	"context"
	"log/slog"
	"sync"
)

// pathSeparator joins the identifiers of nested monitors into a composite
// path like "Execute workflow -> transform1".
const pathSeparator = " -> "

// Parent is the view of a monitor needed to attach a child monitor to it:
// the composite path, the cancellation context, the logger, and the child
// progress roll-up. The interface exists because NewChild must accept a
// *Context of any value type; only a *Context ever acts as a Parent.
type Parent interface {
	// Path returns the composite identifier of this monitor.
	Path() string
	// Context returns the cancellation context of this monitor. Child
	// contexts are derived from it, so cancelling a parent reaches every
	// running descendant.
	Context() context.Context
	// Logger returns the logger of this monitor.
	Logger() *slog.Logger

	attachChild(name string, weight float64) func(progress float64)
}

// Context is the live handle passed to a running activity: the current value
// cell, the status/progress cell, a cancellation context, and the attachment
// point for nested monitors. A Context exists for exactly one execution; it
// is created immediately before Run is invoked and discarded afterwards,
// while the value and status cells it writes to may outlive it (they belong
// to the owning Control).
type Context[T any] struct {
	name   string
	path   string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	value  *Value[T]
	status *Value[Status]

	childMu  sync.Mutex
	children map[string]*childSlot
}

// childSlot tracks one child monitor's contribution to this monitor's
// progress. A weight of zero means the child takes an equal share of
// whatever the explicitly weighted children leave over.
type childSlot struct {
	weight   float64
	progress float64
}

// NewRootContext creates a standalone monitor with fresh value and status
// cells. Controls create their contexts internally; this constructor exists
// for embedding an activity execution somewhere a Control is not wanted,
// and for tests.
func NewRootContext[T any](name string, initial T, logger *slog.Logger) *Context[T] {
	return newContext(name, name, NewValue(initial), NewValue(Status{State: StateRunning}), logger, context.Background())
}

// NewChild creates a nested monitor for a sub-activity. The child's path is
// the parent's path plus the child name, its cancellation context is derived
// from the parent's, and its progress contributes weight x progress to the
// parent's progress. Pass a weight of zero to give the child an equal share
// of the progress the parent's explicitly weighted children leave over
// (the policy when the topology declares no contribution).
func NewChild[U any](parent Parent, name string, initial U, weight float64) *Context[U] {
	path := name
	if pp := parent.Path(); pp != "" {
		path = pp + pathSeparator + name
	}

	child := newContext(name, path, NewValue(initial), NewValue(Status{State: StateRunning}), parent.Logger(), parent.Context())

	report := parent.attachChild(name, weight)
	child.status.Subscribe(func(s Status) {
		report(s.Progress)
	})
	return child
}

func newContext[T any](name, path string, value *Value[T], status *Value[Status], logger *slog.Logger, parent context.Context) *Context[T] {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = slog.Default()
	}
	return &Context[T]{
		name:   name,
		path:   path,
		logger: logger.With("activity", path),
		ctx:    ctx,
		cancel: cancel,
		value:  value,
		status: status,
	}
}

// Name returns the identifier of this monitor without the parent path.
func (c *Context[T]) Name() string {
	return c.name
}

// Path returns the composite identifier, parent path included.
func (c *Context[T]) Path() string {
	return c.path
}

// Context returns the cancellation context for this execution.
func (c *Context[T]) Context() context.Context {
	return c.ctx
}

// Logger returns the logger tagged with this monitor's path.
func (c *Context[T]) Logger() *slog.Logger {
	return c.logger
}

// Value returns the current-value cell.
func (c *Context[T]) Value() *Value[T] {
	return c.value
}

// Status returns the status/progress cell.
func (c *Context[T]) Status() *Value[Status] {
	return c.status
}

// SetMessage updates the status message, leaving state and progress alone.
func (c *Context[T]) SetMessage(msg string) {
	c.status.Update(func(s Status) Status {
		s.Message = msg
		return s
	})
}

// SetProgress updates the progress fraction, clamped to [0, 1].
func (c *Context[T]) SetProgress(p float64) {
	p = clampProgress(p)
	c.status.Update(func(s Status) Status {
		s.Progress = p
		return s
	})
}

// Finish marks this execution as finished with the given error. Progress
// jumps to 1 on success. A context whose cancellation fired is recorded as
// cancelled.
func (c *Context[T]) Finish(err error) {
	cancelled := c.ctx.Err() != nil
	c.status.Update(func(s Status) Status {
		s.State = StateFinished
		s.Err = err
		s.Cancelled = cancelled
		if err == nil && !cancelled {
			s.Progress = 1
		}
		return s
	})
}

// attachChild registers a child slot and returns the function the child uses
// to report its progress. Every report recomputes the weighted roll-up over
// all children and publishes it to the status cell.
func (c *Context[T]) attachChild(name string, weight float64) func(float64) {
	c.childMu.Lock()
	if c.children == nil {
		c.children = make(map[string]*childSlot)
	}
	slot := &childSlot{weight: weight}
	c.children[name] = slot
	c.childMu.Unlock()

	return func(progress float64) {
		progress = clampProgress(progress)

		c.childMu.Lock()
		slot.progress = progress
		total := c.rollUpLocked()
		c.childMu.Unlock()

		c.SetProgress(total)
	}
}

// rollUpLocked computes the weighted progress across all children. Children
// without an explicit weight split the remainder left by the weighted ones
// equally.
func (c *Context[T]) rollUpLocked() float64 {
	var explicit float64
	unweighted := 0
	for _, slot := range c.children {
		if slot.weight > 0 {
			explicit += slot.weight
		} else {
			unweighted++
		}
	}

	var share float64
	if unweighted > 0 {
		if remainder := 1 - explicit; remainder > 0 {
			share = remainder / float64(unweighted)
		}
	}

	var total float64
	for _, slot := range c.children {
		w := slot.weight
		if w <= 0 {
			w = share
		}
		total += w * slot.progress
	}
	return clampProgress(total)
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
