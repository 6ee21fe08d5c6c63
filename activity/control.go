package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kaister3/silk/pool"
	"github.com/kaister3/silk/user"
)

// ErrAlreadyRunning is returned by Start when the activity has a run in
// flight.
var ErrAlreadyRunning = errors.New("activity already running")

// Control owns the lifecycle of one activity: it starts runs on the worker
// pool, enforces single execution, routes cancellation and reset requests,
// and holds the value and status cells that observers subscribe to. The
// cells persist across runs, so a subscriber registered once keeps seeing
// updates through any number of start/finish cycles.
type Control[T any] struct {
	activity Activity[T]
	name     string
	initial  T
	pool     *pool.Pool
	logger   *slog.Logger

	value  *Value[T]
	status *Value[Status]

	mu      sync.Mutex
	current *Context[T]
	done    chan struct{}
	lastErr error
}

// ControlOption configures a Control.
type ControlOption func(*controlOptions)

type controlOptions struct {
	pool   *pool.Pool
	logger *slog.Logger
	name   string
}

// WithPool sets the worker pool runs are submitted to. Defaults to the
// process-wide shared pool.
func WithPool(p *pool.Pool) ControlOption {
	return func(o *controlOptions) { o.pool = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ControlOption {
	return func(o *controlOptions) { o.logger = logger }
}

// WithName overrides the name derived from the activity's type.
func WithName(name string) ControlOption {
	return func(o *controlOptions) { o.name = name }
}

// NewControl creates a Control for the given activity. The value cell starts
// at the activity's declared initial value (via InitialValuer) or the zero
// value of T; the status cell starts idle.
func NewControl[T any](act Activity[T], opts ...ControlOption) *Control[T] {
	options := controlOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.pool == nil {
		options.pool = pool.Default()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.name == "" {
		options.name = NameOf(act)
	}

	var initial T
	if iv, ok := act.(InitialValuer[T]); ok {
		initial = iv.InitialValue()
	}

	return &Control[T]{
		activity: act,
		name:     options.name,
		initial:  initial,
		pool:     options.pool,
		logger:   options.logger.With("component", "activity"),
		value:    NewValue(initial),
		status:   NewValue(Status{State: StateIdle}),
	}
}

// Name returns the activity's name.
func (c *Control[T]) Name() string {
	return c.name
}

// Start submits a run to the worker pool. It returns immediately; the run
// executes when a worker picks it up. Returns ErrAlreadyRunning if a run is
// already in flight.
func (c *Control[T]) Start(u user.Context) error {
	ctx, err := c.begin(u, StateWaiting)
	if err != nil {
		return err
	}
	c.pool.Submit(func() {
		c.run(ctx)
	})
	return nil
}

// StartBlocking runs the activity inline on the calling goroutine and
// returns its error. It exists for callers that already hold a pool worker -
// an activity starting sub-activities uses StartBlocking to avoid consuming
// a second worker slot. Returns ErrAlreadyRunning if a run is in flight.
func (c *Control[T]) StartBlocking(u user.Context) error {
	ctx, err := c.begin(u, StateRunning)
	if err != nil {
		return err
	}
	// run's own return value, not LastError: once the slot is released a
	// follow-up Start may already have reset the shared state.
	return c.run(ctx)
}

// begin reserves the single run slot, creates the run context, and publishes
// the initial state.
func (c *Control[T]) begin(u user.Context, initialState State) (*Context[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, c.name)
	}

	logger := c.logger.With("user", u.LogValue())
	ctx := newContext(c.name, c.name, c.value, c.status, logger, context.Background())
	c.current = ctx
	c.done = make(chan struct{})
	c.lastErr = nil

	c.status.Set(Status{State: initialState})
	return ctx, nil
}

// run executes the activity, publishes the terminal status, and returns the
// run's error. Panics inside Run are converted to errors so a misbehaving
// activity cannot take down the worker.
func (c *Control[T]) run(ctx *Context[T]) error {
	c.status.Update(func(s Status) Status {
		if s.State == StateWaiting {
			s.State = StateRunning
		}
		return s
	})
	ctx.Logger().Info("activity started")

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("activity panicked: %v", r)
			}
		}()
		err = c.activity.Run(ctx)
	}()

	ctx.Finish(err)
	ctx.cancel()

	c.mu.Lock()
	c.lastErr = err
	c.current = nil
	done := c.done
	c.mu.Unlock()

	if err != nil {
		ctx.Logger().Error("activity failed", "error", err)
	} else {
		ctx.Logger().Info("activity finished")
	}
	close(done)
	return err
}

// Cancel requests cancellation of the in-flight run. The run's context is
// cancelled, the state moves to canceling, and an activity implementing
// Canceler gets its hook invoked. Cancelling an idle Control is a no-op.
func (c *Control[T]) Cancel() {
	c.mu.Lock()
	ctx := c.current
	c.mu.Unlock()
	if ctx == nil {
		return
	}

	ctx.cancel()
	c.status.Update(func(s Status) Status {
		if s.State.IsRunning() || s.State == StateWaiting {
			s.State = StateCanceling
		}
		return s
	})
	if canceler, ok := c.activity.(Canceler); ok {
		canceler.Cancel()
	}
	ctx.Logger().Info("activity cancellation requested")
}

// Reset restores the value cell to the initial value and invokes the
// activity's Resetter hook if it has one. Observers see the reset like any
// other update. Resetting while a run is in flight is allowed; the run keeps
// going and may overwrite the value again.
func (c *Control[T]) Reset() {
	c.value.Set(c.initial)
	c.status.Update(func(s Status) Status {
		if !s.State.IsRunning() && s.State != StateWaiting {
			return Status{State: StateIdle}
		}
		return s
	})
	if resetter, ok := c.activity.(Resetter); ok {
		resetter.Reset()
	}
}

// Wait blocks until the in-flight run finishes or ctx is done. It returns
// immediately when no run is in flight. The run's own error is reported by
// LastError, not by Wait.
func (c *Control[T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	running := c.current != nil
	c.mu.Unlock()

	if !running {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is in flight.
func (c *Control[T]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// LastError returns the error the most recent run finished with.
func (c *Control[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Value returns the current value.
func (c *Control[T]) Value() T {
	return c.value.Get()
}

// Status returns the current status.
func (c *Control[T]) Status() Status {
	return c.status.Get()
}

// SubscribeValue registers a listener for value updates. The subscription
// survives across runs.
func (c *Control[T]) SubscribeValue(listener func(T)) (unsubscribe func()) {
	return c.value.Subscribe(listener)
}

// SubscribeStatus registers a listener for status updates. The subscription
// survives across runs.
func (c *Control[T]) SubscribeStatus(listener func(Status)) (unsubscribe func()) {
	return c.status.Subscribe(listener)
}
