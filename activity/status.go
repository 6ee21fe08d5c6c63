package activity

import "encoding/json"

// State represents the lifecycle state of an activity execution.
type State int

const (
	// StateIdle indicates the activity has never been started, or has been
	// reset since its last run.
	StateIdle State = iota

	// StateWaiting indicates the activity has been submitted to the pool but
	// has not begun executing yet.
	StateWaiting

	// StateRunning indicates the activity is currently executing.
	StateRunning

	// StateCanceling indicates cancellation was requested and the activity
	// has not finished yet.
	StateCanceling

	// StateFinished indicates the activity has finished execution.
	// The run may have succeeded, failed, or been cancelled - check the
	// Status fields.
	StateFinished
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateCanceling:
		return "canceling"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// IsRunning returns true while the activity is executing or winding down.
func (s State) IsRunning() bool {
	return s == StateRunning || s == StateCanceling
}

// IsFinished returns true once the activity has finished execution.
func (s State) IsFinished() bool {
	return s == StateFinished
}

// Status describes the observable state of one activity execution: lifecycle
// state, a short message for display, progress in [0, 1], and the terminal
// error, if any. Status values are immutable by replacement; the current one
// lives in the status cell of the owning Context.
type Status struct {
	// State is the lifecycle state of the execution.
	State State

	// Message is a short description of what the activity is currently doing.
	Message string

	// Progress is the completion fraction in [0, 1]. For activities with
	// children it is the weighted roll-up of child progress.
	Progress float64

	// Cancelled is true if the run was cancelled before completing.
	Cancelled bool

	// Err is the error the run finished with, nil while running or on
	// success.
	Err error
}

// Failed returns true if the execution finished with an error.
func (s Status) Failed() bool {
	return s.State == StateFinished && s.Err != nil
}

// Succeeded returns true if the execution finished without an error and was
// not cancelled.
func (s Status) Succeeded() bool {
	return s.State == StateFinished && s.Err == nil && !s.Cancelled
}

// MarshalJSON renders the state as its string form and the error as text;
// error values do not survive encoding/json on their own.
func (s Status) MarshalJSON() ([]byte, error) {
	out := struct {
		State     string  `json:"state"`
		Message   string  `json:"message,omitempty"`
		Progress  float64 `json:"progress"`
		Cancelled bool    `json:"cancelled,omitempty"`
		Error     string  `json:"error,omitempty"`
	}{
		State:     s.State.String(),
		Message:   s.Message,
		Progress:  s.Progress,
		Cancelled: s.Cancelled,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}
