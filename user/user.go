// Package user carries the acting identity and execution-context flags through
// the activity and workflow layers.
//
// A user.Context is an immutable value that is passed explicitly to every
// operation that creates, starts, or queries a resource. There is no ambient
// or goroutine-local state: code that needs to know who is acting, or whether
// it is running inside a workflow, takes the context as a parameter.
package user

// Identity describes an authenticated user.
type Identity struct {
	// URI uniquely identifies the user.
	URI string
	// Label is the human-readable name shown in logs.
	Label string
}

// Execution holds flags describing the context an operation runs in.
type Execution struct {
	// InsideWorkflow is true when the operation was triggered by a workflow
	// task rather than directly by a user.
	InsideWorkflow bool
}

// Context carries the acting identity (optional) and execution flags.
// The zero value is a valid context with no user; Empty is provided for
// readability at call sites.
type Context struct {
	identity  *Identity
	execution Execution
}

// Empty is the context used for operations with no acting user.
var Empty = Context{}

// New returns a context acting as the given identity.
func New(identity *Identity) Context {
	return Context{identity: identity}
}

// User returns the acting identity, if any.
func (c Context) User() (*Identity, bool) {
	return c.identity, c.identity != nil
}

// Execution returns the execution flags.
func (c Context) Execution() Execution {
	return c.execution
}

// WithExecution returns a copy of the context with the execution flags
// replaced. The receiver is never mutated.
func (c Context) WithExecution(e Execution) Context {
	c.execution = e
	return c
}

// LogValue returns the label used when a context appears in log output.
func (c Context) LogValue() string {
	if c.identity == nil {
		return "system"
	}
	return c.identity.Label
}

// IdentityStore resolves identities. Implementations live outside this
// module; the system identity is used when no caller-supplied user applies.
type IdentityStore interface {
	// SystemIdentity returns the well-known internal identity.
	SystemIdentity() *Identity
	// Lookup resolves a user by URI.
	Lookup(uri string) (*Identity, error)
}
