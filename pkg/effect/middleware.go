package effect

import "context"

// InvocationKind distinguishes callback runs from cleanup runs.
type InvocationKind uint8

const (
	InvokeCallback InvocationKind = iota + 1
	InvokeCleanup
)

// String returns a human-readable name for the kind.
func (k InvocationKind) String() string {
	switch k {
	case InvokeCallback:
		return "callback"
	case InvokeCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Phase identifies when a cleanup (or callback) was invoked.
type Phase uint8

const (
	// PhaseCommit is a callback run, or the cleanup preceding a re-run.
	PhaseCommit Phase = iota + 1

	// PhaseTeardown is a cleanup run because its instance unmounted.
	PhaseTeardown
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Invocation describes one call into user code.
type Invocation struct {
	Kind     InvocationKind
	Phase    Phase
	Commit   string // commit ID; empty during teardown
	Seq      uint64 // commit sequence number; 0 during teardown
	Instance InstanceID
	Slot     int
	Label    string
}

// Name returns the slot label, or "#<index>" when unlabeled.
func (inv Invocation) Name() string {
	return slotName(inv.Slot, inv.Label)
}

// Middleware wraps every callback and cleanup invocation. Handle must call
// next exactly once and return its error, optionally decorated.
// Panics from user code have already been converted to *PanicError by the
// time next returns.
type Middleware interface {
	Handle(ctx context.Context, inv Invocation, next func() error) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, inv Invocation, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, inv Invocation, next func() error) error {
	return f(ctx, inv, next)
}

// chain composes middleware so that mws[0] is the outermost wrapper.
func chain(ctx context.Context, mws []Middleware, inv Invocation, fn func() error) error {
	h := fn
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func() error {
			return mw.Handle(ctx, inv, next)
		}
	}
	return h()
}
