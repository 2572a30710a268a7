package effect

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	verrors "github.com/vango-dev/effects/internal/errors"
)

// ErrUnknownInstance is returned when an operation names an instance that is
// not registered, or has already been unmounted.
var ErrUnknownInstance = errors.New("effects: unknown instance")

// ErrClosed is returned by operations on a closed Runtime.
var ErrClosed = errors.New("effects: runtime closed")

// ErrBudgetExceeded is returned when a single commit runs more effects than
// the configured per-commit budget. This almost always means effects are
// triggering each other in a loop.
var ErrBudgetExceeded = errors.New("effects: effect run budget exceeded")

// UsageError reports a violation of the registration contract: unstable
// effect order, changing dependency arity, or calls outside a render.
// The runtime never repairs these; slot identity would be lost.
type UsageError struct {
	Instance InstanceID
	// Slot is the offending slot index, or -1 when not slot-specific.
	Slot int
	Err  *verrors.EffectError
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	if e.Slot >= 0 {
		return fmt.Sprintf("effects: instance %q slot %d: %s", e.Instance, e.Slot, e.Err.Error())
	}
	return fmt.Sprintf("effects: instance %q: %s", e.Instance, e.Err.Error())
}

// Unwrap returns the structured error.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// Code returns the registered error code, e.g. "E101".
func (e *UsageError) Code() string {
	return e.Err.Code
}

// CallbackFailure reports an effect callback that panicked or returned an
// error during a commit.
type CallbackFailure struct {
	Commit   string
	Seq      uint64
	Instance InstanceID
	Slot     int
	Label    string
	Err      error
}

// Error implements the error interface.
func (e *CallbackFailure) Error() string {
	return fmt.Sprintf("effects: commit %d: effect %s of %q failed: %v", e.Seq, slotName(e.Slot, e.Label), e.Instance, e.Err)
}

// Unwrap returns the underlying failure.
func (e *CallbackFailure) Unwrap() error {
	return e.Err
}

// CleanupFailure reports a cleanup that panicked, either before a re-run or
// during teardown. Remaining cleanups of the same batch still run.
type CleanupFailure struct {
	Instance InstanceID
	Slot     int
	Label    string
	Phase    Phase
	Err      error
}

// Error implements the error interface.
func (e *CleanupFailure) Error() string {
	return fmt.Sprintf("effects: %s cleanup of effect %s of %q failed: %v", e.Phase, slotName(e.Slot, e.Label), e.Instance, e.Err)
}

// Unwrap returns the underlying failure.
func (e *CleanupFailure) Unwrap() error {
	return e.Err
}

// CommitError aggregates every failure surfaced by one commit.
type CommitError struct {
	ID     string
	Seq    uint64
	Errors []error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("effects: commit %d: %d failures:\n%s", e.Seq, len(e.Errors), strings.Join(msgs, "\n"))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *CommitError) Unwrap() []error {
	return e.Errors
}

// PanicError is a recovered panic from user code.
type PanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// recoverTo converts a panic into a *PanicError stored in *errp.
// Usage: defer recoverTo(&err)
func recoverTo(errp *error) {
	if r := recover(); r != nil {
		*errp = &PanicError{Value: r, Stack: string(debug.Stack())}
	}
}

func slotName(index int, label string) string {
	if label != "" {
		return label
	}
	return fmt.Sprintf("#%d", index)
}

// lifecycleError builds the error returned for operations on instances that
// are not live.
func lifecycleError(id InstanceID, sentinel error) error {
	code := "E120"
	if sentinel == ErrClosed {
		code = "E121"
	}
	return verrors.New(code).WithDetailf("instance %q", id).Wrap(sentinel)
}

const packagePrefix = "github.com/vango-dev/effects/pkg/effect."

// callerLocation returns the first stack frame outside this package, which
// is where the component recorded the offending effect.
func callerLocation() (file string, line int, ok bool) {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, packagePrefix) {
			return frame.File, frame.Line, frame.File != ""
		}
		if !more {
			return "", 0, false
		}
	}
}
