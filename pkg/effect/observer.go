package effect

import "time"

// EventKind identifies a runtime event.
type EventKind uint8

const (
	EventRegister EventKind = iota + 1
	EventCommitStart
	EventRun
	EventSkip
	EventCleanup
	EventFailure
	EventCommitEnd
	EventUnmount
)

// String returns a human-readable name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventRegister:
		return "register"
	case EventCommitStart:
		return "commit-start"
	case EventRun:
		return "run"
	case EventSkip:
		return "skip"
	case EventCleanup:
		return "cleanup"
	case EventFailure:
		return "failure"
	case EventCommitEnd:
		return "commit-end"
	case EventUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}

// Event is emitted to observers as the runtime works. Slot is -1 for events
// that do not concern a single slot.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Commit   string
	Seq      uint64
	Instance InstanceID
	Slot     int
	Label    string
	Phase    Phase
	Deps     string
	Err      error
	Duration time.Duration
}

// Name returns the slot label, or "#<index>" when unlabeled.
func (e Event) Name() string {
	return slotName(e.Slot, e.Label)
}

// Observer receives runtime events synchronously, on the goroutine driving
// the runtime. Observers must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }
