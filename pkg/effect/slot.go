package effect

// Cleanup is returned by an effect callback and invoked before the next run
// of the same effect or when its instance unmounts.
type Cleanup func()

// Callback is the side-effecting function registered for one render.
// It may return a Cleanup, or nil.
type Callback func() Cleanup

// runFunc is the uniform shape every registered callback is stored in.
type runFunc func() (Cleanup, error)

// Slot is the per-call-site bookkeeping for one effect of an instance.
// All fields are guarded by the owning Runtime's mutex.
type Slot struct {
	index int
	label string

	// run and deps are overwritten by every committed render.
	run  runFunc
	deps Deps

	// cleanup is overwritten only when the slot actually runs.
	cleanup Cleanup

	// lastDeps is the snapshot from the last commit in which the slot ran;
	// ran reports whether it is set.
	lastDeps Deps
	ran      bool

	// committed is set once a snapshot has been applied to the slot.
	committed bool

	runs int
}

func (s *Slot) info() SlotInfo {
	info := SlotInfo{
		Index:      s.index,
		Label:      s.label,
		Deps:       s.deps.String(),
		Kind:       s.deps.kind.String(),
		Runs:       s.runs,
		HasCleanup: s.cleanup != nil,
	}
	if s.ran {
		info.LastDeps = s.lastDeps.String()
	}
	return info
}

// SlotSnapshot is one effect registration staged by a render and applied to
// its slot when the render commits.
type SlotSnapshot struct {
	Index int
	Deps  Deps
	Label string

	run runFunc
}

// SlotOption configures a single effect registration.
type SlotOption func(*SlotSnapshot)

// Label names an effect. The label appears in logs, traces, metrics and
// devtools in place of the slot index.
func Label(name string) SlotOption {
	return func(s *SlotSnapshot) {
		s.Label = name
	}
}

// SlotInfo is an immutable view of a slot for diagnostics.
type SlotInfo struct {
	Index      int    `json:"index"`
	Label      string `json:"label,omitempty"`
	Kind       string `json:"kind"`
	Deps       string `json:"deps"`
	LastDeps   string `json:"lastDeps,omitempty"`
	Runs       int    `json:"runs"`
	HasCleanup bool   `json:"hasCleanup"`
}
