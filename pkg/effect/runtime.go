package effect

import (
	"log/slog"
	"sync"
	"sync/atomic"

	verrors "github.com/vango-dev/effects/internal/errors"
)

// InstanceID identifies one live component occurrence. IDs are chosen by
// the render engine and may be reused after an unmount.
type InstanceID string

// CallbackPolicy controls what a commit does after an effect callback fails.
type CallbackPolicy int

const (
	// FailFast stops running further effects in the failing commit.
	// Dependency snapshots for every entry have already been applied, so
	// skipped effects run on a later commit when their deps still differ.
	FailFast CallbackPolicy = iota

	// Isolate keeps running the remaining effects and reports all failures
	// together when the commit ends.
	Isolate
)

// String returns the config-file spelling of the policy.
func (p CallbackPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Isolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// Instance is the persistent record of one live component occurrence.
// Its fields are guarded by the owning Runtime's mutex.
type Instance struct {
	id  InstanceID
	seq uint64

	slots   []*Slot
	commits int

	// Render staging.
	rendering bool
	pending   []SlotSnapshot

	unmounted bool
}

// ID returns the engine-assigned identity of the instance.
func (i *Instance) ID() InstanceID {
	return i.id
}

func (i *Instance) info() InstanceInfo {
	info := InstanceInfo{
		ID:        i.id,
		Commits:   i.commits,
		Rendering: i.rendering,
		Slots:     make([]SlotInfo, len(i.slots)),
	}
	for n, s := range i.slots {
		info.Slots[n] = s.info()
	}
	return info
}

// InstanceInfo is an immutable view of an instance for diagnostics.
type InstanceInfo struct {
	ID        InstanceID `json:"id"`
	Commits   int        `json:"commits"`
	Rendering bool       `json:"rendering"`
	Slots     []SlotInfo `json:"slots"`
}

// Stats are cumulative counters for a Runtime.
type Stats struct {
	Instances int    `json:"instances"`
	Commits   uint64 `json:"commits"`
	Runs      uint64 `json:"runs"`
	Skips     uint64 `json:"skips"`
	Cleanups  uint64 `json:"cleanups"`
	Failures  uint64 `json:"failures"`
	Unmounts  uint64 `json:"unmounts"`
}

// Runtime is the component instance registry together with the commit
// scheduler and teardown coordinator that operate on it.
type Runtime struct {
	mu        sync.Mutex
	instances map[InstanceID]*Instance
	nextSeq   uint64
	commitSeq uint64
	closed    bool
	stats     Stats

	committing atomic.Bool

	logger       *slog.Logger
	policy       CallbackPolicy
	panicOnUsage bool
	logRuns      bool
	maxRuns      int
	middleware   []Middleware
	observers    []Observer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. Default: slog.Default().With("component", "effects").
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithCallbackPolicy selects FailFast (default) or Isolate.
func WithCallbackPolicy(p CallbackPolicy) Option {
	return func(rt *Runtime) {
		rt.policy = p
	}
}

// WithPanicOnUsageError makes registration contract violations panic
// instead of returning *UsageError. Intended for development builds.
func WithPanicOnUsageError(enabled bool) Option {
	return func(rt *Runtime) {
		rt.panicOnUsage = enabled
	}
}

// WithLogEffectRuns logs every callback run at debug level.
func WithLogEffectRuns(enabled bool) Option {
	return func(rt *Runtime) {
		rt.logRuns = enabled
	}
}

// WithMaxEffectRunsPerCommit aborts a commit that tries to run more than n
// callbacks. Zero disables the limit.
func WithMaxEffectRunsPerCommit(n int) Option {
	return func(rt *Runtime) {
		rt.maxRuns = n
	}
}

// WithMiddleware appends invocation middleware. The first middleware given
// is the outermost.
func WithMiddleware(mws ...Middleware) Option {
	return func(rt *Runtime) {
		rt.middleware = append(rt.middleware, mws...)
	}
}

// WithObserver appends event observers.
func WithObserver(obs ...Observer) Option {
	return func(rt *Runtime) {
		rt.observers = append(rt.observers, obs...)
	}
}

// New creates an empty Runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		instances: make(map[InstanceID]*Instance),
		logger:    slog.Default().With("component", "effects"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Register returns the live instance for id, creating it on first use.
func (rt *Runtime) Register(id InstanceID) (*Instance, error) {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil, lifecycleError(id, ErrClosed)
	}
	if inst, ok := rt.instances[id]; ok && !inst.unmounted {
		rt.mu.Unlock()
		return inst, nil
	}
	rt.nextSeq++
	inst := &Instance{id: id, seq: rt.nextSeq}
	rt.instances[id] = inst
	rt.stats.Instances = len(rt.instances)
	rt.mu.Unlock()

	rt.emit(Event{Kind: EventRegister, Instance: id, Slot: -1})
	return inst, nil
}

// Lookup returns the live instance for id.
func (rt *Runtime) Lookup(id InstanceID) (*Instance, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.instances[id]
	if !ok || inst.unmounted {
		return nil, false
	}
	return inst, true
}

// Len returns the number of live instances.
func (rt *Runtime) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.instances)
}

// Instances returns snapshots of all live instances in registration order.
func (rt *Runtime) Instances() []InstanceInfo {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	live := rt.liveLocked()
	infos := make([]InstanceInfo, len(live))
	for n, inst := range live {
		infos[n] = inst.info()
	}
	return infos
}

// Instance returns a snapshot of one live instance.
func (rt *Runtime) Instance(id InstanceID) (InstanceInfo, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.instances[id]
	if !ok || inst.unmounted {
		return InstanceInfo{}, false
	}
	return inst.info(), true
}

// Stats returns a copy of the cumulative counters.
func (rt *Runtime) Stats() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.stats
}

// liveLocked returns live instances sorted by registration order.
func (rt *Runtime) liveLocked() []*Instance {
	live := make([]*Instance, 0, len(rt.instances))
	for _, inst := range rt.instances {
		if !inst.unmounted {
			live = append(live, inst)
		}
	}
	sortBySeq(live)
	return live
}

func sortBySeq(insts []*Instance) {
	// Insertion sort: instance counts are small and mostly ordered.
	for i := 1; i < len(insts); i++ {
		for j := i; j > 0 && insts[j].seq < insts[j-1].seq; j-- {
			insts[j], insts[j-1] = insts[j-1], insts[j]
		}
	}
}

// lookupLocked finds a live instance or builds the lifecycle error.
func (rt *Runtime) lookupLocked(id InstanceID) (*Instance, error) {
	inst, ok := rt.instances[id]
	if !ok || inst.unmounted {
		if rt.closed {
			return nil, lifecycleError(id, ErrClosed)
		}
		return nil, lifecycleError(id, ErrUnknownInstance)
	}
	return inst, nil
}

// usageError builds a *UsageError for code, attaching the component's call
// site. In panic mode it panics instead of returning.
func (rt *Runtime) usageError(id InstanceID, slot int, code, format string, args ...any) error {
	ee := verrors.New(code).WithDetailf(format, args...)
	if file, line, ok := callerLocation(); ok {
		ee = ee.WithLocation(file, line, 0)
	}
	err := &UsageError{Instance: id, Slot: slot, Err: ee}
	if rt.panicOnUsage {
		panic(err)
	}
	return err
}

func (rt *Runtime) emit(e Event) {
	if len(rt.observers) == 0 {
		return
	}
	if e.Time.IsZero() {
		e.Time = now()
	}
	for _, o := range rt.observers {
		o.Observe(e)
	}
}
