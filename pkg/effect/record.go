package effect

import (
	"github.com/google/uuid"
)

// CommitEntry pairs an instance with the slot snapshots its latest render
// produced.
type CommitEntry struct {
	Instance *Instance
	Slots    []SlotSnapshot
}

// CommitRecord lists, in commit order, the instances whose output changed
// or mounted in one completed render pass.
type CommitRecord struct {
	ID      string
	entries []CommitEntry
	seq     uint64
}

// NewCommitRecord returns an empty record with a fresh ID.
func NewCommitRecord(entries ...CommitEntry) *CommitRecord {
	rec := &CommitRecord{ID: uuid.NewString()}
	rec.entries = append(rec.entries, entries...)
	return rec
}

// Add appends an entry. Entries run in the order they were added.
func (r *CommitRecord) Add(e CommitEntry) {
	r.entries = append(r.entries, e)
}

// Len returns the number of entries.
func (r *CommitRecord) Len() int {
	return len(r.entries)
}

// Entries returns the entries in commit order.
func (r *CommitRecord) Entries() []CommitEntry {
	return append([]CommitEntry(nil), r.entries...)
}

// Seq returns the sequence number assigned when the record was committed,
// or 0 before that.
func (r *CommitRecord) Seq() uint64 {
	return r.seq
}

// BeginRender starts recording effects for a render of id. The instance
// must be registered.
func (rt *Runtime) BeginRender(id InstanceID) (*Render, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, err := rt.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if inst.rendering {
		return nil, rt.usageError(id, -1, "E108", "BeginRender called twice without End")
	}
	inst.rendering = true
	inst.pending = nil
	return &Render{rt: rt, inst: inst}, nil
}

// RecordEffect stages an effect registration for the render in progress.
// slotIndex must equal the number of effects already recorded in this
// render. The slot is created on first registration; nothing runs until the
// render is committed.
func (rt *Runtime) RecordEffect(id InstanceID, slotIndex int, cb Callback, deps Deps, opts ...SlotOption) error {
	return rt.recordEffect(id, slotIndex, wrapCallback(cb), deps, opts)
}

// RecordEffectE is RecordEffect for callbacks that report failure by error.
func (rt *Runtime) RecordEffectE(id InstanceID, slotIndex int, fn func() (Cleanup, error), deps Deps, opts ...SlotOption) error {
	var run runFunc = fn
	if fn == nil {
		run = noop
	}
	return rt.recordEffect(id, slotIndex, run, deps, opts)
}

func wrapCallback(cb Callback) runFunc {
	if cb == nil {
		return noop
	}
	return func() (Cleanup, error) {
		return cb(), nil
	}
}

func noop() (Cleanup, error) { return nil, nil }

func (rt *Runtime) recordEffect(id InstanceID, slotIndex int, run runFunc, deps Deps, opts []SlotOption) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, err := rt.lookupLocked(id)
	if err != nil {
		return err
	}
	if !inst.rendering {
		return rt.usageError(id, slotIndex, "E105", "no render in progress")
	}
	if want := len(inst.pending); slotIndex != want {
		return rt.usageError(id, slotIndex, "E101", "got slot %d, want %d", slotIndex, want)
	}
	if inst.commits > 0 && slotIndex >= len(inst.slots) {
		return rt.usageError(id, slotIndex, "E102", "previous render recorded %d effects", len(inst.slots))
	}

	if slotIndex < len(inst.slots) {
		prev := inst.slots[slotIndex]
		if prev.committed && prev.deps.hasList() && deps.hasList() && prev.deps.Len() != deps.Len() {
			return rt.usageError(id, slotIndex, "E104", "previous render had %d dependencies, this render has %d", prev.deps.Len(), deps.Len())
		}
	} else {
		inst.slots = append(inst.slots, &Slot{index: slotIndex})
	}

	snap := SlotSnapshot{Index: slotIndex, Deps: deps, run: run}
	for _, opt := range opts {
		opt(&snap)
	}
	inst.pending = append(inst.pending, snap)
	return nil
}

// EndRender finishes the render of id and returns the entry to add to the
// pass's CommitRecord. The slot count must match the previous committed
// render.
func (rt *Runtime) EndRender(id InstanceID) (CommitEntry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, err := rt.lookupLocked(id)
	if err != nil {
		return CommitEntry{}, err
	}
	if !inst.rendering {
		return CommitEntry{}, rt.usageError(id, -1, "E105", "EndRender without BeginRender")
	}
	inst.rendering = false
	pending := inst.pending
	inst.pending = nil

	if inst.commits > 0 && len(pending) < len(inst.slots) {
		return CommitEntry{}, rt.usageError(id, len(pending), "E103", "previous render recorded %d effects, this render %d", len(inst.slots), len(pending))
	}
	return CommitEntry{Instance: inst, Slots: pending}, nil
}

// AbortRender discards a render in progress, e.g. when the engine's render
// function failed. Slots keep their committed state.
func (rt *Runtime) AbortRender(id InstanceID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if inst, ok := rt.instances[id]; ok {
		inst.rendering = false
		inst.pending = nil
	}
}
