package effect

import (
	"context"
	"time"
)

// now is the clock used for event timestamps and durations.
var now = time.Now

// Commit runs the effects of one completed render pass. It must be called
// after the engine has applied the pass's output, once per pass.
//
// Bookkeeping (callback and dependency snapshots) is applied for every
// entry before any callback runs. Then, for each entry in order and each
// slot in registration order, a slot selected by the dependency comparator
// has its previous cleanup invoked and then its callback. Entries whose
// instance was unmounted before being reached are skipped.
//
// Failures are returned as a *CommitError wrapping *CallbackFailure and
// *CleanupFailure values.
func (rt *Runtime) Commit(ctx context.Context, rec *CommitRecord) error {
	if rec == nil {
		return nil
	}
	if !rt.committing.CompareAndSwap(false, true) {
		return rt.usageError("", -1, "E107", "commit %s started during another commit", rec.ID)
	}
	defer rt.committing.Store(false)

	rt.mu.Lock()
	rt.commitSeq++
	rec.seq = rt.commitSeq
	rt.stats.Commits++
	for _, e := range rec.entries {
		rt.applyLocked(e)
	}
	rt.mu.Unlock()

	start := now()
	rt.emit(Event{Kind: EventCommitStart, Commit: rec.ID, Seq: rec.seq, Slot: -1})

	c := &commitRun{
		rt:     rt,
		ctx:    ctx,
		rec:    rec,
		budget: newCommitBudget(rt.maxRuns),
	}
	c.run()

	rt.emit(Event{Kind: EventCommitEnd, Commit: rec.ID, Seq: rec.seq, Slot: -1, Duration: now().Sub(start)})

	if len(c.errs) == 0 {
		return nil
	}
	return &CommitError{ID: rec.ID, Seq: rec.seq, Errors: c.errs}
}

// applyLocked overwrites the slots of e's instance with the render's
// snapshots.
func (rt *Runtime) applyLocked(e CommitEntry) {
	inst := e.Instance
	if inst == nil || inst.unmounted {
		return
	}
	if inst.commits == 0 && len(inst.slots) > len(e.Slots) {
		// Slots created by renders that never committed.
		inst.slots = inst.slots[:len(e.Slots)]
	}
	for _, snap := range e.Slots {
		if snap.Index >= len(inst.slots) {
			continue
		}
		s := inst.slots[snap.Index]
		s.run = snap.run
		s.deps = snap.Deps
		s.label = snap.Label
		s.committed = true
	}
	inst.commits++
}

// commitRun is the state of one Commit call.
type commitRun struct {
	rt     *Runtime
	ctx    context.Context
	rec    *CommitRecord
	budget *commitBudget
	errs   []error
}

func (c *commitRun) run() {
	for _, e := range c.rec.entries {
		if e.Instance == nil {
			continue
		}
		for _, snap := range e.Slots {
			if !c.step(e.Instance, snap.Index) {
				return
			}
		}
	}
}

// step visits one slot. It returns false when the commit must stop.
func (c *commitRun) step(inst *Instance, index int) bool {
	rt := c.rt

	rt.mu.Lock()
	if inst.unmounted || index >= len(inst.slots) {
		rt.mu.Unlock()
		return true
	}
	s := inst.slots[index]
	if !shouldRun(s) {
		rt.stats.Skips++
		deps := s.deps.String()
		rt.mu.Unlock()
		rt.emit(Event{Kind: EventSkip, Commit: c.rec.ID, Seq: c.rec.seq, Instance: inst.id, Slot: index, Label: s.label, Deps: deps})
		return true
	}
	if err := c.budget.checkRun(); err != nil {
		rt.mu.Unlock()
		rt.logger.Warn("effect run budget exceeded, aborting commit",
			"commit", c.rec.ID, "seq", c.rec.seq, "instance", inst.id, "max", c.budget.max)
		c.errs = append(c.errs, err)
		return false
	}
	cleanup := s.cleanup
	s.cleanup = nil
	run, label, deps := s.run, s.label, s.deps
	rt.mu.Unlock()

	if cleanup != nil {
		if err := rt.invokeCleanup(c.ctx, c.rec, inst, s, label, cleanup, PhaseCommit); err != nil {
			c.errs = append(c.errs, err)
		}
	}

	inv := Invocation{
		Kind:     InvokeCallback,
		Phase:    PhaseCommit,
		Commit:   c.rec.ID,
		Seq:      c.rec.seq,
		Instance: inst.id,
		Slot:     index,
		Label:    label,
	}
	var next Cleanup
	start := now()
	err := chain(c.ctx, rt.middleware, inv, func() (err error) {
		defer recoverTo(&err)
		if run == nil {
			return nil
		}
		next, err = run()
		return err
	})
	elapsed := now().Sub(start)

	rt.mu.Lock()
	s.lastDeps = deps
	s.ran = true
	s.runs++
	rt.stats.Runs++
	orphaned := inst.unmounted
	if !orphaned {
		s.cleanup = next
	}
	if err != nil {
		rt.stats.Failures++
	}
	rt.mu.Unlock()

	rt.emit(Event{Kind: EventRun, Commit: c.rec.ID, Seq: c.rec.seq, Instance: inst.id, Slot: index, Label: label, Phase: PhaseCommit, Deps: deps.String(), Err: err, Duration: elapsed})
	if rt.logRuns {
		rt.logger.Debug("effect ran",
			"commit", c.rec.ID, "seq", c.rec.seq, "instance", inst.id, "effect", slotName(index, label),
			"deps", deps.String(), "duration", elapsed)
	}

	if orphaned && next != nil {
		// The callback unmounted its own instance; teardown has already
		// run, so the fresh cleanup is invoked right away.
		if cerr := rt.invokeCleanup(c.ctx, c.rec, inst, s, label, next, PhaseTeardown); cerr != nil {
			c.errs = append(c.errs, cerr)
		}
	}

	if err != nil {
		failure := &CallbackFailure{
			Commit:   c.rec.ID,
			Seq:      c.rec.seq,
			Instance: inst.id,
			Slot:     index,
			Label:    label,
			Err:      err,
		}
		rt.logger.Error("effect callback failed",
			"commit", c.rec.ID, "seq", c.rec.seq, "instance", inst.id, "effect", slotName(index, label), "error", err)
		rt.emit(Event{Kind: EventFailure, Commit: c.rec.ID, Seq: c.rec.seq, Instance: inst.id, Slot: index, Label: label, Phase: PhaseCommit, Err: err})
		c.errs = append(c.errs, failure)
		if rt.policy == FailFast {
			return false
		}
	}
	return true
}

// invokeCleanup runs one cleanup through the middleware chain, converting a
// panic into a *CleanupFailure.
func (rt *Runtime) invokeCleanup(ctx context.Context, rec *CommitRecord, inst *Instance, s *Slot, label string, cleanup Cleanup, phase Phase) error {
	inv := Invocation{
		Kind:     InvokeCleanup,
		Phase:    phase,
		Instance: inst.id,
		Slot:     s.index,
		Label:    label,
	}
	if rec != nil {
		inv.Commit, inv.Seq = rec.ID, rec.seq
	}

	start := now()
	err := chain(ctx, rt.middleware, inv, func() (err error) {
		defer recoverTo(&err)
		cleanup()
		return nil
	})
	elapsed := now().Sub(start)

	rt.mu.Lock()
	rt.stats.Cleanups++
	if err != nil {
		rt.stats.Failures++
	}
	rt.mu.Unlock()

	rt.emit(Event{Kind: EventCleanup, Commit: inv.Commit, Seq: inv.Seq, Instance: inst.id, Slot: s.index, Label: label, Phase: phase, Err: err, Duration: elapsed})
	if err == nil {
		return nil
	}

	rt.logger.Error("effect cleanup failed",
		"instance", inst.id, "effect", slotName(s.index, label), "phase", phase.String(), "error", err)
	rt.emit(Event{Kind: EventFailure, Commit: inv.Commit, Seq: inv.Seq, Instance: inst.id, Slot: s.index, Label: label, Phase: phase, Err: err})
	return &CleanupFailure{
		Instance: inst.id,
		Slot:     s.index,
		Label:    label,
		Phase:    phase,
		Err:      err,
	}
}
