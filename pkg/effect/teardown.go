package effect

import (
	"context"
	"errors"
)

// Unmount tears down the instance: every slot's current cleanup runs in
// reverse registration order, then the instance and its slots are released.
// A panicking cleanup does not stop the others; all failures are returned
// joined once the batch completes.
//
// Unmounting an instance whose render has not committed yet cancels its
// pending effects: they never run.
func (rt *Runtime) Unmount(id InstanceID) error {
	return rt.UnmountContext(context.Background(), id)
}

// UnmountContext is Unmount with a context passed to middleware.
func (rt *Runtime) UnmountContext(ctx context.Context, id InstanceID) error {
	rt.mu.Lock()
	inst, err := rt.lookupLocked(id)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	rt.mu.Unlock()
	return rt.teardown(ctx, inst)
}

// Close unmounts every live instance, most recently registered first, and
// rejects further registrations.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	live := rt.liveLocked()
	rt.mu.Unlock()

	var errs []error
	for i := len(live) - 1; i >= 0; i-- {
		if err := rt.teardown(context.Background(), live[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type pendingCleanup struct {
	slot    *Slot
	label   string
	cleanup Cleanup
}

// teardown is the teardown coordinator. The instance is marked unmounted
// before any cleanup runs so that commits in progress stop visiting it.
func (rt *Runtime) teardown(ctx context.Context, inst *Instance) error {
	rt.mu.Lock()
	if inst.unmounted {
		rt.mu.Unlock()
		return nil
	}
	inst.unmounted = true
	inst.rendering = false
	inst.pending = nil

	batch := make([]pendingCleanup, 0, len(inst.slots))
	for i := len(inst.slots) - 1; i >= 0; i-- {
		s := inst.slots[i]
		if s.cleanup != nil {
			batch = append(batch, pendingCleanup{slot: s, label: s.label, cleanup: s.cleanup})
			s.cleanup = nil
		}
	}
	rt.mu.Unlock()

	var errs []error
	for _, p := range batch {
		if err := rt.invokeCleanup(ctx, nil, inst, p.slot, p.label, p.cleanup, PhaseTeardown); err != nil {
			errs = append(errs, err)
		}
	}

	rt.mu.Lock()
	if cur, ok := rt.instances[inst.id]; ok && cur == inst {
		delete(rt.instances, inst.id)
	}
	inst.slots = nil
	rt.stats.Instances = len(rt.instances)
	rt.stats.Unmounts++
	rt.mu.Unlock()

	rt.emit(Event{Kind: EventUnmount, Instance: inst.id, Slot: -1})
	if len(errs) > 0 {
		rt.logger.Error("instance teardown completed with failures",
			"instance", inst.id, "failures", len(errs))
	}
	return errors.Join(errs...)
}
