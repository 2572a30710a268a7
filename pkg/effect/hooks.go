package effect

// Render is the effect registration scope of one render of one instance.
// Slot indices are assigned in call order. The first registration error is
// kept and returned by End; later registrations are ignored.
//
// A Render is used by the goroutine rendering the instance and must not be
// shared.
type Render struct {
	rt   *Runtime
	inst *Instance
	next int
	err  error
	done bool
}

// Instance returns the ID of the instance being rendered.
func (r *Render) Instance() InstanceID {
	return r.inst.id
}

// Err returns the first registration error, if any.
func (r *Render) Err() error {
	return r.err
}

func (r *Render) record(run runFunc, deps Deps, opts []SlotOption) {
	if r.err != nil || r.done {
		return
	}
	idx := r.next
	r.next++
	r.err = r.rt.recordEffect(r.inst.id, idx, run, deps, opts)
}

// Effect registers cb to run after this render commits, subject to deps.
//
// Example:
//
//	r.Effect(func() effect.Cleanup {
//	    sub := bus.Subscribe(topic)
//	    return sub.Close
//	}, effect.On(topic))
func (r *Render) Effect(cb Callback, deps Deps, opts ...SlotOption) {
	r.record(wrapCallback(cb), deps, opts)
}

// TryEffect is Effect for callbacks that report failure with an error. A
// returned error is surfaced as a *CallbackFailure; a returned cleanup is
// kept even when err is non-nil.
func (r *Render) TryEffect(fn func() (Cleanup, error), deps Deps, opts ...SlotOption) {
	var run runFunc = fn
	if fn == nil {
		run = noop
	}
	r.record(run, deps, opts)
}

// OnMount registers fn to run once, after the first commit of the instance.
func (r *Render) OnMount(fn func(), opts ...SlotOption) {
	r.Effect(func() Cleanup {
		fn()
		return nil
	}, Once(), opts...)
}

// OnUnmount registers fn to run once, when the instance unmounts.
func (r *Render) OnUnmount(fn func(), opts ...SlotOption) {
	r.Effect(func() Cleanup {
		return fn
	}, Once(), opts...)
}

// End finishes the render and returns the entry for the pass's
// CommitRecord.
func (r *Render) End() (CommitEntry, error) {
	if r.done {
		return CommitEntry{}, r.rt.usageError(r.inst.id, -1, "E105", "End called twice")
	}
	r.done = true
	if r.err != nil {
		r.rt.AbortRender(r.inst.id)
		return CommitEntry{}, r.err
	}
	return r.rt.EndRender(r.inst.id)
}

// Abort discards the render; nothing it recorded will commit.
func (r *Render) Abort() {
	if r.done {
		return
	}
	r.done = true
	r.rt.AbortRender(r.inst.id)
}

// UseEffect registers fn bound to the snapshot value captured by this
// render. Each render's callback sees its own snapshot, never a later
// render's state.
//
// Example:
//
//	effect.UseEffect(r, count, func(n int) effect.Cleanup {
//	    doc.SetTitle(fmt.Sprintf("you clicked %d times", n))
//	    return nil
//	}, effect.On(count))
func UseEffect[S any](r *Render, snapshot S, fn func(S) Cleanup, deps Deps, opts ...SlotOption) {
	r.Effect(func() Cleanup {
		return fn(snapshot)
	}, deps, opts...)
}
