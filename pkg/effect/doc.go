// Package effect implements the post-commit side-effect runtime of a
// component framework.
//
// A render engine registers one Instance per live component occurrence,
// records the effects a render produced, and hands the runtime a
// CommitRecord once that render has been applied to the screen. The runtime
// then decides which effects run, runs prior cleanups first, and tears
// everything down when the engine unmounts the instance.
//
// # Rendering
//
// Effects are recorded through a Render scope which assigns slot indices in
// call order:
//
//	r, _ := rt.BeginRender("counter")
//	effect.UseEffect(r, count, func(n int) effect.Cleanup {
//	    setTitle(fmt.Sprintf("you clicked %d times", n))
//	    return nil
//	}, effect.On(count))
//	entry, err := r.End()
//
//	rec := effect.NewCommitRecord()
//	rec.Add(entry)
//	err = rt.Commit(ctx, rec)
//
// # Dependencies
//
// Deps is a three-way policy:
//
//	effect.Always()   // no dependency list: run after every commit
//	effect.Once()     // empty list: run after the first commit only
//	effect.On(a, b)   // run when a or b changed since the last run
//
// # Ordering
//
// Within a commit, instances run in record order and slots in registration
// order. A slot's previous cleanup always finishes before its callback
// starts. On unmount, cleanups run in reverse registration order.
//
// # Thread Safety
//
// Commits are processed one at a time and never yield. The runtime's own
// bookkeeping is guarded by a mutex that is released while user code runs,
// so snapshots (Instances, Stats) may be taken from other goroutines.
package effect
