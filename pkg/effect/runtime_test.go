package effect_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vango-dev/effects/pkg/effect"
	"github.com/vango-dev/effects/pkg/vtest"
)

func TestScenarioA_RunsWhenDependencyChanges(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	count := 0
	counter := func() vtest.Component {
		n := count
		return vtest.C("counter", func(r *effect.Render) {
			effect.UseEffect(r, n, func(v int) effect.Cleanup {
				rec.Add(fmt.Sprintf("run %d", v))
				return func() { rec.Add(fmt.Sprintf("cleanup %d", v)) }
			}, effect.On(n))
		})
	}

	eng.MustPass(counter())
	vtest.ExpectLog(t, rec, "run 0")

	eng.MustPass(counter())
	vtest.ExpectLog(t, rec, "run 0")

	count = 1
	eng.MustPass(counter())
	vtest.ExpectLog(t, rec, "run 0", "cleanup 0", "run 1")

	info, ok := eng.RT.Instance("counter")
	if !ok {
		t.Fatal("counter not registered")
	}
	if got := info.Slots[0].LastDeps; got != "[1]" {
		t.Errorf("lastDeps = %s, want [1]", got)
	}
	if got := info.Slots[0].Runs; got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestScenarioB_NoDependencyListRunsEveryCommit(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("e", false), effect.Always())
	})
	for i := 0; i < 3; i++ {
		eng.MustPass(comp)
	}

	vtest.ExpectCount(t, rec, "run e", 3)
}

func TestScenarioC_EmptyListRunsOnceAndCleansUpAtUnmount(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("e", true), effect.Once())
	})
	for i := 0; i < 3; i++ {
		eng.MustPass(comp)
	}
	vtest.ExpectLog(t, rec, "run e")

	eng.MustUnmount("c")
	vtest.ExpectLog(t, rec, "run e", "cleanup e")
}

func TestScenarioD_SlotsRunInRegistrationOrder(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("A", true), effect.Always())
		r.Effect(rec.Callback("B", true), effect.Always())
	})
	eng.MustPass(comp)
	eng.MustPass(comp)

	vtest.ExpectLog(t, rec,
		"run A", "run B",
		"cleanup A", "run A",
		"cleanup B", "run B",
	)
}

func TestInstancesRunInCommitOrder(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	mk := func(id string) vtest.Component {
		return vtest.C(effect.InstanceID(id), func(r *effect.Render) {
			r.Effect(rec.Callback(id, false), effect.Always())
		})
	}
	eng.MustPass(mk("child"), mk("parent"))
	eng.MustPass(mk("parent"), mk("child"))

	vtest.ExpectLog(t, rec, "run child", "run parent", "run parent", "run child")
}

func TestEffectsDoNotRunBeforeCommit(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	record, err := eng.Render(vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("e", false), effect.Always())
	}))
	if err != nil {
		t.Fatal(err)
	}
	vtest.ExpectLog(t, rec)

	if err := eng.RT.Commit(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	vtest.ExpectLog(t, rec, "run e")
	if record.Seq() != 1 {
		t.Errorf("Seq() = %d, want 1", record.Seq())
	}
	if record.ID == "" {
		t.Error("record has no ID")
	}
}

func TestTeardown_ReverseOrderExactlyOnce(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("a", true), effect.Always())
		r.Effect(rec.Callback("b", false), effect.Always())
		r.Effect(rec.Callback("c", true), effect.Once())
	})
	eng.MustPass(comp)
	eng.MustPass(comp)
	rec.Reset()

	eng.MustUnmount("c")
	vtest.ExpectLog(t, rec, "cleanup c", "cleanup a")

	if _, ok := eng.RT.Lookup("c"); ok {
		t.Error("instance still registered after unmount")
	}
	if err := eng.Unmount("c"); !errors.Is(err, effect.ErrUnknownInstance) {
		t.Errorf("second unmount err = %v, want ErrUnknownInstance", err)
	}
	vtest.ExpectLog(t, rec, "cleanup c", "cleanup a")
}

func TestUnmountBeforeCommitCancelsEffects(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	record, err := eng.Render(
		vtest.C("gone", func(r *effect.Render) {
			r.Effect(rec.Callback("gone", true), effect.Always())
		}),
		vtest.C("kept", func(r *effect.Render) {
			r.Effect(rec.Callback("kept", false), effect.Always())
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	eng.MustUnmount("gone")

	if err := eng.RT.Commit(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	vtest.ExpectLog(t, rec, "run kept")
}

func TestUnmountDuringCommitSkipsRemainingEffects(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	eng.MustPass(
		vtest.C("first", func(r *effect.Render) {
			r.Effect(func() effect.Cleanup {
				rec.Add("run first")
				if err := eng.RT.Unmount("second"); err != nil {
					t.Errorf("unmount from effect: %v", err)
				}
				return nil
			}, effect.Once())
		}),
		vtest.C("second", func(r *effect.Render) {
			r.Effect(rec.Callback("second", true), effect.Once())
		}),
	)
	vtest.ExpectLog(t, rec, "run first")
}

func TestCallbackUnmountingOwnInstanceCleansUpImmediately(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	eng.MustPass(vtest.C("self", func(r *effect.Render) {
		r.Effect(func() effect.Cleanup {
			rec.Add("run self")
			_ = eng.RT.Unmount("self")
			return func() { rec.Add("cleanup self") }
		}, effect.Once())
		r.Effect(rec.Callback("after", false), effect.Once())
	}))

	vtest.ExpectLog(t, rec, "run self", "cleanup self")
}

func TestReRegisterAfterUnmountStartsFresh(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.OnMount(func() { rec.Add("mount") })
		r.OnUnmount(func() { rec.Add("unmount") })
	})
	eng.MustPass(comp)
	eng.MustPass(comp)
	eng.MustUnmount("c")
	eng.MustPass(comp)

	vtest.ExpectLog(t, rec, "mount", "unmount", "mount")
}

func TestUseEffectCapturesPerRenderSnapshot(t *testing.T) {
	eng := vtest.NewEngine(t)

	type state struct{ Count int }
	var seen []int
	var cleanups []int

	render := func(s state) vtest.Component {
		return vtest.C("c", func(r *effect.Render) {
			effect.UseEffect(r, s, func(snap state) effect.Cleanup {
				seen = append(seen, snap.Count)
				return func() { cleanups = append(cleanups, snap.Count) }
			}, effect.On(s.Count))
		})
	}

	eng.MustPass(render(state{Count: 1}))
	eng.MustPass(render(state{Count: 2}))
	eng.MustPass(render(state{Count: 3}))

	if fmt.Sprint(seen) != "[1 2 3]" {
		t.Errorf("seen = %v, want [1 2 3]", seen)
	}
	// Each cleanup sees the snapshot of the render that produced it.
	if fmt.Sprint(cleanups) != "[1 2]" {
		t.Errorf("cleanups = %v, want [1 2]", cleanups)
	}
}

func TestUsageErrors(t *testing.T) {
	noop := func() effect.Cleanup { return nil }

	t.Run("slot index out of order", func(t *testing.T) {
		rt := effect.New()
		if _, err := rt.Register("c"); err != nil {
			t.Fatal(err)
		}
		if _, err := rt.BeginRender("c"); err != nil {
			t.Fatal(err)
		}
		err := rt.RecordEffect("c", 1, noop, effect.Always())
		expectCode(t, err, "E101")
	})

	t.Run("more effects than previous render", func(t *testing.T) {
		eng := vtest.NewEngine(t)
		n := 1
		comp := vtest.C("c", func(r *effect.Render) {
			for i := 0; i < n; i++ {
				r.Effect(noop, effect.Always())
			}
		})
		eng.MustPass(comp)
		n = 2
		expectCode(t, eng.Pass(comp), "E102")
	})

	t.Run("fewer effects than previous render", func(t *testing.T) {
		eng := vtest.NewEngine(t)
		n := 2
		comp := vtest.C("c", func(r *effect.Render) {
			for i := 0; i < n; i++ {
				r.Effect(noop, effect.Always())
			}
		})
		eng.MustPass(comp)
		n = 1
		expectCode(t, eng.Pass(comp), "E103")
	})

	t.Run("dependency arity changed", func(t *testing.T) {
		eng := vtest.NewEngine(t)
		deps := effect.On(1)
		comp := vtest.C("c", func(r *effect.Render) {
			r.Effect(noop, deps)
		})
		eng.MustPass(comp)
		deps = effect.On(1, 2)
		expectCode(t, eng.Pass(comp), "E104")

		deps = effect.Once()
		expectCode(t, eng.Pass(comp), "E104")

		// Dropping the list entirely is allowed.
		deps = effect.Always()
		if err := eng.Pass(comp); err != nil {
			t.Errorf("switching to Always: %v", err)
		}
	})

	t.Run("record outside render", func(t *testing.T) {
		rt := effect.New()
		if _, err := rt.Register("c"); err != nil {
			t.Fatal(err)
		}
		expectCode(t, rt.RecordEffect("c", 0, noop, effect.Always()), "E105")
	})

	t.Run("begin render twice", func(t *testing.T) {
		rt := effect.New()
		if _, err := rt.Register("c"); err != nil {
			t.Fatal(err)
		}
		if _, err := rt.BeginRender("c"); err != nil {
			t.Fatal(err)
		}
		_, err := rt.BeginRender("c")
		expectCode(t, err, "E108")
	})

	t.Run("nested commit", func(t *testing.T) {
		eng := vtest.NewEngine(t)
		var nested error
		eng.MustPass(vtest.C("c", func(r *effect.Render) {
			r.Effect(func() effect.Cleanup {
				nested = eng.RT.Commit(context.Background(), effect.NewCommitRecord())
				return nil
			}, effect.Once())
		}))
		expectCode(t, nested, "E107")
	})

	t.Run("unknown instance", func(t *testing.T) {
		rt := effect.New()
		err := rt.RecordEffect("missing", 0, noop, effect.Always())
		if !errors.Is(err, effect.ErrUnknownInstance) {
			t.Errorf("err = %v, want ErrUnknownInstance", err)
		}
	})
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	var ue *effect.UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UsageError %s", err, code)
	}
	if ue.Code() != code {
		t.Errorf("code = %s, want %s (%v)", ue.Code(), code, err)
	}
}

func TestPanicOnUsageError(t *testing.T) {
	eng := vtest.NewEngine(t, effect.WithPanicOnUsageError(true))
	eng.MustPass(vtest.C("c", func(r *effect.Render) {}))

	defer func() {
		r := recover()
		ue, ok := r.(*effect.UsageError)
		if !ok {
			t.Fatalf("recovered %v, want *UsageError", r)
		}
		if ue.Code() != "E102" {
			t.Errorf("code = %s, want E102", ue.Code())
		}
	}()
	_ = eng.Pass(vtest.C("c", func(r *effect.Render) {
		r.Effect(func() effect.Cleanup { return nil }, effect.Always())
	}))
	t.Fatal("expected panic")
}

func TestAbortedFirstRenderDoesNotPinSlotCount(t *testing.T) {
	eng := vtest.NewEngine(t)
	noop := func() effect.Cleanup { return nil }

	if _, err := eng.RT.Register("c"); err != nil {
		t.Fatal(err)
	}
	r, err := eng.RT.BeginRender("c")
	if err != nil {
		t.Fatal(err)
	}
	r.Effect(noop, effect.Always())
	r.Effect(noop, effect.Always())
	r.Abort()

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(noop, effect.Always())
	})
	eng.MustPass(comp)
	eng.MustPass(comp)
}

func TestCallbackFailure_FailFast(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Panicking("A"), effect.Once())
		r.Effect(rec.Callback("B", false), effect.Once())
	})
	other := vtest.C("other", func(r *effect.Render) {
		r.Effect(rec.Callback("other", false), effect.Once())
	})

	err := eng.Pass(comp, other)
	var cf *effect.CallbackFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CallbackFailure", err)
	}
	if cf.Instance != "c" || cf.Slot != 0 {
		t.Errorf("failure at %s/%d, want c/0", cf.Instance, cf.Slot)
	}
	var pe *effect.PanicError
	if !errors.As(err, &pe) {
		t.Errorf("err = %v, want wrapped *PanicError", err)
	}
	vtest.ExpectLog(t, rec, "run A")

	// Bookkeeping for the skipped effects was applied; they run next commit
	// because they have never run. The failed effect is not retried.
	eng.MustPass(comp, other)
	vtest.ExpectLog(t, rec, "run A", "run B", "run other")
}

func TestCallbackFailure_Isolate(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t, effect.WithCallbackPolicy(effect.Isolate))

	err := eng.Pass(vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Panicking("A"), effect.Once())
		r.Effect(rec.Callback("B", false), effect.Once())
		r.Effect(rec.Panicking("C"), effect.Once())
	}))

	var ce *effect.CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	if len(ce.Errors) != 2 {
		t.Errorf("got %d failures, want 2", len(ce.Errors))
	}
	vtest.ExpectLog(t, rec, "run A", "run B", "run C")
}

func TestTryEffectErrorSurfaces(t *testing.T) {
	eng := vtest.NewEngine(t)
	boom := errors.New("boom")

	err := eng.Pass(vtest.C("c", func(r *effect.Render) {
		r.TryEffect(func() (effect.Cleanup, error) {
			return nil, boom
		}, effect.Once(), effect.Label("fetch"))
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var cf *effect.CallbackFailure
	if errors.As(err, &cf) && cf.Label != "fetch" {
		t.Errorf("label = %q, want fetch", cf.Label)
	}
}

func TestCleanupFailureBeforeRerunIsIsolated(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.PanickingCleanup("A"), effect.Always())
		r.Effect(rec.Callback("B", true), effect.Always())
	})
	eng.MustPass(comp)

	err := eng.Pass(comp)
	var cf *effect.CleanupFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CleanupFailure", err)
	}
	if cf.Phase != effect.PhaseCommit {
		t.Errorf("phase = %v, want commit", cf.Phase)
	}
	vtest.ExpectLog(t, rec,
		"run A", "run B",
		"cleanup A", "run A", "cleanup B", "run B",
	)
}

func TestTeardownContinuesPastFailingCleanup(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	eng.MustPass(vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("a", true), effect.Once())
		r.Effect(rec.PanickingCleanup("b"), effect.Once())
		r.Effect(rec.Callback("c", true), effect.Once())
	}))
	rec.Reset()

	err := eng.Unmount("c")
	var cf *effect.CleanupFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CleanupFailure", err)
	}
	if cf.Phase != effect.PhaseTeardown || cf.Slot != 1 {
		t.Errorf("failure = %+v, want teardown of slot 1", cf)
	}
	vtest.ExpectLog(t, rec, "cleanup c", "cleanup b", "cleanup a")
}

func TestRunBudgetAbortsRunawayCommit(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t, effect.WithMaxEffectRunsPerCommit(2))

	err := eng.Pass(vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("a", false), effect.Always())
		r.Effect(rec.Callback("b", false), effect.Always())
		r.Effect(rec.Callback("c", false), effect.Always())
	}))
	if !errors.Is(err, effect.ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	vtest.ExpectLog(t, rec, "run a", "run b")
}

func TestMiddlewareWrapsInvocations(t *testing.T) {
	rec := vtest.NewRecorder()
	mw := func(name string) effect.Middleware {
		return effect.MiddlewareFunc(func(ctx context.Context, inv effect.Invocation, next func() error) error {
			rec.Add(fmt.Sprintf("%s>%s %s", name, inv.Kind, inv.Name()))
			err := next()
			rec.Add(fmt.Sprintf("%s<%s", name, inv.Kind))
			return err
		})
	}
	eng := vtest.NewEngine(t, effect.WithMiddleware(mw("outer"), mw("inner")))

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(rec.Callback("e", true), effect.Always(), effect.Label("title"))
	})
	eng.MustPass(comp)
	vtest.ExpectLog(t, rec,
		"outer>callback title", "inner>callback title", "run e", "inner<callback", "outer<callback",
	)

	rec.Reset()
	eng.MustUnmount("c")
	vtest.ExpectLog(t, rec,
		"outer>cleanup title", "inner>cleanup title", "cleanup e", "inner<cleanup", "outer<cleanup",
	)
}

func TestObserverSeesLifecycle(t *testing.T) {
	var kinds []string
	obs := effect.ObserverFunc(func(e effect.Event) {
		kinds = append(kinds, e.Kind.String())
	})
	eng := vtest.NewEngine(t, effect.WithObserver(obs))

	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(func() effect.Cleanup { return func() {} }, effect.Once())
	})
	eng.MustPass(comp)
	eng.MustPass(comp)
	eng.MustUnmount("c")

	want := []string{
		"register", "commit-start", "run", "commit-end",
		"commit-start", "skip", "commit-end",
		"cleanup", "unmount",
	}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Errorf("events = %v\nwant %v", kinds, want)
	}

	st := eng.RT.Stats()
	if st.Commits != 2 || st.Runs != 1 || st.Skips != 1 || st.Cleanups != 1 || st.Unmounts != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCloseTearsDownInReverseRegistrationOrder(t *testing.T) {
	rec := vtest.NewRecorder()
	eng := vtest.NewEngine(t)

	mk := func(id string) vtest.Component {
		return vtest.C(effect.InstanceID(id), func(r *effect.Render) {
			r.Effect(rec.Callback(id, true), effect.Once())
		})
	}
	eng.MustPass(mk("a"), mk("b"), mk("c"))
	rec.Reset()

	if err := eng.RT.Close(); err != nil {
		t.Fatal(err)
	}
	vtest.ExpectLog(t, rec, "cleanup c", "cleanup b", "cleanup a")

	if _, err := eng.RT.Register("d"); !errors.Is(err, effect.ErrClosed) {
		t.Errorf("Register after Close err = %v, want ErrClosed", err)
	}
	if err := eng.RT.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSnapshotsFromOtherGoroutines(t *testing.T) {
	eng := vtest.NewEngine(t)
	comp := vtest.C("c", func(r *effect.Render) {
		r.Effect(func() effect.Cleanup { return nil }, effect.Always())
	})

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = eng.RT.Instances()
				_ = eng.RT.Stats()
			}
		}
	}()

	for i := 0; i < 50; i++ {
		eng.MustPass(comp)
	}
	close(done)
	wg.Wait()

	infos := eng.RT.Instances()
	if len(infos) != 1 || infos[0].Slots[0].Runs != 50 {
		t.Errorf("instances = %+v", infos)
	}
}
