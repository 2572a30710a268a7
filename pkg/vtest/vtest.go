package vtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/vango-dev/effects/pkg/effect"
)

// Component is one instance rendered by a pass.
type Component struct {
	ID     effect.InstanceID
	Render func(r *effect.Render)
}

// C is shorthand for Component{ID: id, Render: render}.
func C(id effect.InstanceID, render func(r *effect.Render)) Component {
	return Component{ID: id, Render: render}
}

// Engine is a minimal render engine that drives an effect.Runtime.
type Engine struct {
	t  testing.TB
	RT *effect.Runtime
}

// NewEngine creates an Engine over a fresh Runtime. The runtime is closed
// when the test ends.
//
// Example:
//
//	eng := vtest.NewEngine(t, effect.WithCallbackPolicy(effect.Isolate))
func NewEngine(t testing.TB, opts ...effect.Option) *Engine {
	t.Helper()
	rt := effect.New(opts...)
	t.Cleanup(func() { _ = rt.Close() })
	return &Engine{t: t, RT: rt}
}

// Render registers (if needed) and renders each component, returning the
// record of the pass without committing it.
func (e *Engine) Render(comps ...Component) (*effect.CommitRecord, error) {
	rec := effect.NewCommitRecord()
	for _, c := range comps {
		if _, err := e.RT.Register(c.ID); err != nil {
			return nil, err
		}
		r, err := e.RT.BeginRender(c.ID)
		if err != nil {
			return nil, err
		}
		if c.Render != nil {
			c.Render(r)
		}
		entry, err := r.End()
		if err != nil {
			return nil, err
		}
		rec.Add(entry)
	}
	return rec, nil
}

// Pass renders the components and commits them as one pass.
func (e *Engine) Pass(comps ...Component) error {
	rec, err := e.Render(comps...)
	if err != nil {
		return err
	}
	return e.RT.Commit(context.Background(), rec)
}

// MustPass is Pass that fails the test on error.
func (e *Engine) MustPass(comps ...Component) {
	e.t.Helper()
	if err := e.Pass(comps...); err != nil {
		e.t.Fatalf("pass failed: %v", err)
	}
}

// Unmount unmounts an instance.
func (e *Engine) Unmount(id effect.InstanceID) error {
	return e.RT.Unmount(id)
}

// MustUnmount is Unmount that fails the test on error.
func (e *Engine) MustUnmount(id effect.InstanceID) {
	e.t.Helper()
	if err := e.RT.Unmount(id); err != nil {
		e.t.Fatalf("unmount %q failed: %v", id, err)
	}
}

// ExpectLog asserts that the recorder's log equals want exactly.
func ExpectLog(t testing.TB, r *Recorder, want ...string) {
	t.Helper()
	got := r.Log()
	if len(got) != len(want) {
		t.Errorf("log mismatch:\n got: %s\nwant: %s", fmtLog(got), fmtLog(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("log entry %d = %q, want %q\n got: %s\nwant: %s", i, got[i], want[i], fmtLog(got), fmtLog(want))
			return
		}
	}
}

// ExpectCount asserts that entry appears exactly n times in the log.
func ExpectCount(t testing.TB, r *Recorder, entry string, n int) {
	t.Helper()
	if got := r.Count(entry); got != n {
		t.Errorf("count(%q) = %d, want %d\nlog: %s", entry, got, n, fmtLog(r.Log()))
	}
}

func fmtLog(log []string) string {
	if len(log) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%s]", strings.Join(log, ", "))
}
