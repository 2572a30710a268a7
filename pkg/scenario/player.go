package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vango-dev/effects/pkg/effect"
)

// Result summarizes a played scenario.
type Result struct {
	Stats effect.Stats
	// Errors counts steps that returned an error.
	Errors int
}

// Player drives an effect.Runtime through scenarios, acting as the render
// engine, and writes a trace to its writer.
type Player struct {
	RT *effect.Runtime

	out    io.Writer
	held   []*effect.CommitRecord
	errors int
}

// NewPlayer creates a Player over a fresh Runtime configured with opts.
// The trace observer is installed in addition to any observers in opts.
func NewPlayer(w io.Writer, opts ...effect.Option) *Player {
	p := &Player{out: w}
	opts = append(opts, effect.WithObserver(effect.ObserverFunc(p.trace)))
	p.RT = effect.New(opts...)
	return p
}

// Play runs every step of s in order. Step failures are traced and counted,
// not returned; the returned error is only for context cancellation.
func (p *Player) Play(ctx context.Context, s *Scenario) (Result, error) {
	fmt.Fprintf(p.out, "scenario: %s\n", s.Name)
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return p.result(), err
		}
		p.header(i+1, step)
		if err := p.step(ctx, step); err != nil {
			p.errors++
			p.traceError(err)
		}
	}

	res := p.result()
	fmt.Fprintf(p.out, "summary: commits=%d runs=%d skips=%d cleanups=%d failures=%d errors=%d\n",
		res.Stats.Commits, res.Stats.Runs, res.Stats.Skips, res.Stats.Cleanups, res.Stats.Failures, res.Errors)
	return res, nil
}

// Close tears down every instance still mounted, tracing the cleanups.
func (p *Player) Close() error {
	if p.RT.Len() > 0 {
		fmt.Fprintln(p.out, "close")
	}
	err := p.RT.Close()
	if err != nil {
		p.traceError(err)
	}
	return err
}

func (p *Player) result() Result {
	return Result{Stats: p.RT.Stats(), Errors: p.errors}
}

func (p *Player) header(n int, step Step) {
	switch step.Kind() {
	case "render":
		ids := make([]string, len(step.Render))
		for i, c := range step.Render {
			ids[i] = c.ID
		}
		suffix := ""
		if step.Hold {
			suffix = " (held)"
		}
		fmt.Fprintf(p.out, "step %d: render %s%s\n", n, strings.Join(ids, ", "), suffix)
	case "commit":
		fmt.Fprintf(p.out, "step %d: commit %d held\n", n, len(p.held))
	case "unmount":
		fmt.Fprintf(p.out, "step %d: unmount %s\n", n, strings.Join(step.Unmount, ", "))
	}
}

func (p *Player) step(ctx context.Context, step Step) error {
	switch step.Kind() {
	case "render":
		rec, err := p.render(step.Render)
		if err != nil {
			return err
		}
		if step.Hold {
			p.held = append(p.held, rec)
			return nil
		}
		return p.RT.Commit(ctx, rec)

	case "commit":
		held := p.held
		p.held = nil
		var errs []error
		for _, rec := range held {
			if err := p.RT.Commit(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case "unmount":
		var errs []error
		for _, id := range step.Unmount {
			if err := p.RT.UnmountContext(ctx, effect.InstanceID(id)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

func (p *Player) render(comps []Component) (*effect.CommitRecord, error) {
	rec := effect.NewCommitRecord()
	for _, c := range comps {
		id := effect.InstanceID(c.ID)
		if _, err := p.RT.Register(id); err != nil {
			return nil, err
		}
		r, err := p.RT.BeginRender(id)
		if err != nil {
			return nil, err
		}
		for i, spec := range c.Effects {
			r.Effect(callbackFor(c.ID, i, spec), spec.DepsValue(), effect.Label(spec.Label))
		}
		entry, err := r.End()
		if err != nil {
			return nil, err
		}
		rec.Add(entry)
	}
	return rec, nil
}

// callbackFor builds the scripted callback for one effect.
func callbackFor(id string, index int, spec EffectSpec) effect.Callback {
	name := spec.Label
	if name == "" {
		name = fmt.Sprintf("#%d", index)
	}
	return func() effect.Cleanup {
		if spec.Fail {
			panic(fmt.Sprintf("%s/%s failed", id, name))
		}
		if !spec.Cleanup && !spec.FailCleanup {
			return nil
		}
		return func() {
			if spec.FailCleanup {
				panic(fmt.Sprintf("%s/%s cleanup failed", id, name))
			}
		}
	}
}

// trace is the observer that renders runtime events.
func (p *Player) trace(e effect.Event) {
	switch e.Kind {
	case effect.EventRegister:
		fmt.Fprintf(p.out, "  register %s\n", e.Instance)
	case effect.EventCommitStart:
		fmt.Fprintf(p.out, "  commit %d\n", e.Seq)
	case effect.EventRun:
		fmt.Fprintf(p.out, "  run %s/%s deps=%s\n", e.Instance, e.Name(), e.Deps)
	case effect.EventSkip:
		fmt.Fprintf(p.out, "  skip %s/%s deps=%s\n", e.Instance, e.Name(), e.Deps)
	case effect.EventCleanup:
		fmt.Fprintf(p.out, "  cleanup %s/%s phase=%s\n", e.Instance, e.Name(), e.Phase)
	case effect.EventFailure:
		fmt.Fprintf(p.out, "  fail %s/%s: %v\n", e.Instance, e.Name(), e.Err)
	case effect.EventUnmount:
		fmt.Fprintf(p.out, "  unmount %s\n", e.Instance)
	}
}

func (p *Player) traceError(err error) {
	first, _, _ := strings.Cut(err.Error(), "\n")
	fmt.Fprintf(p.out, "  error: %s\n", first)
}
