package scenario

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	verrors "github.com/vango-dev/effects/internal/errors"
	"github.com/vango-dev/effects/pkg/effect"
)

func playFile(t *testing.T, name string) (string, Result) {
	t.Helper()

	s, err := Load(filepath.Join("testdata", name+".yaml"))
	if err != nil {
		t.Fatalf("Load(%s): %v", name, err)
	}

	var buf bytes.Buffer
	p := NewPlayer(&buf)
	res, err := p.Play(context.Background(), s)
	if err != nil {
		t.Fatalf("Play(%s): %v", name, err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close(%s): %v", name, err)
	}
	return buf.String(), res
}

func TestPlayer_Golden(t *testing.T) {
	for _, name := range []string{"counter", "ordering", "failure"} {
		t.Run(name, func(t *testing.T) {
			out, _ := playFile(t, name)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, name, []byte(out))
		})
	}
}

func TestPlayer_CounterResult(t *testing.T) {
	_, res := playFile(t, "counter")

	want := effect.Stats{Commits: 3, Runs: 2, Skips: 1, Cleanups: 2, Unmounts: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
	if res.Errors != 0 {
		t.Errorf("errors = %d, want 0", res.Errors)
	}
}

func TestPlayer_IsolatePolicyRunsRemainingEffects(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "failure.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	p := NewPlayer(&buf, effect.WithCallbackPolicy(effect.Isolate))
	res, err := p.Play(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "run form/focus deps=[]") {
		t.Errorf("focus effect should run under isolate policy:\n%s", buf.String())
	}
	if res.Stats.Runs != 2 || res.Stats.Failures != 1 {
		t.Errorf("stats = %+v, want 2 runs and 1 failure", res.Stats)
	}
}

func TestPlayer_CancelledContext(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "counter.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	p := NewPlayer(&buf)
	if _, err := p.Play(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("Play err = %v, want context.Canceled", err)
	}
	if p.RT.Stats().Commits != 0 {
		t.Error("no step should run after cancellation")
	}
}

func TestPlayer_UnknownUnmountIsTraced(t *testing.T) {
	s, err := Parse([]byte(`
name: stray
steps:
  - unmount: [ghost]
`))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	res, err := NewPlayer(&buf).Play(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Errors != 1 {
		t.Errorf("errors = %d, want 1", res.Errors)
	}
	if !strings.Contains(buf.String(), "error: E120") {
		t.Errorf("trace should report E120:\n%s", buf.String())
	}
}

func TestParse_DepsForms(t *testing.T) {
	s, err := Parse([]byte(`
name: deps
steps:
  - render:
      - id: c
        effects:
          - label: always
          - label: once
            deps: []
          - label: keyed
            deps: [1, "a"]
`))
	if err != nil {
		t.Fatal(err)
	}

	effects := s.Steps[0].Render[0].Effects
	tests := []struct {
		label string
		kind  effect.DepsKind
		str   string
	}{
		{"always", effect.DepsAlways, "always"},
		{"once", effect.DepsOnce, "[]"},
		{"keyed", effect.DepsOnChange, "[1 a]"},
	}
	for i, tt := range tests {
		d := effects[i].DepsValue()
		if effects[i].Label != tt.label {
			t.Fatalf("effect %d label = %q, want %q", i, effects[i].Label, tt.label)
		}
		if d.Kind() != tt.kind || d.String() != tt.str {
			t.Errorf("%s: deps = %v %s, want %v %s", tt.label, d.Kind(), d, tt.kind, tt.str)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no steps", "name: empty\n"},
		{"bad yaml", "name: [\n"},
		{"two kinds", "name: x\nsteps:\n  - commit: true\n    unmount: [a]\n"},
		{"empty step", "name: x\nsteps:\n  - {}\n"},
		{"hold without render", "name: x\nsteps:\n  - commit: true\n    hold: true\n"},
		{"missing id", "name: x\nsteps:\n  - render:\n      - effects: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			var ee *verrors.EffectError
			if !verrors.As(err, &ee) || ee.Code != "E142" {
				t.Errorf("err = %v, want E142", err)
			}
		})
	}
}
