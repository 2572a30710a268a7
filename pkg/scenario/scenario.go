package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	verrors "github.com/vango-dev/effects/internal/errors"
	"github.com/vango-dev/effects/pkg/effect"
)

// Scenario is a scripted sequence of render passes and unmounts.
type Scenario struct {
	Name string `yaml:"name"`
	// Description is free text shown by effectctl validate.
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is exactly one of render, commit or unmount.
type Step struct {
	Render  []Component `yaml:"render,omitempty"`
	Hold    bool        `yaml:"hold,omitempty"`
	Commit  bool        `yaml:"commit,omitempty"`
	Unmount []string    `yaml:"unmount,omitempty"`
}

// Component is one instance rendered by a step.
type Component struct {
	ID      string       `yaml:"id"`
	Effects []EffectSpec `yaml:"effects,omitempty"`
}

// EffectSpec describes one effect registration.
type EffectSpec struct {
	Label string `yaml:"label,omitempty"`
	// Deps nil means no dependency list; an empty list means run once.
	Deps        *[]any `yaml:"deps,omitempty"`
	Cleanup     bool   `yaml:"cleanup,omitempty"`
	Fail        bool   `yaml:"fail,omitempty"`
	FailCleanup bool   `yaml:"failCleanup,omitempty"`
}

// DepsValue converts the YAML dependency list to effect.Deps.
func (e EffectSpec) DepsValue() effect.Deps {
	if e.Deps == nil {
		return effect.Always()
	}
	return effect.On(*e.Deps...)
}

// Kind returns "render", "commit" or "unmount".
func (s Step) Kind() string {
	switch {
	case len(s.Render) > 0:
		return "render"
	case s.Commit:
		return "commit"
	case len(s.Unmount) > 0:
		return "unmount"
	default:
		return ""
	}
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, verrors.New("E142").Wrap(err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the scenario's structure.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return verrors.New("E142").WithDetail("scenario has no steps")
	}
	for i, step := range s.Steps {
		n := 0
		if len(step.Render) > 0 {
			n++
		}
		if step.Commit {
			n++
		}
		if len(step.Unmount) > 0 {
			n++
		}
		if n != 1 {
			return verrors.New("E142").WithDetailf("step %d must have exactly one of render, commit, unmount", i+1)
		}
		if step.Hold && len(step.Render) == 0 {
			return verrors.New("E142").WithDetailf("step %d: hold is only valid on render steps", i+1)
		}
		for _, c := range step.Render {
			if c.ID == "" {
				return verrors.New("E142").WithDetailf("step %d: component without id", i+1)
			}
		}
		for _, id := range step.Unmount {
			if id == "" {
				return verrors.New("E142").WithDetailf("step %d: empty unmount id", i+1)
			}
		}
	}
	return nil
}
