package vtest

import (
	"strings"
	"sync"

	"github.com/vango-dev/effects/pkg/effect"
)

// Recorder logs effect callback and cleanup invocations in order.
type Recorder struct {
	mu  sync.Mutex
	log []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends an arbitrary entry to the log.
func (r *Recorder) Add(entry string) {
	r.mu.Lock()
	r.log = append(r.log, entry)
	r.mu.Unlock()
}

// Callback returns a callback that logs "run <name>" and, when withCleanup
// is set, returns a cleanup that logs "cleanup <name>".
func (r *Recorder) Callback(name string, withCleanup bool) effect.Callback {
	return func() effect.Cleanup {
		r.Add("run " + name)
		if !withCleanup {
			return nil
		}
		return func() {
			r.Add("cleanup " + name)
		}
	}
}

// Panicking returns a callback that logs "run <name>" and then panics.
func (r *Recorder) Panicking(name string) effect.Callback {
	return func() effect.Cleanup {
		r.Add("run " + name)
		panic(name + " failed")
	}
}

// PanickingCleanup returns a callback whose cleanup logs
// "cleanup <name>" and then panics.
func (r *Recorder) PanickingCleanup(name string) effect.Callback {
	return func() effect.Cleanup {
		r.Add("run " + name)
		return func() {
			r.Add("cleanup " + name)
			panic(name + " cleanup failed")
		}
	}
}

// Log returns a copy of the entries recorded so far.
func (r *Recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

// Count returns how many entries equal entry.
func (r *Recorder) Count(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.log {
		if e == entry {
			n++
		}
	}
	return n
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.log = nil
	r.mu.Unlock()
}

// String renders the log one entry per line.
func (r *Recorder) String() string {
	return strings.Join(r.Log(), "\n")
}
