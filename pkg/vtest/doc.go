// Package vtest provides testing helpers for code built on the effects
// runtime.
//
// It plays the part of a render engine: components are plain functions that
// record effects on an effect.Render, and each Pass renders a set of
// components, then commits them in order.
//
// # Quick Start
//
//	func TestTitleEffect(t *testing.T) {
//	    rec := vtest.NewRecorder()
//	    eng := vtest.NewEngine(t)
//
//	    count := 0
//	    title := func(r *effect.Render) {
//	        r.Effect(rec.Callback("title", true), effect.On(count))
//	    }
//
//	    eng.MustPass(vtest.C("counter", title))
//	    count++
//	    eng.MustPass(vtest.C("counter", title))
//	    eng.MustUnmount("counter")
//
//	    vtest.ExpectLog(t, rec, "run title", "cleanup title", "run title", "cleanup title")
//	}
//
// # Recorder
//
// Recorder callbacks append "run <name>" and "cleanup <name>" entries to a
// shared log, which makes ordering assertions one-liners.
package vtest
