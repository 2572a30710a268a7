// Package scenario replays scripted render passes against an effect.Runtime
// and writes a readable trace of what ran, what was skipped and which
// cleanups fired.
//
// A scenario is a YAML document:
//
//	name: counter
//	steps:
//	  - render:
//	      - id: counter
//	        effects:
//	          - label: title
//	            deps: [0]
//	            cleanup: true
//	  - unmount: [counter]
//
// An effect without a deps key has no dependency list and runs after every
// commit; deps: [] runs once. A render step with hold: true records the
// pass without committing it; a later commit step commits every held pass
// in order.
package scenario
