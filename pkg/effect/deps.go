package effect

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// DepsKind identifies which re-run policy a dependency list selects.
type DepsKind uint8

const (
	// DepsAlways means no dependency list was supplied: the effect runs
	// after every commit of its instance.
	DepsAlways DepsKind = iota

	// DepsOnce is the empty dependency list: the effect runs after the
	// first commit only.
	DepsOnce

	// DepsOnChange runs the effect whenever any positional value differs
	// from the values captured at its previous run.
	DepsOnChange
)

// String returns a human-readable name for the kind.
func (k DepsKind) String() string {
	switch k {
	case DepsAlways:
		return "always"
	case DepsOnce:
		return "once"
	case DepsOnChange:
		return "on-change"
	default:
		return "unknown"
	}
}

// Deps is the dependency list captured for an effect at one render.
// The zero value is Always().
type Deps struct {
	kind   DepsKind
	values []any
}

// Always returns the "no dependency list" policy.
func Always() Deps {
	return Deps{kind: DepsAlways}
}

// Once returns the empty dependency list.
func Once() Deps {
	return Deps{kind: DepsOnce}
}

// On returns a dependency list over values. On() with no values is Once().
// The values are copied; later mutation of the caller's slice has no effect.
func On(values ...any) Deps {
	if len(values) == 0 {
		return Once()
	}
	v := make([]any, len(values))
	copy(v, values)
	return Deps{kind: DepsOnChange, values: v}
}

// Kind returns the policy selected by d.
func (d Deps) Kind() DepsKind {
	return d.kind
}

// Len returns the arity of the list. Always() has no list and reports -1.
func (d Deps) Len() int {
	if d.kind == DepsAlways {
		return -1
	}
	return len(d.values)
}

// Values returns a copy of the captured values.
func (d Deps) Values() []any {
	if len(d.values) == 0 {
		return nil
	}
	v := make([]any, len(d.values))
	copy(v, d.values)
	return v
}

// String renders the list for logs and devtools.
func (d Deps) String() string {
	switch d.kind {
	case DepsAlways:
		return "always"
	case DepsOnce:
		return "[]"
	}
	parts := make([]string, len(d.values))
	for i, v := range d.values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// hasList reports whether d carries an explicit (possibly empty) list.
func (d Deps) hasList() bool {
	return d.kind != DepsAlways
}

// changedFrom reports whether any positional value of d differs from prev.
// Both lists must have the same arity; arity changes are rejected at
// registration.
func (d Deps) changedFrom(prev Deps) bool {
	if len(d.values) != len(prev.values) {
		return true
	}
	for i := range d.values {
		if !sameValue(d.values[i], prev.values[i]) {
			return true
		}
	}
	return false
}

// shouldRun is the dependency comparator. A slot whose previous run had no
// dependency list counts as never having recorded a snapshot.
func shouldRun(s *Slot) bool {
	hasLast := s.ran && s.lastDeps.hasList()

	switch s.deps.kind {
	case DepsAlways:
		return true
	case DepsOnce:
		return !hasLast
	default:
		if !hasLast {
			return true
		}
		return s.deps.changedFrom(s.lastDeps)
	}
}

// sameValue reports whether a and b are the same value for dependency
// purposes. Comparable values use ==, except that NaN equals NaN. Slices are
// the same when they share backing array and length; maps, channels and
// pointers when they share an address. Non-comparable structs and arrays
// compare element-wise with the same rules. Funcs are never the same.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	return sameReflectValue(va, vb, 0)
}

const sameValueMaxDepth = 4

func sameReflectValue(va, vb reflect.Value, depth int) bool {
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	case reflect.Func:
		return false
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Interface:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		ea, eb := va.Elem(), vb.Elem()
		if ea.Type() != eb.Type() {
			return false
		}
		return sameReflectValue(ea, eb, depth)
	}

	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	if depth >= sameValueMaxDepth {
		return false
	}

	switch va.Kind() {
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !sameReflectValue(va.Field(i), vb.Field(i), depth+1) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < va.Len(); i++ {
			if !sameReflectValue(va.Index(i), vb.Index(i), depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
