// Package errors provides structured, actionable error messages for the
// effects runtime.
//
// Every contract violation the runtime can detect has a registered code
// (e.g. "E101") that maps to:
//   - A short message describing the violation
//   - A detailed explanation
//   - A documentation URL
//
// # Categories
//
//   - usage: the render engine or component broke the registration contract
//     (unstable effect order, changing dependency arity)
//   - lifecycle: an operation targeted an instance that is not live
//   - config: invalid configuration files
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("app/counter.go", 42, 0).
//	    WithSuggestion("Register effects unconditionally at the top level of render")
//
//	fmt.Println(err.Format())
package errors
