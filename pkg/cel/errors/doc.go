// Package errors defines the two disjoint error categories of the expression runtime.
//
// Compile-time failures are reported as a single *ParseErrors aggregate holding every
// syntax error found in the source, each with a line and column:
//
//	prog, err := cel.Compile(`request.headers["x-user" == 1`)
//	var perrs *errors.ParseErrors
//	if stderrors.As(err, &perrs) {
//	    for _, e := range perrs.Errors {
//	        fmt.Println(e.Location, e.Message)
//	    }
//	}
//
// Evaluation-time failures are *ExecutionError values from a closed set of kinds.
// Callers match on a kind with errors.Is and the exported sentinels:
//
//	_, err := prog.Execute(ctx, resolver)
//	if stderrors.Is(err, errors.ErrNoSuchKey) {
//	    // the field was absent from the input
//	}
//
// A ParseErrors value never satisfies an ExecutionError check, and the reverse also holds.
package errors
