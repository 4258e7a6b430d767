// Package interpreter evaluates expression ASTs.
//
// Evaluation is a pure recursive walk over an ast.Expr. Free variables are
// looked up through a Resolver and functions through a Context:
//
//	expr, err := parser.Parse(`request.headers["x-team"] in teams`)
//	if err != nil {
//		return err
//	}
//	v, err := interpreter.Resolve(expr, interpreter.Default(), interpreter.MapResolver{
//		"request": req,
//		"teams":   value.NewList(value.String("search")),
//	})
//
// # Function dispatch
//
// A call x.f(args) is resolved in this order:
//
//  1. If x names a namespace registered with AddQualifiedFunction that has f,
//     the qualified function is called with args only.
//  2. If x evaluates to an Object or Dynamic whose host value implements
//     value.MethodProvider and it handles f, its result is used.
//  3. Otherwise the global function f is called with x as the target.
//
// A missing function fails with UndeclaredReference. Errors returned by a
// function that are not already ExecutionErrors are wrapped as FunctionError.
//
// # Concurrency
//
// A Context must be fully populated before the first evaluation and is
// read-only afterwards, so one Context can serve any number of concurrent
// evaluations. Evaluation performs no I/O and cannot be cancelled; callers
// bound it through input size and WithMaxDepth.
package interpreter
