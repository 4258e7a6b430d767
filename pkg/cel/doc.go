// Package cel compiles and runs the gateway's policy expressions.
//
// Compilation parses a source string, runs the constant folding pass and
// then an optional specialization pass (see package optimizer), and returns
// an immutable Program. A Program can be cached and shared by any number of
// goroutines:
//
//	p, err := cel.Compile(`request.headers["x-team"] in ["search", "ads"]`)
//	if err != nil {
//		return err // *errors.ParseErrors
//	}
//	v, err := p.Execute(nil, snapshot.Resolver(req, nil, nil))
//
// Program.References reports which variables and paths an expression reads,
// so callers can skip preparing inputs nobody uses.
//
// # Engine
//
// Engine adds a source-keyed LRU program cache, lenient compilation and
// telemetry on top of the package functions. It is built from
// config.ExpressionConfig:
//
//	engine, err := cel.NewEngine(&cfg.Expression, logger,
//		cel.WithMetrics(collector),
//		cel.WithTracer(tracer),
//	)
//	allowed, err := engine.Eval(ctx, rule.Expr, resolver)
//
// In lenient mode a source that fails to parse is logged once and replaced
// by a program whose every execution fails with a FunctionError named
// "compile".
package cel
