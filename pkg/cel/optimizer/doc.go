// Package optimizer rewrites parsed expressions before evaluation.
//
// Optimization runs two passes, both bottom-up. The default pass (Fold)
// turns literals into inline values and folds constant lists, maps and
// operator calls. The pluggable pass then offers every node to an Optimizer;
// a replacement is recorded as an ExprOptimized node whose Original branch
// keeps the pre-rewrite subtree:
//
//	expr, _ := parser.Parse(`request.headers["x-team"] == "search"`)
//	expr = optimizer.Apply(expr, optimizer.Builtins())
//
// Because folding runs first, an Optimizer always sees constant operands as
// ExprInline nodes, never as ExprLiteral.
//
// Optimizers are pure functions of their input node. Several can be combined
// with Chain without sharing state.
package optimizer
