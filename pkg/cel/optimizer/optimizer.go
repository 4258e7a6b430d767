package optimizer

import (
	"mercator-hq/gateway/pkg/cel/ast"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
)

// Optimizer rewrites single AST nodes. Optimize is called bottom-up, so the
// children of e have already been folded and optimized. It returns the
// replacement for e, or nil to leave e unchanged. Implementations must not
// modify e.
type Optimizer interface {
	Optimize(e *ast.Expr) *ast.Expr
}

// Func adapts a function to the Optimizer interface.
type Func func(e *ast.Expr) *ast.Expr

// Optimize calls f(e).
func (f Func) Optimize(e *ast.Expr) *ast.Expr {
	return f(e)
}

// Chain combines optimizers. For each node the first one that returns a
// replacement wins.
func Chain(opts ...Optimizer) Optimizer {
	return Func(func(e *ast.Expr) *ast.Expr {
		for _, o := range opts {
			if o == nil {
				continue
			}
			if out := o.Optimize(e); out != nil {
				return out
			}
		}
		return nil
	})
}

// Apply runs the default folding pass over root and then opt. Every node opt
// replaces is wrapped in an ExprOptimized node that keeps the original
// subtree and the original node ID. The input tree is not modified.
func Apply(root *ast.Expr, opt Optimizer) *ast.Expr {
	out := Fold(root)
	if opt == nil {
		return out
	}
	out = ast.Rewrite(out, func(e *ast.Expr) *ast.Expr {
		repl := opt.Optimize(e)
		if repl == nil || repl == e {
			return e
		}
		return &ast.Expr{
			ID:        e.ID,
			Type:      ast.ExprOptimized,
			Original:  e,
			Optimized: repl,
			Location:  e.Location,
		}
	})
	return ast.AssignIDs(out)
}

// Fold is the default pass. It turns literals into inline values and replaces
// list and map constructions and operator calls whose operands are all
// constant with the value they evaluate to. Folding an already folded tree
// returns it unchanged.
//
// Operator calls that fail, such as 1 / 0, and map literals with a repeated
// key are left in place so the error is reported at evaluation time. Struct constructions are never folded because
// their constructor is only known to the evaluation context.
func Fold(root *ast.Expr) *ast.Expr {
	return ast.Rewrite(root, fold)
}

func fold(e *ast.Expr) *ast.Expr {
	switch e.Type {
	case ast.ExprLiteral:
		return inline(e, e.Value)

	case ast.ExprList:
		items := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			if !el.IsConstant() {
				return e
			}
			items[i] = el.Value
		}
		return inline(e, value.NewList(items...))

	case ast.ExprMap:
		b := value.NewMapBuilder(len(e.Entries))
		for _, en := range e.Entries {
			if !en.Key.IsConstant() || !en.Value.IsConstant() {
				return e
			}
			k, err := value.KeyFromValue(en.Key.Value)
			if err != nil || b.Has(k) {
				return e
			}
			b.Set(k, en.Value.Value)
		}
		return inline(e, b.Build())

	case ast.ExprCall:
		if e.Target != nil || !ast.IsOperator(e.Function) {
			return e
		}
		args := make([]value.Value, len(e.Args))
		for i, a := range e.Args {
			if !a.IsConstant() {
				return e
			}
			args[i] = a.Value
		}
		v, err := interpreter.EvalOperator(e.Function, args...)
		if err != nil {
			return e
		}
		return inline(e, v)
	}
	return e
}

// inline returns an ExprInline node holding v in place of e.
func inline(e *ast.Expr, v value.Value) *ast.Expr {
	return &ast.Expr{ID: e.ID, Type: ast.ExprInline, Value: v, Location: e.Location}
}

// constant returns a new inline node. Its ID is assigned by Apply.
func constant(v value.Value) *ast.Expr {
	return &ast.Expr{Type: ast.ExprInline, Value: v}
}
