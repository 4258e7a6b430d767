package interpreter

import (
	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// FunctionCall describes one invocation of a registered function. Arguments
// are evaluated on demand, which lets functions such as default() observe
// an argument's error instead of failing the whole call.
type FunctionCall struct {
	name     string
	target   *ast.Expr
	args     []*ast.Expr
	resolver Resolver
	ev       *evaluator

	receiver    value.Value
	hasReceiver bool
}

var _ value.Call = (*FunctionCall)(nil)

// Function returns the called function name.
func (c *FunctionCall) Function() string {
	return c.name
}

// HasTarget reports whether the function was called as a method.
func (c *FunctionCall) HasTarget() bool {
	return c.target != nil
}

// TargetExpr returns the receiver expression, or nil for a global call.
func (c *FunctionCall) TargetExpr() *ast.Expr {
	return c.target
}

// ArgExprs returns the unevaluated argument expressions.
func (c *FunctionCall) ArgExprs() []*ast.Expr {
	return c.args
}

// ArgCount returns the number of arguments, not counting the receiver.
func (c *FunctionCall) ArgCount() int {
	return len(c.args)
}

// Target evaluates the receiver. The value is computed once per call.
func (c *FunctionCall) Target() (value.Value, error) {
	if c.hasReceiver {
		return c.receiver, nil
	}
	if c.target == nil {
		return nil, celerrors.MissingArgumentOrTarget(c.name)
	}
	v, err := c.ev.eval(c.target, c.resolver)
	if err != nil {
		return nil, err
	}
	c.receiver, c.hasReceiver = v, true
	return v, nil
}

// Arg evaluates argument i.
func (c *FunctionCall) Arg(i int) (value.Value, error) {
	if i < 0 || i >= len(c.args) {
		return nil, celerrors.MissingArgumentOrTarget(c.name)
	}
	return c.ev.eval(c.args[i], c.resolver)
}

// Args evaluates every argument in order.
func (c *FunctionCall) Args() ([]value.Value, error) {
	out := make([]value.Value, len(c.args))
	for i := range c.args {
		v, err := c.Arg(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Operands returns the receiver, if any, followed by the arguments. It lets a
// function accept both f(x, y) and x.f(y).
func (c *FunctionCall) Operands() ([]value.Value, error) {
	out := make([]value.Value, 0, len(c.args)+1)
	if c.target != nil {
		t, err := c.Target()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	return append(out, args...), nil
}

// OperandCount returns the number of operands, counting the receiver.
func (c *FunctionCall) OperandCount() int {
	if c.target != nil {
		return len(c.args) + 1
	}
	return len(c.args)
}

// ExpectOperands evaluates the operands and checks there are between min and
// max of them.
func (c *FunctionCall) ExpectOperands(min, max int) ([]value.Value, error) {
	n := c.OperandCount()
	if n < min || n > max {
		want := min
		if n > max {
			want = max
		}
		return nil, celerrors.InvalidArgumentCount(want, n)
	}
	return c.Operands()
}

// Eval evaluates expr against resolver with the same context and depth
// accounting as the surrounding evaluation.
func (c *FunctionCall) Eval(expr *ast.Expr, resolver Resolver) (value.Value, error) {
	return c.ev.eval(expr, resolver)
}

// Resolver returns the resolver in effect at the call site.
func (c *FunctionCall) Resolver() Resolver {
	return c.resolver
}

// Context returns the evaluation context.
func (c *FunctionCall) Context() *Context {
	return c.ev.ctx
}

// Error returns a function error attributed to this call.
func (c *FunctionCall) Error(message string) error {
	return celerrors.FunctionError(c.name, message)
}
