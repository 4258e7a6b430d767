package interpreter

import (
	"fmt"
	"sync"

	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// HeaderFunction is the reserved function produced by the header lookup
// optimization: @header(source, "name") reads one header of source.headers.
const HeaderFunction = ast.ReservedPrefix + "header"

// MatchesFunction is the reserved function produced by the regex precompile
// optimization. subject.@matches(re, pattern) and @matches(subject, re,
// pattern) test a string subject against the precompiled re. Any other
// subject is evaluated as subject.matches(pattern) or matches(subject,
// pattern) would be, so a receiver that is itself a regex keeps its meaning.
const MatchesFunction = ast.ReservedPrefix + "matches"

var defaultContext = sync.OnceValue(NewDefaultContext)

// Default returns a shared context with the standard library installed.
func Default() *Context {
	return defaultContext()
}

// evaluator carries per-evaluation state. It is never shared between
// goroutines.
type evaluator struct {
	ctx   *Context
	depth int
}

// Resolve evaluates expr. A nil ctx uses Default() and a nil resolver
// resolves nothing. Evaluation is synchronous and never mutates ctx.
func Resolve(expr *ast.Expr, ctx *Context, resolver Resolver) (value.Value, error) {
	if ctx == nil {
		ctx = Default()
	}
	if resolver == nil {
		resolver = EmptyResolver{}
	}
	ev := &evaluator{ctx: ctx}
	return ev.eval(expr, resolver)
}

func (ev *evaluator) eval(e *ast.Expr, r Resolver) (value.Value, error) {
	if e == nil {
		return nil, celerrors.MissingArgumentOrTarget("expression")
	}

	ev.depth++
	defer func() { ev.depth-- }()
	if ev.ctx.maxDepth > 0 && ev.depth > ev.ctx.maxDepth {
		return nil, celerrors.FunctionError("depth",
			fmt.Sprintf("evaluation exceeds maximum depth %d", ev.ctx.maxDepth))
	}

	switch e.Type {
	case ast.ExprLiteral, ast.ExprInline:
		return e.Value, nil

	case ast.ExprIdent:
		v, ok := r.Resolve(e.Name)
		if !ok {
			return nil, celerrors.UndeclaredReference(e.Name)
		}
		return v, nil

	case ast.ExprSelect:
		return ev.evalSelect(e, r)

	case ast.ExprCall:
		return ev.evalCall(e, r)

	case ast.ExprList:
		items := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := ev.eval(el, r)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return value.NewList(items...), nil

	case ast.ExprMap:
		return ev.evalMap(e, r)

	case ast.ExprStruct:
		return ev.evalStruct(e, r)

	case ast.ExprComprehension:
		return ev.evalComprehension(e.Comprehension, r)

	case ast.ExprOptimized:
		return ev.eval(e.Optimized, r)
	}
	return nil, celerrors.UnexpectedType(e.Type.String(), "expression")
}

func (ev *evaluator) evalSelect(e *ast.Expr, r Resolver) (value.Value, error) {
	operand, err := ev.eval(e.Operand, r)
	if err != nil {
		return nil, err
	}
	if !value.IsContainer(operand) {
		return nil, celerrors.UnsupportedTargetType(value.TypeName(value.Materialize(operand)))
	}
	v, found := value.Field(operand, e.Field)
	if e.Test {
		return value.Bool(found), nil
	}
	if !found {
		return nil, celerrors.NoSuchKey(e.Field)
	}
	return v, nil
}

func (ev *evaluator) evalMap(e *ast.Expr, r Resolver) (value.Value, error) {
	b := value.NewMapBuilder(len(e.Entries))
	for _, en := range e.Entries {
		kv, err := ev.eval(en.Key, r)
		if err != nil {
			return nil, err
		}
		k, err := value.KeyFromValue(value.Materialize(kv))
		if err != nil {
			return nil, err
		}
		if b.Has(k) {
			return nil, celerrors.RepeatedMapKey(k.String())
		}
		v, err := ev.eval(en.Value, r)
		if err != nil {
			return nil, err
		}
		b.Set(k, v)
	}
	return b.Build(), nil
}

func (ev *evaluator) evalStruct(e *ast.Expr, r Resolver) (value.Value, error) {
	ctor, ok := ev.ctx.types[e.TypeName]
	if !ok {
		return nil, celerrors.UnsupportedStructConstruction(e.TypeName)
	}
	b := value.NewMapBuilder(len(e.Entries))
	for _, en := range e.Entries {
		v, err := ev.eval(en.Value, r)
		if err != nil {
			return nil, err
		}
		b.SetString(en.Field, v)
	}
	v, err := ctor(b.Build())
	if err != nil {
		return nil, celerrors.WrapFunctionError(e.TypeName, err)
	}
	return v, nil
}

func (ev *evaluator) evalCall(e *ast.Expr, r Resolver) (value.Value, error) {
	if e.Function == "" {
		return nil, celerrors.UnsupportedFunctionCallIdentifierType("unnamed call")
	}
	if e.Function == MatchesFunction {
		return ev.evalMatches(e, r)
	}
	if e.Target == nil {
		return ev.evalGlobalCall(e, r)
	}

	if ns, ok := namespaceOf(e.Target); ok {
		if fn, ok := ev.ctx.QualifiedFunction(ns, e.Function); ok {
			call := &FunctionCall{name: ns + "." + e.Function, args: e.Args, resolver: r, ev: ev}
			return ev.invoke(fn, call)
		}
	}

	call := &FunctionCall{name: e.Function, target: e.Target, args: e.Args, resolver: r, ev: ev}
	recv, err := call.Target()
	if err != nil {
		return nil, err
	}
	if mp, ok := methodProvider(recv); ok {
		v, handled, err := mp.CallFunction(e.Function, call)
		if handled {
			if err != nil {
				return nil, celerrors.WrapFunctionError(e.Function, err)
			}
			if v == nil {
				return value.NullValue, nil
			}
			return v, nil
		}
	}

	fn, ok := ev.ctx.Function(e.Function)
	if !ok {
		return nil, celerrors.UndeclaredReference(e.Function)
	}
	return ev.invoke(fn, call)
}

func (ev *evaluator) evalGlobalCall(e *ast.Expr, r Resolver) (value.Value, error) {
	switch e.Function {
	case ast.OpLogicalAnd:
		return ev.evalLogical(e, r, true)
	case ast.OpLogicalOr:
		return ev.evalLogical(e, r, false)
	case ast.OpConditional:
		return ev.evalConditional(e, r)
	case HeaderFunction:
		return ev.evalHeader(e, r)
	}

	if op, ok := binaryOps[e.Function]; ok {
		if len(e.Args) != 2 {
			return nil, celerrors.InvalidArgumentCount(2, len(e.Args))
		}
		lhs, err := ev.eval(e.Args[0], r)
		if err != nil {
			return nil, err
		}
		rhs, err := ev.eval(e.Args[1], r)
		if err != nil {
			return nil, err
		}
		return op(lhs, rhs)
	}
	if op, ok := unaryOps[e.Function]; ok {
		if len(e.Args) != 1 {
			return nil, celerrors.InvalidArgumentCount(1, len(e.Args))
		}
		arg, err := ev.eval(e.Args[0], r)
		if err != nil {
			return nil, err
		}
		return op(arg)
	}

	fn, ok := ev.ctx.Function(e.Function)
	if !ok {
		return nil, celerrors.UndeclaredReference(e.Function)
	}
	return ev.invoke(fn, &FunctionCall{name: e.Function, args: e.Args, resolver: r, ev: ev})
}

func (ev *evaluator) invoke(fn Function, call *FunctionCall) (value.Value, error) {
	v, err := fn(call)
	if err != nil {
		return nil, celerrors.WrapFunctionError(call.name, err)
	}
	if v == nil {
		return value.NullValue, nil
	}
	return v, nil
}

// evalLogical implements && and ||. A decisive operand wins even when the
// other one fails, so the operators are commutative with respect to errors.
func (ev *evaluator) evalLogical(e *ast.Expr, r Resolver, isAnd bool) (value.Value, error) {
	if len(e.Args) != 2 {
		return nil, celerrors.InvalidArgumentCount(2, len(e.Args))
	}

	left, lerr := ev.evalBool(e.Args[0], r)
	if lerr == nil && left != isAnd {
		return value.Bool(left), nil
	}
	right, rerr := ev.evalBool(e.Args[1], r)
	if rerr == nil && (right != isAnd || lerr == nil) {
		return value.Bool(right), nil
	}
	if lerr != nil {
		return nil, lerr
	}
	return nil, rerr
}

func (ev *evaluator) evalBool(e *ast.Expr, r Resolver) (bool, error) {
	v, err := ev.eval(e, r)
	if err != nil {
		return false, err
	}
	b, ok := value.Truthy(v)
	if !ok {
		return false, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "bool")
	}
	return b, nil
}

func (ev *evaluator) evalConditional(e *ast.Expr, r Resolver) (value.Value, error) {
	if len(e.Args) != 3 {
		return nil, celerrors.InvalidArgumentCount(3, len(e.Args))
	}
	cond, err := ev.evalBool(e.Args[0], r)
	if err != nil {
		return nil, err
	}
	if cond {
		return ev.eval(e.Args[1], r)
	}
	return ev.eval(e.Args[2], r)
}

func (ev *evaluator) evalHeader(e *ast.Expr, r Resolver) (value.Value, error) {
	if len(e.Args) != 2 {
		return nil, celerrors.InvalidArgumentCount(2, len(e.Args))
	}
	source, err := ev.eval(e.Args[0], r)
	if err != nil {
		return nil, err
	}
	name, err := ev.eval(e.Args[1], r)
	if err != nil {
		return nil, err
	}
	s, ok := name.(value.String)
	if !ok {
		return nil, celerrors.UnexpectedType(value.TypeName(name), "string")
	}
	return LookupHeader(source, string(s))
}

func (ev *evaluator) evalMatches(e *ast.Expr, r Resolver) (value.Value, error) {
	subjectExpr, args := e.Target, e.Args
	if subjectExpr == nil {
		if len(args) != 3 {
			return nil, celerrors.InvalidArgumentCount(3, len(args))
		}
		subjectExpr, args = args[0], args[1:]
	}
	if len(args) != 2 {
		return nil, celerrors.InvalidArgumentCount(2, len(args))
	}

	subject, err := ev.eval(subjectExpr, r)
	if err != nil {
		return nil, err
	}
	if s, ok := value.Materialize(subject).(value.String); ok {
		if obj, ok := args[0].Unwrap().Value.(value.Object); ok {
			if re, ok := obj.Opaque().(*Regex); ok {
				return value.Bool(re.re.MatchString(string(s))), nil
			}
		}
	}

	call := &ast.Expr{Type: ast.ExprCall, Function: "matches", Location: e.Location}
	inline := &ast.Expr{Type: ast.ExprInline, Value: subject, Location: subjectExpr.Location}
	if e.Target != nil {
		call.Target, call.Args = inline, []*ast.Expr{args[1]}
	} else {
		call.Args = []*ast.Expr{inline, args[1]}
	}
	return ev.evalCall(call, r)
}

// HeaderProvider is implemented by dynamic or opaque header collections that
// support direct lookup by name.
type HeaderProvider interface {
	Header(name string) (value.Value, bool)
}

// LookupHeader returns source.headers[name] without materializing the header
// collection when it implements HeaderProvider.
func LookupHeader(source value.Value, name string) (value.Value, error) {
	if !value.IsContainer(source) {
		return nil, celerrors.UnsupportedTargetType(value.TypeName(value.Materialize(source)))
	}
	headers, ok := value.Field(source, "headers")
	if !ok {
		return nil, celerrors.NoSuchKey("headers")
	}

	var hp HeaderProvider
	switch h := headers.(type) {
	case value.Dynamic:
		hp, _ = h.DynamicType().(HeaderProvider)
	case value.Object:
		hp, _ = h.Opaque().(HeaderProvider)
	}
	if hp != nil {
		if v, found := hp.Header(name); found {
			return v, nil
		}
		return nil, celerrors.NoSuchKey(name)
	}
	return value.Index(headers, value.String(name))
}

// methodProvider returns the method table offered by an opaque receiver or
// by the host structure behind a dynamic one.
func methodProvider(v value.Value) (value.MethodProvider, bool) {
	if d, ok := v.(value.Dynamic); ok {
		if mp, ok := d.DynamicType().(value.MethodProvider); ok {
			return mp, true
		}
	}
	if o, ok := value.Materialize(v).(value.Object); ok {
		mp, ok := o.Opaque().(value.MethodProvider)
		return mp, ok
	}
	return nil, false
}

// namespaceOf returns the dotted name of an identifier or identifier chain
// used as a call target.
func namespaceOf(e *ast.Expr) (string, bool) {
	e = e.Unwrap()
	switch e.Type {
	case ast.ExprIdent:
		return e.Name, true
	case ast.ExprSelect:
		if e.Test {
			return "", false
		}
		prefix, ok := namespaceOf(e.Operand)
		if !ok {
			return "", false
		}
		return prefix + "." + e.Field, true
	}
	return "", false
}
