package interpreter

import (
	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

type binaryOp func(a, b value.Value) (value.Value, error)

type unaryOp func(a value.Value) (value.Value, error)

// binaryOps are the strict binary operators: both operands are evaluated
// before the operator runs.
var binaryOps = map[string]binaryOp{
	ast.OpAdd:           value.Add,
	ast.OpSubtract:      value.Sub,
	ast.OpMultiply:      value.Mul,
	ast.OpDivide:        value.Div,
	ast.OpModulo:        value.Rem,
	ast.OpIn:            value.In,
	ast.OpIndex:         value.Index,
	ast.OpEquals:        equals,
	ast.OpNotEquals:     notEquals,
	ast.OpLess:          compareWith(func(c int) bool { return c < 0 }),
	ast.OpLessEquals:    compareWith(func(c int) bool { return c <= 0 }),
	ast.OpGreater:       compareWith(func(c int) bool { return c > 0 }),
	ast.OpGreaterEquals: compareWith(func(c int) bool { return c >= 0 }),
}

var unaryOps = map[string]unaryOp{
	ast.OpLogicalNot: value.Not,
	ast.OpNegate:     value.Negate,
}

func equals(a, b value.Value) (value.Value, error) {
	return value.Bool(value.Equal(a, b)), nil
}

func notEquals(a, b value.Value) (value.Value, error) {
	return value.Bool(!value.Equal(a, b)), nil
}

func compareWith(test func(int) bool) binaryOp {
	return func(a, b value.Value) (value.Value, error) {
		c, err := value.Compare(a, b)
		if err != nil {
			return nil, err
		}
		return value.Bool(test(c)), nil
	}
}

// EvalOperator applies an operator function to already evaluated operands.
// It is used for constant folding and has the same semantics as evaluation.
func EvalOperator(function string, args ...value.Value) (value.Value, error) {
	if op, ok := binaryOps[function]; ok {
		if len(args) != 2 {
			return nil, celerrors.InvalidArgumentCount(2, len(args))
		}
		return op(args[0], args[1])
	}
	if op, ok := unaryOps[function]; ok {
		if len(args) != 1 {
			return nil, celerrors.InvalidArgumentCount(1, len(args))
		}
		return op(args[0])
	}

	switch function {
	case ast.OpLogicalAnd, ast.OpLogicalOr:
		if len(args) != 2 {
			return nil, celerrors.InvalidArgumentCount(2, len(args))
		}
		a, aok := value.Truthy(args[0])
		b, bok := value.Truthy(args[1])
		if !aok || !bok {
			sym, _ := ast.OperatorSymbol(function)
			return nil, celerrors.UnsupportedBinaryOperator(sym,
				value.TypeName(args[0]), value.TypeName(args[1]))
		}
		if function == ast.OpLogicalAnd {
			return value.Bool(a && b), nil
		}
		return value.Bool(a || b), nil

	case ast.OpConditional:
		if len(args) != 3 {
			return nil, celerrors.InvalidArgumentCount(3, len(args))
		}
		cond, ok := value.Truthy(args[0])
		if !ok {
			return nil, celerrors.UnexpectedType(value.TypeName(args[0]), "bool")
		}
		if cond {
			return args[1], nil
		}
		return args[2], nil
	}
	return nil, celerrors.UndeclaredReference(function)
}
