package parser

import (
	"slices"

	"mercator-hq/gateway/pkg/cel/ast"
	"mercator-hq/gateway/pkg/cel/value"
)

// receiverMacros lists the argument counts each receiver macro accepts.
var receiverMacros = map[string][]int{
	string(ast.MacroAll):       {2, 3},
	string(ast.MacroExists):    {2, 3},
	string(ast.MacroExistsOne): {2, 3},
	"existsOne":                {2, 3},
	string(ast.MacroMap):       {2, 3},
	string(ast.MacroFilter):    {2},
	string(ast.MacroWith):      {2},
}

// expandMacro rewrites macro calls into Select tests and Comprehension nodes.
// It reports false when fn is not a macro call, leaving it an ordinary call.
func (s *state) expandMacro(offset int, target *ast.Expr, fn string, args []*ast.Expr) (*ast.Expr, bool) {
	if target == nil {
		if fn == "has" {
			return s.expandHas(offset, args), true
		}
		return nil, false
	}

	counts, ok := receiverMacros[fn]
	if !ok || !slices.Contains(counts, len(args)) {
		return nil, false
	}
	macro := ast.MacroKind(fn)
	if fn == "existsOne" {
		macro = ast.MacroExistsOne
	}

	comp := &ast.Comprehension{
		Macro:     macro,
		AccuVar:   ast.AccumulatorName,
		IterRange: target,
	}

	var ok1, ok2 bool
	comp.IterVar, ok1 = s.iterVar(args[0], fn)
	if !ok1 {
		return s.errorExpr(), true
	}

	switch macro {
	case ast.MacroAll, ast.MacroExists, ast.MacroExistsOne:
		if len(args) == 3 {
			comp.IterVar2, ok2 = s.iterVar(args[1], fn)
			if !ok2 {
				return s.errorExpr(), true
			}
			if comp.IterVar2 == comp.IterVar {
				s.errorf(args[1].Location, "%s() variables must differ, got '%s' twice", fn, comp.IterVar)
				return s.errorExpr(), true
			}
		}
		comp.LoopStep = args[len(args)-1]
		switch macro {
		case ast.MacroAll:
			comp.AccuInit = s.literal(offset, value.True)
		case ast.MacroExists:
			comp.AccuInit = s.literal(offset, value.False)
		default:
			comp.AccuInit = s.literal(offset, value.Int(0))
		}

	case ast.MacroMap:
		if len(args) == 3 {
			comp.LoopCond = args[1]
		}
		comp.LoopStep = args[len(args)-1]
		comp.AccuInit = s.emptyList(offset)

	case ast.MacroFilter:
		comp.LoopCond = args[1]
		comp.AccuInit = s.emptyList(offset)

	case ast.MacroWith:
		// e.with(x, body) binds x to e for body.
		comp.LoopStep = args[1]
		comp.AccuInit = s.literal(offset, value.NullValue)
	}

	result := s.newExpr(ast.ExprIdent, offset)
	result.Name = ast.AccumulatorName
	comp.Result = result

	e := s.newExpr(ast.ExprComprehension, offset)
	e.Comprehension = comp
	return e, true
}

// expandHas turns has(a.b) into a presence test on the select node.
func (s *state) expandHas(offset int, args []*ast.Expr) *ast.Expr {
	if len(args) != 1 {
		s.errorf(offset, "has() takes exactly one argument, got %d", len(args))
		return s.errorExpr()
	}
	sel := args[0]
	if sel.Type != ast.ExprSelect || sel.Test {
		s.errorf(offset, "invalid argument to has() macro: expected a field selection")
		return s.errorExpr()
	}
	test := *sel
	test.Test = true
	return &test
}

func (s *state) iterVar(e *ast.Expr, fn string) (string, bool) {
	if e.Type != ast.ExprIdent {
		s.errorf(e.Location, "argument to %s() must be a simple name", fn)
		return "", false
	}
	return e.Name, true
}

func (s *state) literal(offset int, v value.Value) *ast.Expr {
	lit := s.newExpr(ast.ExprLiteral, offset)
	lit.Value = v
	return lit
}

func (s *state) emptyList(offset int) *ast.Expr {
	return s.newExpr(ast.ExprList, offset)
}
