package optimizer

import (
	"mercator-hq/gateway/pkg/cel/ast"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
)

// headerSources are the variables whose headers field the header lookup
// specializes.
var headerSources = map[string]bool{
	"request":  true,
	"response": true,
}

// Builtins returns the built-in specializations chained together.
func Builtins() Optimizer {
	return Chain(HeaderLookup(), RegexPrecompile(), IPPrecompile())
}

// HeaderLookup rewrites request.headers["name"] and request.headers.name
// (and the same on response) into a direct header lookup that does not
// materialize the header collection.
func HeaderLookup() Optimizer {
	return Func(func(e *ast.Expr) *ast.Expr {
		var headers *ast.Expr
		var name string
		switch {
		case e.Type == ast.ExprSelect && !e.Test:
			headers, name = e.Operand.Unwrap(), e.Field
		case e.Type == ast.ExprCall && e.Function == ast.OpIndex && e.Target == nil && len(e.Args) == 2:
			s, ok := e.Args[1].ConstantString()
			if !ok {
				return nil
			}
			headers, name = e.Args[0].Unwrap(), s
		default:
			return nil
		}

		if headers.Type != ast.ExprSelect || headers.Test || headers.Field != "headers" {
			return nil
		}
		source := headers.Operand.Unwrap()
		if source.Type != ast.ExprIdent || !headerSources[source.Name] {
			return nil
		}
		return &ast.Expr{
			Type:     ast.ExprCall,
			Function: interpreter.HeaderFunction,
			Args:     []*ast.Expr{source, constant(value.String(name))},
			Location: e.Location,
		}
	})
}

// RegexPrecompile rewrites s.matches("pattern") and matches(s, "pattern")
// into the reserved matches call, which carries the regex compiled once at
// compile time. The subject is only known at evaluation, so the reserved call
// falls back to the ordinary matches dispatch when it is not a string.
// Invalid patterns are left alone so the error surfaces at evaluation.
func RegexPrecompile() Optimizer {
	return Func(func(e *ast.Expr) *ast.Expr {
		if e.Type != ast.ExprCall || e.Function != "matches" {
			return nil
		}
		var pattern *ast.Expr
		switch {
		case e.Target != nil && len(e.Args) == 1:
			pattern = e.Args[0]
		case e.Target == nil && len(e.Args) == 2:
			pattern = e.Args[1]
		default:
			return nil
		}
		p, ok := pattern.ConstantString()
		if !ok {
			return nil
		}
		re, err := interpreter.NewRegex(p)
		if err != nil {
			return nil
		}

		out := &ast.Expr{
			Type:     ast.ExprCall,
			Target:   e.Target,
			Function: interpreter.MatchesFunction,
			Location: e.Location,
		}
		compiled := constant(value.NewObject(re))
		if e.Target != nil {
			out.Args = []*ast.Expr{compiled, pattern}
		} else {
			out.Args = []*ast.Expr{e.Args[0], compiled, pattern}
		}
		return out
	})
}

// IPPrecompile folds ip("literal") and cidr("literal") into the parsed
// address or prefix.
func IPPrecompile() Optimizer {
	return Func(func(e *ast.Expr) *ast.Expr {
		if e.Type != ast.ExprCall || e.Target != nil || len(e.Args) != 1 {
			return nil
		}
		s, ok := e.Args[0].ConstantString()
		if !ok {
			return nil
		}
		var v value.Value
		switch e.Function {
		case "ip":
			ip, err := interpreter.ParseIP(s)
			if err != nil {
				return nil
			}
			v = value.NewObject(ip)
		case "cidr":
			c, err := interpreter.ParseCIDR(s)
			if err != nil {
				return nil
			}
			v = value.NewObject(c)
		default:
			return nil
		}
		out := constant(v)
		out.Location = e.Location
		return out
	})
}
