package references

import (
	"sort"
	"strings"

	"mercator-hq/gateway/pkg/cel/ast"
)

// Refs summarizes the external inputs of an expression.
type Refs struct {
	// Variables are the free identifiers, sorted. Names bound by a
	// comprehension are not included where they are bound.
	Variables []string

	// Functions are the called function and method names, sorted. Qualified
	// functions appear as "namespace.name". Operators and macros are not
	// included.
	Functions []string

	// Paths are the dotted access paths rooted at free identifiers, in the
	// order they appear.
	Paths []string
}

// HasVariable reports whether the expression reads name.
func (r Refs) HasVariable(name string) bool {
	i := sort.SearchStrings(r.Variables, name)
	return i < len(r.Variables) && r.Variables[i] == name
}

// HasFunction reports whether the expression calls name.
func (r Refs) HasFunction(name string) bool {
	i := sort.SearchStrings(r.Functions, name)
	return i < len(r.Functions) && r.Functions[i] == name
}

// HasPath reports whether evaluating the expression may read the value at
// the dotted path p. That is the case when some recorded path is p, lies
// below p, or is a prefix of p (the whole parent value is used).
func (r Refs) HasPath(p string) bool {
	for _, x := range r.Paths {
		if x == p || strings.HasPrefix(x, p+".") || strings.HasPrefix(p, x+".") {
			return true
		}
	}
	return false
}

// Properties returns every access path in expr, innermost identifier first
// and then the selected fields. Paths appear once, in source order.
//
// Index expressions are collapsed: the key of a["b"].c is dropped and the
// path is recorded as a.c. Comprehension variables are recorded both as
// single-segment paths and as roots of the paths inside the loop. Reserved
// synthetic names are skipped. The expression is never evaluated, so this
// works for expressions that would fail at runtime.
//
// qualified lists the "namespace.name" functions known to the evaluator. The
// namespace of a call to one of them, such as json in json.parse(s), is not
// a variable and yields no path.
func Properties(expr *ast.Expr, qualified ...string) [][]string {
	c := analyze(expr, qualified)
	out := make([][]string, len(c.paths))
	for i, p := range c.paths {
		out[i] = p.segments
	}
	return out
}

// References returns the variables, functions and free paths of expr.
// qualified is interpreted as for Properties.
func References(expr *ast.Expr, qualified ...string) Refs {
	c := analyze(expr, qualified)

	vars := map[string]struct{}{}
	var paths []string
	for _, p := range c.paths {
		if p.bound {
			continue
		}
		vars[p.segments[0]] = struct{}{}
		paths = append(paths, strings.Join(p.segments, "."))
	}
	return Refs{
		Variables: sortedKeys(vars),
		Functions: sortedKeys(c.functions),
		Paths:     paths,
	}
}

type path struct {
	segments []string
	// bound is set while every occurrence is inside a comprehension binding
	// its root.
	bound bool
}

type collector struct {
	paths     []path
	index     map[string]int
	functions map[string]struct{}
	qualified map[string]struct{}
}

func analyze(expr *ast.Expr, qualified []string) *collector {
	c := &collector{
		index:     map[string]int{},
		functions: map[string]struct{}{},
		qualified: make(map[string]struct{}, len(qualified)),
	}
	for _, q := range qualified {
		c.qualified[q] = struct{}{}
	}
	c.walk(expr, nil)
	return c
}

func (c *collector) add(segments []string, scope map[string]bool) {
	if len(segments) == 0 || ast.IsReserved(segments[0]) {
		return
	}
	bound := scope[segments[0]]
	key := strings.Join(segments, ".")
	if i, ok := c.index[key]; ok {
		if !bound {
			c.paths[i].bound = false
		}
		return
	}
	c.index[key] = len(c.paths)
	c.paths = append(c.paths, path{segments: segments, bound: bound})
}

func (c *collector) walk(e *ast.Expr, scope map[string]bool) {
	if e == nil {
		return
	}
	switch e.Type {
	case ast.ExprIdent, ast.ExprSelect:
		c.walkChain(e, scope)

	case ast.ExprCall:
		if e.Function == ast.OpIndex && e.Target == nil && len(e.Args) == 2 {
			c.walkChain(e, scope)
			return
		}
		if !ast.IsOperator(e.Function) && !ast.IsReserved(e.Function) {
			if name, ok := c.qualifiedName(e); ok {
				c.functions[name] = struct{}{}
				for _, a := range e.Args {
					c.walk(a, scope)
				}
				return
			}
			c.functions[e.Function] = struct{}{}
		}
		c.walk(e.Target, scope)
		for _, a := range e.Args {
			c.walk(a, scope)
		}

	case ast.ExprComprehension:
		comp := e.Comprehension
		c.walk(comp.IterRange, scope)
		c.walk(comp.AccuInit, scope)

		inner := make(map[string]bool, len(scope)+3)
		for k, v := range scope {
			inner[k] = v
		}
		for _, name := range []string{comp.IterVar, comp.IterVar2, comp.AccuVar} {
			if name != "" {
				inner[name] = true
				c.add([]string{name}, inner)
			}
		}
		c.walk(comp.LoopCond, inner)
		c.walk(comp.LoopStep, inner)
		c.walk(comp.Result, inner)

	case ast.ExprOptimized:
		c.walk(e.Original, scope)

	default:
		for _, child := range e.Children() {
			c.walk(child, scope)
		}
	}
}

// walkChain records the path of an identifier, select or index chain. Index
// keys are dropped from the path and analyzed on their own. A chain whose
// root is not an identifier, such as a field of a map literal, records
// nothing but its operands are still analyzed.
func (c *collector) walkChain(e *ast.Expr, scope map[string]bool) {
	var keys []*ast.Expr
	var segments []string
	cur := e
loop:
	for {
		switch {
		case cur.Type == ast.ExprOptimized:
			cur = cur.Original
		case cur.Type == ast.ExprSelect:
			segments = append(segments, cur.Field)
			cur = cur.Operand
		case cur.Type == ast.ExprCall && cur.Function == ast.OpIndex && cur.Target == nil && len(cur.Args) == 2:
			keys = append(keys, cur.Args[1])
			cur = cur.Args[0]
		default:
			break loop
		}
	}

	if cur.Type == ast.ExprIdent {
		segments = append(segments, cur.Name)
		reverse(segments)
		c.add(segments, scope)
	} else {
		c.walk(cur, scope)
	}
	for i := len(keys) - 1; i >= 0; i-- {
		c.walk(keys[i], scope)
	}
}

// qualifiedName returns "namespace.name" when call is a registered
// qualified function. As in evaluation, a qualified function takes
// precedence over a variable of the same name as its namespace.
func (c *collector) qualifiedName(call *ast.Expr) (string, bool) {
	if call.Target == nil || len(c.qualified) == 0 {
		return "", false
	}
	ns, ok := dottedName(call.Target)
	if !ok {
		return "", false
	}
	name := ns + "." + call.Function
	_, ok = c.qualified[name]
	return name, ok
}

func dottedName(e *ast.Expr) (string, bool) {
	for e.Type == ast.ExprOptimized {
		e = e.Original
	}
	switch e.Type {
	case ast.ExprIdent:
		return e.Name, true
	case ast.ExprSelect:
		if e.Test {
			return "", false
		}
		prefix, ok := dottedName(e.Operand)
		if !ok {
			return "", false
		}
		return prefix + "." + e.Field, true
	}
	return "", false
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
