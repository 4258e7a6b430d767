package optimizer

import (
	"testing"

	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/parser"
	"mercator-hq/gateway/pkg/cel/value"
)

func mustParse(t testing.TB, src string) *ast.Expr {
	t.Helper()
	expr, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", src, err)
	}
	return expr
}

// find returns the first node matching fn in evaluation order.
func find(root *ast.Expr, fn func(*ast.Expr) bool) *ast.Expr {
	var out *ast.Expr
	ast.Inspect(root, func(e *ast.Expr) bool {
		if out != nil {
			return false
		}
		if fn(e) {
			out = e
			return false
		}
		return true
	})
	return out
}

func countType(root *ast.Expr, typ ast.ExprType) int {
	n := 0
	ast.Inspect(root, func(e *ast.Expr) bool {
		if e.Type == typ {
			n++
		}
		return true
	})
	return n
}

// TestFold tests the default folding pass
func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantType ast.ExprType
		want     value.Value
	}{
		{name: "literal", src: "1", wantType: ast.ExprInline, want: value.Int(1)},
		{name: "list", src: "[1, 2, 3]", wantType: ast.ExprInline,
			want: value.NewList(value.Int(1), value.Int(2), value.Int(3))},
		{name: "nested list", src: "[[1], ['a']]", wantType: ast.ExprInline,
			want: value.NewList(value.NewList(value.Int(1)), value.NewList(value.String("a")))},
		{name: "map", src: "{'a': 1, 'b': 2}", wantType: ast.ExprInline,
			want: value.FromGo(map[string]any{"a": 1, "b": 2})},
		{name: "repeated key left alone", src: "{'a': 1, 'a': 2}", wantType: ast.ExprMap},
		{name: "arithmetic", src: "1 + 2 * 3", wantType: ast.ExprInline, want: value.Int(7)},
		{name: "comparison", src: "'a' < 'b'", wantType: ast.ExprInline, want: value.True},
		{name: "membership", src: "2 in [1, 2]", wantType: ast.ExprInline, want: value.True},
		{name: "logical", src: "true && !false", wantType: ast.ExprInline, want: value.True},
		{name: "conditional", src: "1 < 2 ? 'yes' : 'no'", wantType: ast.ExprInline, want: value.String("yes")},
		{name: "index", src: "[10, 20][1]", wantType: ast.ExprInline, want: value.Int(20)},
		{name: "division by zero left alone", src: "1 / 0", wantType: ast.ExprCall},
		{name: "variable element", src: "[1, x]", wantType: ast.ExprList},
		{name: "variable operand", src: "x + 1", wantType: ast.ExprCall},
		{name: "list key left alone", src: "{[1]: 2}", wantType: ast.ExprMap},
		{name: "function call left alone", src: "size('abc')", wantType: ast.ExprCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fold(mustParse(t, tt.src))
			if got.Type != tt.wantType {
				t.Fatalf("Fold(%q).Type = %v, want %v", tt.src, got.Type, tt.wantType)
			}
			if tt.want != nil && !value.Equal(got.Value, tt.want) {
				t.Errorf("Fold(%q).Value = %v, want %v", tt.src, got.Value, tt.want)
			}
			if n := countType(got, ast.ExprLiteral); n != 0 {
				t.Errorf("Fold(%q) left %d literal nodes", tt.src, n)
			}
		})
	}
}

// TestFold_Idempotent tests that folding a folded tree changes nothing
func TestFold_Idempotent(t *testing.T) {
	for _, src := range []string{"[1, 2, 3]", "x.y + 1 == 2", "items.all(i, i > 0)", "{'a': [1, x]}"} {
		once := Fold(mustParse(t, src))
		if again := Fold(once); again != once {
			t.Errorf("Fold(Fold(%q)) returned a new tree", src)
		}
	}
}

// TestFold_KeepsInput tests that folding never modifies its input
func TestFold_KeepsInput(t *testing.T) {
	root := mustParse(t, "[1, 2] + [x]")
	before := ast.Format(root)
	rootID := root.ID

	out := Fold(root)
	if out == root {
		t.Fatal("Fold() returned the input tree")
	}
	if got := ast.Format(root); got != before {
		t.Errorf("input changed: %q, want %q", got, before)
	}
	if countType(root, ast.ExprLiteral) == 0 {
		t.Error("input literals were replaced in place")
	}
	if out.ID != rootID {
		t.Errorf("folded root ID = %d, want %d", out.ID, rootID)
	}
}

// TestApply_PassOrdering tests that pluggable optimizers see folded operands
func TestApply_PassOrdering(t *testing.T) {
	var seen []ast.ExprType
	spy := Func(func(e *ast.Expr) *ast.Expr {
		if e.Type == ast.ExprCall && e.Function == "lookup" {
			for _, a := range e.Args {
				seen = append(seen, a.Type)
			}
		}
		return nil
	})

	Apply(mustParse(t, "lookup('name', 1 + 1, [1, 2])"), spy)

	if len(seen) != 3 {
		t.Fatalf("optimizer saw %d arguments, want 3", len(seen))
	}
	for i, typ := range seen {
		if typ != ast.ExprInline {
			t.Errorf("argument %d type = %v, want inline", i, typ)
		}
	}
}

// TestApply_WrapsReplacement tests the Optimized node recorded for a rewrite
func TestApply_WrapsReplacement(t *testing.T) {
	root := mustParse(t, "double(x) + 1")
	call := find(root, func(e *ast.Expr) bool { return e.Function == "double" })
	callID := call.ID

	opt := Func(func(e *ast.Expr) *ast.Expr {
		if e.Type != ast.ExprCall || e.Function != "double" {
			return nil
		}
		return &ast.Expr{
			Type:     ast.ExprCall,
			Function: ast.OpMultiply,
			Args:     []*ast.Expr{e.Args[0], constant(value.Int(2))},
		}
	})

	out := Apply(root, opt)
	wrapped := find(out, func(e *ast.Expr) bool { return e.Type == ast.ExprOptimized })
	if wrapped == nil {
		t.Fatal("no optimized node in result")
	}
	if wrapped.ID != callID {
		t.Errorf("optimized node ID = %d, want %d", wrapped.ID, callID)
	}
	if wrapped.Original.Function != "double" {
		t.Errorf("Original.Function = %q, want double", wrapped.Original.Function)
	}
	if got := ast.Format(out); got != "(double(x) + 1)" {
		t.Errorf("Format() = %q, want original source form", got)
	}

	ast.Inspect(wrapped.Optimized, func(e *ast.Expr) bool {
		if e.ID == 0 {
			t.Errorf("node %v has no ID", e.Type)
		}
		return true
	})

	v, err := interpreter.Resolve(out, nil, interpreter.MapResolver{"x": value.Int(4)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !value.Equal(v, value.Int(9)) {
		t.Errorf("Resolve() = %v, want 9", v)
	}
}

// TestApply_SharedReplacementNodes tests that nodes an optimizer reuses
// across replacements keep their own ID
func TestApply_SharedReplacementNodes(t *testing.T) {
	two := constant(value.Int(2))
	opt := Func(func(e *ast.Expr) *ast.Expr {
		if e.Type != ast.ExprCall || e.Function != "double" {
			return nil
		}
		return &ast.Expr{
			Type:     ast.ExprCall,
			Function: ast.OpMultiply,
			Args:     []*ast.Expr{e.Args[0], two},
		}
	})

	out := Apply(mustParse(t, "double(x) + double(y)"), opt)

	if two.ID != 0 {
		t.Errorf("shared node ID = %d, want it left at 0", two.ID)
	}
	seen := map[int64]bool{}
	ast.Inspect(out, func(e *ast.Expr) bool {
		if e.Type == ast.ExprOptimized {
			ast.Inspect(e.Optimized, func(c *ast.Expr) bool {
				if c.ID == 0 || seen[c.ID] {
					t.Errorf("node %v has ID %d", c.Type, c.ID)
				}
				seen[c.ID] = true
				return true
			})
			return false
		}
		return true
	})

	v, err := interpreter.Resolve(out, nil, interpreter.MapResolver{"x": value.Int(4), "y": value.Int(5)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !value.Equal(v, value.Int(18)) {
		t.Errorf("Resolve() = %v, want 18", v)
	}
}

// TestChain tests that the first replacement wins
func TestChain(t *testing.T) {
	var calls []string
	named := func(name string, hit bool) Optimizer {
		return Func(func(e *ast.Expr) *ast.Expr {
			if e.Type != ast.ExprIdent {
				return nil
			}
			calls = append(calls, name)
			if !hit {
				return nil
			}
			return constant(value.String(name))
		})
	}

	out := Apply(mustParse(t, "x"), Chain(named("a", false), nil, named("b", true), named("c", true)))
	if out.Type != ast.ExprOptimized {
		t.Fatalf("root type = %v, want optimized", out.Type)
	}
	if got := out.Optimized.Value; !value.Equal(got, value.String("b")) {
		t.Errorf("replacement = %v, want b", got)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

// TestHeaderLookup tests the header access specialization
func TestHeaderLookup(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		rewrite bool
	}{
		{name: "index", src: "request.headers['x-team']", rewrite: true},
		{name: "select", src: "response.headers.etag", rewrite: true},
		{name: "other variable", src: "other.headers['x-team']"},
		{name: "other field", src: "request.body['x-team']"},
		{name: "dynamic name", src: "request.headers[name]"},
		{name: "has test", src: "has(request.headers.etag)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(mustParse(t, tt.src), HeaderLookup())
			got := find(out, func(e *ast.Expr) bool { return e.Function == interpreter.HeaderFunction }) != nil
			if got != tt.rewrite {
				t.Errorf("rewritten = %v, want %v", got, tt.rewrite)
			}
		})
	}
}

// TestRegexPrecompile tests compile-time regex construction
func TestRegexPrecompile(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		rewrite  bool
		compiled int
	}{
		{name: "method", src: "model.matches('^gpt-')", rewrite: true, compiled: 0},
		{name: "global", src: "matches(model, '^gpt-')", rewrite: true, compiled: 1},
		{name: "regex receiver", src: "regex('^a+$').matches('aaa')", rewrite: true, compiled: 0},
		{name: "dynamic pattern", src: "model.matches(pattern)"},
		{name: "invalid pattern", src: "model.matches('(')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(mustParse(t, tt.src), RegexPrecompile())
			if got := out.Type == ast.ExprOptimized; got != tt.rewrite {
				t.Fatalf("rewritten = %v, want %v", got, tt.rewrite)
			}
			if !tt.rewrite {
				return
			}
			call := out.Optimized
			if call.Function != interpreter.MatchesFunction {
				t.Fatalf("function = %q, want %q", call.Function, interpreter.MatchesFunction)
			}
			obj, ok := call.Args[tt.compiled].Value.(value.Object)
			if !ok {
				t.Fatalf("argument %d = %v, want regex object", tt.compiled, call.Args[tt.compiled].Value)
			}
			if _, ok := obj.Opaque().(*interpreter.Regex); !ok {
				t.Errorf("argument type = %T, want *Regex", obj.Opaque())
			}
		})
	}
}

// TestIPPrecompile tests compile-time address parsing
func TestIPPrecompile(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantType string
	}{
		{name: "ip", src: "ip('10.0.0.1')", wantType: interpreter.IPTypeName},
		{name: "cidr", src: "cidr('10.0.0.0/8')", wantType: interpreter.CIDRTypeName},
		{name: "invalid ip", src: "ip('nope')"},
		{name: "dynamic argument", src: "ip(addr)"},
		{name: "method call", src: "x.ip('10.0.0.1')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(mustParse(t, tt.src), IPPrecompile())
			if tt.wantType == "" {
				if out.Type == ast.ExprOptimized {
					t.Errorf("unexpected rewrite of %q", tt.src)
				}
				return
			}
			if out.Type != ast.ExprOptimized || out.Optimized.Type != ast.ExprInline {
				t.Fatalf("result = %v, want optimized inline", out.Type)
			}
			if got := value.TypeName(out.Optimized.Value); got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

// TestBuiltins_PreserveSemantics tests that optimized programs evaluate like
// unoptimized ones
func TestBuiltins_PreserveSemantics(t *testing.T) {
	vars := interpreter.GoResolver{
		"request": map[string]any{
			"headers": map[string]string{"x-team": "search"},
			"model":   "gpt-4o",
		},
		"addr": "10.1.2.3",
	}

	tests := []string{
		"request.headers['x-team'] == 'search'",
		"request.headers.missing",
		"request.model.matches('^gpt-4')",
		"matches(request.model, '^claude')",
		"cidr('10.0.0.0/8').containsIP(addr)",
		"ip(addr) == ip('10.1.2.3')",
		"ip('nope')",
		"request.model.matches('(')",
		"regex('^a+$').matches('aaa')",
		"regex('^a+$').matches('bbb')",
		"[regex('^g'), regex('^c')].exists(r, r.matches('gpt'))",
		"matches(regex('a'), 'a')",
		"request.missing.matches('a')",
		"[1, 2, 3].map(x, x * 2)",
		"1 / 0",
		"{'a': 1, 'a': 2}",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			raw := mustParse(t, src)
			want, wantErr := interpreter.Resolve(raw, nil, vars)
			got, gotErr := interpreter.Resolve(Apply(raw, Builtins()), nil, vars)

			if (wantErr == nil) != (gotErr == nil) {
				t.Fatalf("error = %v, want %v", gotErr, wantErr)
			}
			if wantErr != nil {
				wk, _ := celerrors.KindOf(wantErr)
				gk, _ := celerrors.KindOf(gotErr)
				if wk != gk {
					t.Errorf("error kind = %v, want %v", gk, wk)
				}
				return
			}
			if !value.Equal(got, want) {
				t.Errorf("Resolve() = %v, want %v", got, want)
			}
		})
	}
}
