package cel

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/optimizer"
	"mercator-hq/gateway/pkg/cel/value"
)

func testVars() interpreter.GoResolver {
	return interpreter.GoResolver{
		"request": map[string]any{
			"model":   "gpt-4o",
			"headers": map[string]string{"x-team": "search"},
		},
		"teams": []string{"search", "ads"},
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    value.Value
		wantErr bool
	}{
		{name: "arithmetic", src: "1 + 2 * 3", want: value.Int(7)},
		{name: "header in list", src: `request.headers["x-team"] in teams`, want: value.Bool(true)},
		{name: "regex", src: `request.model.matches("^gpt-4")`, want: value.Bool(true)},
		{name: "macro", src: `teams.exists(t, t == "ads")`, want: value.Bool(true)},
		{name: "syntax error", src: "1 +", wantErr: true},
		{name: "unbalanced", src: "(a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.src)
			if tt.wantErr {
				var perr *celerrors.ParseErrors
				if !errors.As(err, &perr) {
					t.Fatalf("Compile(%q) error = %v, want *ParseErrors", tt.src, err)
				}
				if p != nil {
					t.Error("expected nil program on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.src, err)
			}
			if p.Source != tt.src || p.String() != tt.src {
				t.Errorf("Source = %q, want %q", p.Source, tt.src)
			}

			got, err := p.Execute(nil, testVars())
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !value.Equal(got, tt.want) {
				t.Errorf("Execute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_AppliesBuiltins(t *testing.T) {
	p := MustCompile(`request.model.matches("^gpt")`)
	if p.Expr.Type != ast.ExprOptimized {
		t.Errorf("expected regex call to be specialized, got %v", p.Expr.Type)
	}

	plain, err := CompileWithOptimizer(`request.model.matches("^gpt")`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Expr.Type == ast.ExprOptimized {
		t.Error("nil optimizer should only fold")
	}
}

func TestCompile_MatchesMeaningUnchanged(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "regex receiver", src: "regex('^a+$').matches('aaa')"},
		{name: "regex receiver no match", src: "regex('^a+$').matches('abc')"},
		{name: "string receiver", src: "request.model.matches('^gpt-4')"},
		{name: "regex from comprehension", src: "[regex('^gpt'), regex('^claude')].exists(r, r.matches(request.model))"},
		{name: "regex variable receiver", src: "[regex('^gpt')].all(r, r.matches('gpt-4o'))"},
		{name: "global form with regex", src: "matches(regex('a'), 'a')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, err := CompileWithOptimizer(tt.src, nil)
			if err != nil {
				t.Fatal(err)
			}
			want, wantErr := plain.Execute(nil, testVars())

			p, err := Compile(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			got, gotErr := p.Execute(nil, testVars())

			if (gotErr == nil) != (wantErr == nil) {
				t.Fatalf("Compile(%q).Execute() error = %v, want %v", tt.src, gotErr, wantErr)
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
				t.Errorf("Compile(%q).Execute() = %v, want %v", tt.src, got, want)
			}
		})
	}
}

func TestCompileWithOptimizer_Custom(t *testing.T) {
	// Replace every reference to x with the constant 41.
	opt := optimizer.Func(func(e *ast.Expr) *ast.Expr {
		if e.Type == ast.ExprIdent && e.Name == "x" {
			return &ast.Expr{Type: ast.ExprInline, Value: value.Int(41)}
		}
		return nil
	})

	p, err := CompileWithOptimizer("x + 1", opt)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Execute(nil, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(42)) {
		t.Errorf("Execute() = %v, want 42", got)
	}
	if !p.References().HasVariable("x") {
		t.Error("references should be computed from the original subtree")
	}
}

func TestCompileLenient(t *testing.T) {
	p := CompileLenient("request.model ==")
	if p == nil {
		t.Fatal("CompileLenient returned nil")
	}
	if p.CompileError() == nil {
		t.Error("expected CompileError to be set")
	}

	_, err := p.Execute(nil, testVars())
	var ee *celerrors.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("Execute() error = %v, want *ExecutionError", err)
	}
	if ee.Kind != celerrors.KindFunctionError || ee.Name != CompileFunction {
		t.Errorf("unexpected error %+v", ee)
	}
	if len(p.Properties()) != 0 || len(p.References().Variables) != 0 {
		t.Error("failed program should reference nothing")
	}

	ok := CompileLenient("1 == 1")
	if ok.CompileError() != nil {
		t.Errorf("unexpected compile error %v", ok.CompileError())
	}
	if v, err := ok.Execute(nil, nil); err != nil || !value.Equal(v, value.Bool(true)) {
		t.Errorf("Execute() = %v, %v", v, err)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustCompile to panic")
		}
	}()
	MustCompile("][")
}

func TestProgram_ReferencesAndProperties(t *testing.T) {
	p := MustCompile(`request.headers["x-team"] == "a" && size(request.body) > 0 && teams.all(t, t != "")`)

	wantProps := [][]string{
		{"request", "headers"},
		{"request", "body"},
		{"teams"},
		{"t"},
	}
	if got := p.Properties(); !reflect.DeepEqual(got, wantProps) {
		t.Errorf("Properties() = %v, want %v", got, wantProps)
	}

	refs := p.References()
	if !reflect.DeepEqual(refs.Variables, []string{"request", "teams"}) {
		t.Errorf("Variables = %v", refs.Variables)
	}
	if !refs.HasFunction("size") {
		t.Errorf("Functions = %v, want size", refs.Functions)
	}
	if !refs.HasPath("request.body") {
		t.Error("expected request.body to be referenced")
	}
}

func TestProgram_ReferencesQualified(t *testing.T) {
	p := MustCompile(`json.parse(request.body).model == "gpt-4o" && base64.encode(b"x") != ""`)

	refs := p.References()
	if !reflect.DeepEqual(refs.Variables, []string{"request"}) {
		t.Errorf("Variables = %v, want [request]", refs.Variables)
	}
	if !refs.HasFunction("json.parse") || !refs.HasFunction("base64.encode") {
		t.Errorf("Functions = %v, want qualified names", refs.Functions)
	}
	if refs.HasFunction("parse") {
		t.Errorf("Functions = %v, want no bare parse", refs.Functions)
	}
	wantProps := [][]string{{"request", "body"}}
	if got := p.Properties(); !reflect.DeepEqual(got, wantProps) {
		t.Errorf("Properties() = %v, want %v", got, wantProps)
	}
}

func TestProgram_ConcurrentExecute(t *testing.T) {
	p := MustCompile(`request.headers["x-team"] in teams && request.model.startsWith("gpt")`)
	vars := testVars()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, err := p.Execute(nil, vars)
				if err != nil {
					errs <- err
					return
				}
				if !value.Equal(v, value.Bool(true)) {
					errs <- errors.New("unexpected result " + value.Format(v))
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
