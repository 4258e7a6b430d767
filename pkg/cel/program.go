package cel

import (
	"fmt"

	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/optimizer"
	"mercator-hq/gateway/pkg/cel/parser"
	"mercator-hq/gateway/pkg/cel/references"
	"mercator-hq/gateway/pkg/cel/value"
)

// CompileFunction names the synthetic failure of a leniently compiled
// program whose source did not parse.
const CompileFunction = "compile"

// Program is a compiled expression. It is immutable once returned and safe
// for concurrent use.
type Program struct {
	// Expr is the optimized AST. It is nil for a program whose source
	// failed to parse under CompileLenient.
	Expr *ast.Expr

	// Source is the text the program was compiled from.
	Source string

	compileErr error
}

// Compile parses src and optimizes it with the default folding pass and the
// built-in header, regex and IP specializations.
func Compile(src string) (*Program, error) {
	return CompileWithOptimizer(src, optimizer.Builtins())
}

// CompileWithOptimizer parses src and optimizes it with the default folding
// pass followed by opt. A nil opt runs the folding pass only. Parse failures
// are returned as *errors.ParseErrors.
func CompileWithOptimizer(src string, opt optimizer.Optimizer) (*Program, error) {
	expr, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{Expr: optimizer.Apply(expr, opt), Source: src}, nil
}

// CompileLenient is Compile, except that a source that does not parse yields
// a program whose every execution fails with a FunctionError named
// "compile". One malformed rule then fails its own evaluations instead of
// blocking the whole rule set.
func CompileLenient(src string) *Program {
	return compileLenient(src, optimizer.Builtins())
}

func compileLenient(src string, opt optimizer.Optimizer) *Program {
	p, err := CompileWithOptimizer(src, opt)
	if err != nil {
		return &Program{Source: src, compileErr: err}
	}
	return p
}

// MustCompile is like Compile but panics if src does not parse. It
// simplifies initialization of package-level programs.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("cel: Compile(%q): %v", src, err))
	}
	return p
}

// Execute evaluates the program. A nil env uses interpreter.Default() and a
// nil resolver resolves no variables.
func (p *Program) Execute(env *interpreter.Context, resolver interpreter.Resolver) (value.Value, error) {
	if p.compileErr != nil {
		return nil, celerrors.FunctionError(CompileFunction, p.compileErr.Error())
	}
	return interpreter.Resolve(p.Expr, env, resolver)
}

// CompileError returns the parse failure of a leniently compiled program,
// or nil.
func (p *Program) CompileError() error {
	return p.compileErr
}

// References returns the free variables, functions and paths the program
// reads.
func (p *Program) References() references.Refs {
	if p.Expr == nil {
		return references.Refs{}
	}
	return references.References(p.Expr, interpreter.Default().QualifiedFunctions()...)
}

// Properties returns every dotted property path the program touches, in
// source order.
func (p *Program) Properties() [][]string {
	if p.Expr == nil {
		return nil
	}
	return references.Properties(p.Expr, interpreter.Default().QualifiedFunctions()...)
}

// String returns the program's source.
func (p *Program) String() string {
	return p.Source
}
