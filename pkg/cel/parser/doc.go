// Package parser turns expression source text into an ID-tagged AST.
//
// The grammar follows the Common Expression Language:
//
//	expr     = or ['?' or ':' expr]
//	or       = and {'||' and}
//	and      = relation {'&&' relation}
//	relation = add {('<' | '<=' | '>=' | '>' | '==' | '!=' | 'in') add}
//	add      = mul {('+' | '-') mul}
//	mul      = unary {('*' | '/' | '%') unary}
//	unary    = member | '!'+ member | '-'+ member
//	member   = primary {'.' IDENT ['(' args ')'] | '[' expr ']' | '{' fields '}'}
//	primary  = ['.'] IDENT ['(' args ')'] | '(' expr ')' | '[' args ']' | '{' entries '}' | literal
//
// Operators become calls with reserved function names (_+_, _[_], @in, ...).
// The macros has, all, exists, exists_one, map, filter and with are expanded
// while parsing, so later stages only see Select tests and Comprehension nodes.
//
// # Basic Usage
//
//	expr, err := parser.Parse(`request.headers["x-user"] == "admin"`)
//	if err != nil {
//	    var perrs *errors.ParseErrors
//	    if stderrors.As(err, &perrs) {
//	        for _, e := range perrs.Errors {
//	            fmt.Println(e.Location, e.Message)
//	        }
//	    }
//	}
//
// Parsing does not stop at the first problem: up to a configurable number of
// errors are collected and returned together.
//
//	p := parser.NewParser().WithMaxDepth(50).WithMaxErrors(5)
//	expr, err := p.Parse(src)
package parser
