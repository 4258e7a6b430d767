package interpreter

import (
	"sort"

	"mercator-hq/gateway/pkg/cel/value"
)

// Function implements a callable registered on a Context. Arguments are
// passed unevaluated through call so implementations can be lazy.
type Function func(call *FunctionCall) (value.Value, error)

// StructConstructor builds a value for Type{field: ...} construction from the
// evaluated fields.
type StructConstructor func(fields value.Map) (value.Value, error)

// DefaultMaxDepth is the default limit on nested evaluation.
const DefaultMaxDepth = 250

// Context holds the function registry shared by every evaluation.
//
// A Context is populated at startup and must not be modified once it is used
// for evaluation; after that it is safe for concurrent use.
type Context struct {
	functions map[string]Function
	qualified map[string]map[string]Function
	types     map[string]StructConstructor
	maxDepth  int
}

// NewContext creates an empty context with no functions registered.
func NewContext() *Context {
	return &Context{
		functions: make(map[string]Function),
		qualified: make(map[string]map[string]Function),
		types:     make(map[string]StructConstructor),
		maxDepth:  DefaultMaxDepth,
	}
}

// NewDefaultContext creates a context with the standard library installed.
func NewDefaultContext() *Context {
	c := NewContext()
	installStdlib(c)
	return c
}

// WithMaxDepth sets the evaluation depth limit.
func (c *Context) WithMaxDepth(depth int) *Context {
	c.maxDepth = depth
	return c
}

// AddFunction registers a global function, replacing any previous one with
// the same name. It is reachable as name(...) and, with a receiver, as
// x.name(...).
func (c *Context) AddFunction(name string, fn Function) {
	c.functions[name] = fn
}

// AddQualifiedFunction registers a function reachable only as
// namespace.name(...).
func (c *Context) AddQualifiedFunction(namespace, name string, fn Function) {
	ns, ok := c.qualified[namespace]
	if !ok {
		ns = make(map[string]Function)
		c.qualified[namespace] = ns
	}
	ns[name] = fn
}

// AddType registers the constructor used for TypeName{...} expressions.
func (c *Context) AddType(typeName string, ctor StructConstructor) {
	c.types[typeName] = ctor
}

// Function returns the global function registered under name.
func (c *Context) Function(name string) (Function, bool) {
	fn, ok := c.functions[name]
	return fn, ok
}

// QualifiedFunction returns the function registered as namespace.name.
func (c *Context) QualifiedFunction(namespace, name string) (Function, bool) {
	ns, ok := c.qualified[namespace]
	if !ok {
		return nil, false
	}
	fn, ok := ns[name]
	return fn, ok
}

// HasNamespace reports whether any qualified function uses namespace.
func (c *Context) HasNamespace(namespace string) bool {
	_, ok := c.qualified[namespace]
	return ok
}

// Namespaces returns the registered namespaces in sorted order.
func (c *Context) Namespaces() []string {
	out := make([]string, 0, len(c.qualified))
	for ns := range c.qualified {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// QualifiedFunctions returns every qualified function as "namespace.name",
// in sorted order.
func (c *Context) QualifiedFunctions() []string {
	var out []string
	for ns, fns := range c.qualified {
		for name := range fns {
			out = append(out, ns+"."+name)
		}
	}
	sort.Strings(out)
	return out
}

// Functions returns the names of all global functions in sorted order.
func (c *Context) Functions() []string {
	out := make([]string, 0, len(c.functions))
	for name := range c.functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
