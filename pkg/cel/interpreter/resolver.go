package interpreter

import (
	"mercator-hq/gateway/pkg/cel/value"
)

// Resolver maps free variable names to values.
type Resolver interface {
	Resolve(name string) (value.Value, bool)
}

// EmptyResolver resolves nothing.
type EmptyResolver struct{}

// Resolve implements Resolver.
func (EmptyResolver) Resolve(string) (value.Value, bool) {
	return nil, false
}

// MapResolver resolves names from a fixed set of values.
type MapResolver map[string]value.Value

// Resolve implements Resolver.
func (m MapResolver) Resolve(name string) (value.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// FuncResolver adapts a function to the Resolver interface.
type FuncResolver func(name string) (value.Value, bool)

// Resolve implements Resolver.
func (f FuncResolver) Resolve(name string) (value.Value, bool) {
	return f(name)
}

// GoResolver resolves names from host values, converting each one with
// value.FromGo on lookup. Structs are exposed lazily through their field table.
type GoResolver map[string]any

// Resolve implements Resolver.
func (g GoResolver) Resolve(name string) (value.Value, bool) {
	x, ok := g[name]
	if !ok {
		return nil, false
	}
	return value.FromGo(x), true
}

// chain tries each resolver in order.
type chain []Resolver

func (c chain) Resolve(name string) (value.Value, bool) {
	for _, r := range c {
		if v, ok := r.Resolve(name); ok {
			return v, true
		}
	}
	return nil, false
}

// ChainResolvers returns a resolver that consults rs in order. Nil entries are
// skipped.
func ChainResolvers(rs ...Resolver) Resolver {
	out := make(chain, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Scope is one frame of a persistent binding chain. It binds up to two names
// in front of its parent; the parent is never modified, so sibling scopes
// cannot observe each other's bindings.
type Scope struct {
	parent Resolver
	name   string
	val    value.Value
	name2  string
	val2   value.Value
}

// NewScope binds name to v in front of parent.
func NewScope(parent Resolver, name string, v value.Value) *Scope {
	return &Scope{parent: parent, name: name, val: v}
}

// NewScope2 binds two names in front of parent. An empty name2 binds only name.
func NewScope2(parent Resolver, name string, v value.Value, name2 string, v2 value.Value) *Scope {
	return &Scope{parent: parent, name: name, val: v, name2: name2, val2: v2}
}

// Resolve implements Resolver.
func (s *Scope) Resolve(name string) (value.Value, bool) {
	switch {
	case name == s.name:
		return s.val, true
	case s.name2 != "" && name == s.name2:
		return s.val2, true
	case s.parent == nil:
		return nil, false
	}
	return s.parent.Resolve(name)
}

// Parent returns the enclosing resolver.
func (s *Scope) Parent() Resolver {
	return s.parent
}
