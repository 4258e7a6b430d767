package ast

import (
	"mercator-hq/gateway/pkg/cel/value"
)

// ExprType represents the type of an expression node.
type ExprType uint8

const (
	ExprLiteral       ExprType = iota // Scalar literal from source
	ExprInline                        // Pre-evaluated value produced by folding
	ExprIdent                         // Identifier reference
	ExprSelect                        // Field selection or has() test
	ExprCall                          // Function, method or operator call
	ExprList                          // List construction
	ExprMap                           // Map construction
	ExprStruct                        // Typed struct construction
	ExprComprehension                 // Macro loop
	ExprOptimized                     // Specialized replacement of a subtree
)

// String returns the node type name.
func (t ExprType) String() string {
	switch t {
	case ExprLiteral:
		return "literal"
	case ExprInline:
		return "inline"
	case ExprIdent:
		return "ident"
	case ExprSelect:
		return "select"
	case ExprCall:
		return "call"
	case ExprList:
		return "list"
	case ExprMap:
		return "map"
	case ExprStruct:
		return "struct"
	case ExprComprehension:
		return "comprehension"
	case ExprOptimized:
		return "optimized"
	default:
		return "unknown"
	}
}

// Expr is a node of the expression AST. Which fields are set depends on Type.
// Nodes are immutable once built: rewrites produce new nodes and keep IDs.
type Expr struct {
	// ID is unique within one compiled program and stable across optimization.
	ID   int64
	Type ExprType

	// Value holds the constant for ExprLiteral and ExprInline.
	Value value.Value

	// Name is the identifier for ExprIdent.
	Name string

	// Operand, Field and Test describe ExprSelect. Test marks a has() check.
	Operand *Expr
	Field   string
	Test    bool

	// Target, Function and Args describe ExprCall. Target is nil for global calls.
	Target   *Expr
	Function string
	Args     []*Expr

	// Elements holds ExprList items.
	Elements []*Expr

	// Entries holds ExprMap and ExprStruct entries; TypeName names the struct.
	Entries  []*Entry
	TypeName string

	// Comprehension describes ExprComprehension.
	Comprehension *Comprehension

	// Original and Optimized describe ExprOptimized. Only Optimized is evaluated.
	Original  *Expr
	Optimized *Expr

	// Location is the byte offset of the node in the source.
	Location int
}

// Entry is one map entry (Key set) or struct field (Field set).
type Entry struct {
	ID    int64
	Key   *Expr
	Field string
	Value *Expr
}

// MacroKind identifies the macro a comprehension was expanded from.
type MacroKind string

const (
	MacroNone      MacroKind = ""
	MacroAll       MacroKind = "all"
	MacroExists    MacroKind = "exists"
	MacroExistsOne MacroKind = "exists_one"
	MacroMap       MacroKind = "map"
	MacroFilter    MacroKind = "filter"
	MacroWith      MacroKind = "with"
)

// Comprehension is a loop over IterRange.
//
// For a macro, LoopStep holds the user's body: the predicate for all, exists
// and exists_one, the transform for map and the bound expression for with.
// LoopCond holds the filter predicate for filter and three-argument map.
// Result is an identifier referring to AccuVar.
//
// For MacroNone the fields have their general fold meaning: AccuVar starts at
// AccuInit, LoopStep computes the next accumulator while LoopCond holds, and
// Result is evaluated once the loop ends.
type Comprehension struct {
	Macro    MacroKind
	IterVar  string
	IterVar2 string // Value variable for two-variable forms; empty otherwise
	AccuVar  string

	IterRange *Expr
	AccuInit  *Expr
	LoopCond  *Expr
	LoopStep  *Expr
	Result    *Expr
}

// ReservedPrefix marks synthetic identifiers introduced by macro expansion.
const ReservedPrefix = "@"

// AccumulatorName is the accumulator identifier used by expanded macros.
const AccumulatorName = ReservedPrefix + "result"

// IsReserved reports whether name is a synthetic identifier.
func IsReserved(name string) bool {
	return len(name) > 0 && name[:1] == ReservedPrefix
}

// IsConstant reports whether e evaluates to a value known at compile time.
func (e *Expr) IsConstant() bool {
	return e != nil && (e.Type == ExprLiteral || e.Type == ExprInline)
}

// Unwrap returns the node that is evaluated for e, skipping Optimized wrappers.
func (e *Expr) Unwrap() *Expr {
	for e != nil && e.Type == ExprOptimized {
		e = e.Optimized
	}
	return e
}

// ConstantString returns the string constant held by e, if any.
func (e *Expr) ConstantString() (string, bool) {
	e = e.Unwrap()
	if !e.IsConstant() {
		return "", false
	}
	s, ok := e.Value.(value.String)
	return string(s), ok
}

// Children returns the direct child nodes of e in evaluation order. The
// Original branch of an Optimized node is included last.
func (e *Expr) Children() []*Expr {
	var out []*Expr
	add := func(c *Expr) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch e.Type {
	case ExprSelect:
		add(e.Operand)
	case ExprCall:
		add(e.Target)
		for _, a := range e.Args {
			add(a)
		}
	case ExprList:
		for _, el := range e.Elements {
			add(el)
		}
	case ExprMap, ExprStruct:
		for _, en := range e.Entries {
			add(en.Key)
			add(en.Value)
		}
	case ExprComprehension:
		c := e.Comprehension
		add(c.IterRange)
		add(c.AccuInit)
		add(c.LoopCond)
		add(c.LoopStep)
		add(c.Result)
	case ExprOptimized:
		add(e.Optimized)
		add(e.Original)
	}
	return out
}
