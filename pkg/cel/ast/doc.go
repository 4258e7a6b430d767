// Package ast provides the Abstract Syntax Tree (AST) of compiled expressions.
//
// Every node is an *Expr whose Type selects the fields in use, mirroring how
// the parser builds it. Each node carries an ID, unique within a program and
// stable across optimization, which optimizers use for bookkeeping and
// diagnostics.
//
// # Node types
//
//	ExprLiteral        scalar literal written in the source
//	ExprInline         value folded at compile time
//	ExprIdent          variable reference
//	ExprSelect         a.b, or has(a.b) when Test is set
//	ExprCall           f(x), x.f(y), and operators such as _+_ and _[_]
//	ExprList/Map/Struct construction
//	ExprComprehension  expanded macro (all, exists, exists_one, map, filter, with)
//	ExprOptimized      specialized replacement that keeps the original subtree
//
// # Immutability
//
// AST nodes must be treated as immutable after construction. Rewrite builds
// new nodes rather than editing existing ones, so independent optimizers can
// run over shared trees.
package ast
