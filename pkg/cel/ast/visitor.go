package ast

// Visitor provides an interface for traversing the AST.
// Implement this interface to perform analysis over expression nodes.
type Visitor interface {
	VisitExpr(*Expr) error
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(*Expr) error

// VisitExpr calls f(e).
func (f VisitorFunc) VisitExpr(e *Expr) error {
	return f(e)
}

// Walk traverses the AST in pre-order, calling the visitor for each node.
// It returns the first error encountered, or nil if traversal completes.
func Walk(root *Expr, visitor Visitor) error {
	if root == nil {
		return nil
	}
	if err := visitor.VisitExpr(root); err != nil {
		return err
	}
	for _, child := range root.Children() {
		if err := Walk(child, visitor); err != nil {
			return err
		}
	}
	return nil
}

// Inspect traverses the AST in pre-order. Children of a node are skipped
// when fn returns false for it.
func Inspect(root *Expr, fn func(*Expr) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, child := range root.Children() {
		Inspect(child, fn)
	}
}

// Rewrite applies fn bottom-up: children are rewritten before their parent is
// passed to fn. A node whose children are unchanged is passed as-is; otherwise
// a shallow copy with the new children is passed. fn returns the node to use,
// which may be its argument. The input tree is never modified.
func Rewrite(root *Expr, fn func(*Expr) *Expr) *Expr {
	if root == nil {
		return nil
	}
	return fn(rewriteChildren(root, fn))
}

func rewriteChildren(e *Expr, fn func(*Expr) *Expr) *Expr {
	switch e.Type {
	case ExprSelect:
		op := Rewrite(e.Operand, fn)
		if op == e.Operand {
			return e
		}
		c := *e
		c.Operand = op
		return &c

	case ExprCall:
		target := Rewrite(e.Target, fn)
		args, changed := rewriteList(e.Args, fn)
		if target == e.Target && !changed {
			return e
		}
		c := *e
		c.Target, c.Args = target, args
		return &c

	case ExprList:
		elems, changed := rewriteList(e.Elements, fn)
		if !changed {
			return e
		}
		c := *e
		c.Elements = elems
		return &c

	case ExprMap, ExprStruct:
		changed := false
		entries := make([]*Entry, len(e.Entries))
		for i, en := range e.Entries {
			k, v := Rewrite(en.Key, fn), Rewrite(en.Value, fn)
			if k != en.Key || v != en.Value {
				changed = true
				entries[i] = &Entry{ID: en.ID, Key: k, Field: en.Field, Value: v}
			} else {
				entries[i] = en
			}
		}
		if !changed {
			return e
		}
		c := *e
		c.Entries = entries
		return &c

	case ExprComprehension:
		old := e.Comprehension
		next := *old
		next.IterRange = Rewrite(old.IterRange, fn)
		next.AccuInit = Rewrite(old.AccuInit, fn)
		next.LoopCond = Rewrite(old.LoopCond, fn)
		next.LoopStep = Rewrite(old.LoopStep, fn)
		next.Result = Rewrite(old.Result, fn)
		if next == *old {
			return e
		}
		c := *e
		c.Comprehension = &next
		return &c

	case ExprOptimized:
		// The original subtree is kept verbatim for introspection.
		opt := Rewrite(e.Optimized, fn)
		if opt == e.Optimized {
			return e
		}
		c := *e
		c.Optimized = opt
		return &c
	}
	return e
}

func rewriteList(in []*Expr, fn func(*Expr) *Expr) ([]*Expr, bool) {
	changed := false
	out := make([]*Expr, len(in))
	for i, x := range in {
		out[i] = Rewrite(x, fn)
		if out[i] != x {
			changed = true
		}
	}
	if !changed {
		return in, false
	}
	return out, true
}

// MaxID returns the largest node ID in the tree.
func MaxID(root *Expr) int64 {
	var max int64
	Inspect(root, func(e *Expr) bool {
		if e.ID > max {
			max = e.ID
		}
		if e.Type == ExprMap || e.Type == ExprStruct {
			for _, en := range e.Entries {
				if en.ID > max {
					max = en.ID
				}
			}
		}
		return true
	})
	return max
}

// AssignIDs returns root with every zero-ID node given a fresh ID above the
// current maximum. Nodes built by optimizers start with ID 0. Such nodes are
// copied rather than modified, and so are their ancestors, so a node shared
// with another tree is never changed.
func AssignIDs(root *Expr) *Expr {
	next := MaxID(root)
	return Rewrite(root, func(e *Expr) *Expr {
		if e.ID != 0 {
			return e
		}
		next++
		c := *e
		c.ID = next
		return &c
	})
}
