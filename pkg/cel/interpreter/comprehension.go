package interpreter

import (
	"mercator-hq/gateway/pkg/cel/ast"
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// evalComprehension runs a macro loop. Every iteration evaluates its body in
// a fresh Scope in front of r; r itself is never modified.
func (ev *evaluator) evalComprehension(c *ast.Comprehension, r Resolver) (value.Value, error) {
	rng, err := ev.eval(c.IterRange, r)
	if err != nil {
		return nil, err
	}

	if c.Macro == ast.MacroWith {
		return ev.eval(c.LoopStep, NewScope(r, c.IterVar, rng))
	}

	bind := func(first, second value.Value) Resolver {
		return NewScope2(r, c.IterVar, first, c.IterVar2, second)
	}
	twoVars := c.IterVar2 != ""

	switch c.Macro {
	case ast.MacroAll:
		return ev.evalQuantifier(c, rng, twoVars, bind, false)
	case ast.MacroExists:
		return ev.evalQuantifier(c, rng, twoVars, bind, true)
	case ast.MacroExistsOne:
		return ev.evalExistsOne(c, rng, twoVars, bind)
	case ast.MacroMap, ast.MacroFilter:
		return ev.evalCollect(c, rng, twoVars, bind)
	}
	return ev.evalFold(c, rng, r)
}

// evalQuantifier implements all (decisive=false) and exists (decisive=true).
// The loop stops at the first decisive result, which wins over errors seen
// in other iterations.
func (ev *evaluator) evalQuantifier(c *ast.Comprehension, rng value.Value, twoVars bool,
	bind func(a, b value.Value) Resolver, decisive bool) (value.Value, error) {
	var firstErr error
	found := false
	err := iterate(rng, twoVars, func(a, b value.Value) (bool, error) {
		ok, err := ev.evalBool(c.LoopStep, bind(a, b))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true, nil
		}
		if ok == decisive {
			found = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found {
		return value.Bool(decisive), nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return value.Bool(!decisive), nil
}

func (ev *evaluator) evalExistsOne(c *ast.Comprehension, rng value.Value, twoVars bool,
	bind func(a, b value.Value) Resolver) (value.Value, error) {
	count := 0
	err := iterate(rng, twoVars, func(a, b value.Value) (bool, error) {
		ok, err := ev.evalBool(c.LoopStep, bind(a, b))
		if err != nil {
			return false, err
		}
		if ok {
			count++
		}
		return count <= 1, nil
	})
	if err != nil {
		return nil, err
	}
	return value.Bool(count == 1), nil
}

// evalCollect implements map and filter. LoopCond filters elements; for map,
// LoopStep transforms the ones that pass.
func (ev *evaluator) evalCollect(c *ast.Comprehension, rng value.Value, twoVars bool,
	bind func(a, b value.Value) Resolver) (value.Value, error) {
	var out []value.Value
	err := iterate(rng, twoVars, func(a, b value.Value) (bool, error) {
		scope := bind(a, b)
		if c.LoopCond != nil {
			keep, err := ev.evalBool(c.LoopCond, scope)
			if err != nil {
				return false, err
			}
			if !keep {
				return true, nil
			}
		}
		if c.Macro == ast.MacroFilter {
			out = append(out, a)
			return true, nil
		}
		v, err := ev.eval(c.LoopStep, scope)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return value.NewList(out...), nil
}

// evalFold runs a general comprehension: the accumulator starts at AccuInit
// and is replaced by LoopStep on every iteration while LoopCond holds.
func (ev *evaluator) evalFold(c *ast.Comprehension, rng value.Value, r Resolver) (value.Value, error) {
	accu, err := ev.eval(c.AccuInit, r)
	if err != nil {
		return nil, err
	}
	err = iterate(rng, c.IterVar2 != "", func(a, b value.Value) (bool, error) {
		scope := NewScope(NewScope2(r, c.IterVar, a, c.IterVar2, b), c.AccuVar, accu)
		if c.LoopCond != nil {
			more, err := ev.evalBool(c.LoopCond, scope)
			if err != nil {
				return false, err
			}
			if !more {
				return false, nil
			}
		}
		next, err := ev.eval(c.LoopStep, scope)
		if err != nil {
			return false, err
		}
		accu = next
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if c.Result == nil {
		return accu, nil
	}
	return ev.eval(c.Result, NewScope(r, c.AccuVar, accu))
}

// iterate calls fn for every element of a list or map range. Lists yield the
// element, or (index, element) with twoVars; maps yield the key, or
// (key, value). fn returns false to stop early.
func iterate(rng value.Value, twoVars bool, fn func(a, b value.Value) (bool, error)) error {
	switch x := value.Materialize(rng).(type) {
	case value.List:
		for i, item := range x.Items() {
			var more bool
			var err error
			if twoVars {
				more, err = fn(value.Int(i), item)
			} else {
				more, err = fn(item, nil)
			}
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil

	case value.Map:
		var iterErr error
		x.Range(func(k value.Key, v value.Value) bool {
			var more bool
			if twoVars {
				more, iterErr = fn(k.Value(), v)
			} else {
				more, iterErr = fn(k.Value(), nil)
			}
			return iterErr == nil && more
		})
		return iterErr

	default:
		return celerrors.UnsupportedTargetType(value.TypeName(x))
	}
}
