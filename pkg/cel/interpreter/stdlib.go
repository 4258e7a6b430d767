package interpreter

import (
	"math"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// installStdlib registers the standard library on c.
func installStdlib(c *Context) {
	// Core
	c.AddFunction("size", fnSize)
	c.AddFunction("max", extremum("max", 1))
	c.AddFunction("min", extremum("min", -1))
	c.AddFunction("default", fnDefault)

	installStrings(c)
	installConversions(c)
	installTime(c)
	installEncoding(c)
	installOptional(c)
	installRegex(c)
	installNetwork(c)
}

func fnSize(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 1)
	if err != nil {
		return nil, err
	}
	return value.Size(ops[0])
}

// extremum returns max (sign 1) or min (sign -1) over its operands, or over
// the elements of a single list operand.
func extremum(name string, sign int) Function {
	return func(call *FunctionCall) (value.Value, error) {
		ops, err := call.Operands()
		if err != nil {
			return nil, err
		}
		if len(ops) == 1 {
			if l, ok := value.Materialize(ops[0]).(value.List); ok {
				ops = l.Items()
			}
		}
		if len(ops) == 0 {
			return nil, celerrors.FunctionError(name, "requires at least one value")
		}
		best := ops[0]
		for _, v := range ops[1:] {
			c, err := value.Compare(v, best)
			if err != nil {
				return nil, err
			}
			if c*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

// fnDefault implements default(expr, fallback): fallback is used when expr
// is null or refers to something that does not exist.
func fnDefault(call *FunctionCall) (value.Value, error) {
	if call.ArgCount() != 2 || call.HasTarget() {
		return nil, celerrors.InvalidArgumentCount(2, call.OperandCount())
	}
	v, err := call.Arg(0)
	if err == nil {
		if _, isNull := value.Materialize(v).(value.Null); !isNull {
			return v, nil
		}
		return call.Arg(1)
	}
	switch kind, _ := celerrors.KindOf(err); kind {
	case celerrors.KindNoSuchKey, celerrors.KindUndeclaredReference, celerrors.KindUnsupportedTargetType:
		return call.Arg(1)
	}
	return nil, err
}

// Operand helpers shared by the library.

// typed adapts a concrete result to the Value interface.
func typed[T value.Value](v T, err error) (value.Value, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func asString(v value.Value) (string, error) {
	s, ok := value.Materialize(v).(value.String)
	if !ok {
		return "", celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "string")
	}
	return string(s), nil
}

func asInt(v value.Value) (int64, error) {
	switch x := value.Materialize(v).(type) {
	case value.Int:
		return int64(x), nil
	case value.UInt:
		if x > math.MaxInt64 {
			return 0, celerrors.Overflow("int", "uint value out of range")
		}
		return int64(x), nil
	}
	return 0, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "int")
}

func asList(v value.Value) (value.List, error) {
	l, ok := value.Materialize(v).(value.List)
	if !ok {
		return value.List{}, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "list")
	}
	return l, nil
}

func stringValues(ops []value.Value) ([]string, error) {
	out := make([]string, len(ops))
	for i, v := range ops {
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
