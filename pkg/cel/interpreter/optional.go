package interpreter

import (
	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// OptionalTypeName is the type name of optional values.
const OptionalTypeName = "optional_type"

// Optional is a value that may be absent. It is created by optional.of and
// optional.none and unwrapped with hasValue, value, orValue and or.
type Optional struct {
	val     value.Value
	present bool
}

// OptionalOf returns an optional holding v.
func OptionalOf(v value.Value) value.Object {
	return value.NewObject(&Optional{val: v, present: true})
}

// OptionalNone returns an empty optional.
func OptionalNone() value.Object {
	return value.NewObject(&Optional{})
}

// TypeName implements value.Opaque.
func (o *Optional) TypeName() string {
	return OptionalTypeName
}

// Value returns the held value and whether it is present.
func (o *Optional) Value() (value.Value, bool) {
	return o.val, o.present
}

// EqualOpaque implements value.OpaqueEqualer.
func (o *Optional) EqualOpaque(other value.Opaque) bool {
	x, ok := other.(*Optional)
	if !ok || o.present != x.present {
		return false
	}
	return !o.present || value.Equal(o.val, x.val)
}

// MarshalJSON renders the held value, or null when empty.
func (o *Optional) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return value.MarshalJSON(o.val)
}

// CallFunction implements value.MethodProvider.
func (o *Optional) CallFunction(name string, call value.Call) (value.Value, bool, error) {
	switch name {
	case "hasValue":
		return value.Bool(o.present), true, nil
	case "value":
		if !o.present {
			return nil, true, celerrors.FunctionError(name, "optional.none() dereference")
		}
		return o.val, true, nil
	case "orValue", "or":
		if call.ArgCount() != 1 {
			return nil, true, celerrors.InvalidArgumentCount(1, call.ArgCount())
		}
		if o.present {
			if name == "or" {
				return value.NewObject(o), true, nil
			}
			return o.val, true, nil
		}
		v, err := call.Arg(0)
		return v, true, err
	}
	return nil, false, nil
}

func installOptional(c *Context) {
	c.AddQualifiedFunction("optional", "of", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		return OptionalOf(ops[0]), nil
	})
	c.AddQualifiedFunction("optional", "ofNonZeroValue", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		if isZero(ops[0]) {
			return OptionalNone(), nil
		}
		return OptionalOf(ops[0]), nil
	})
	c.AddQualifiedFunction("optional", "none", func(call *FunctionCall) (value.Value, error) {
		if _, err := call.ExpectOperands(0, 0); err != nil {
			return nil, err
		}
		return OptionalNone(), nil
	})
}

func isZero(v value.Value) bool {
	switch x := value.Materialize(v).(type) {
	case nil, value.Null:
		return true
	case value.Bool:
		return !bool(x)
	case value.Int:
		return x == 0
	case value.UInt:
		return x == 0
	case value.Float:
		return x == 0
	case value.String:
		return x == ""
	case value.Bytes:
		return x.Len() == 0
	case value.List:
		return x.Len() == 0
	case value.Map:
		return x.Len() == 0
	}
	return false
}
