package value

import (
	"math"
	"math/bits"
	"strconv"
	"unicode/utf8"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
)

// Add implements the + operator.
func Add(a, b Value) (Value, error) {
	a, b = Materialize(a), Materialize(b)
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			r, ok := addInt64(int64(x), int64(y))
			if !ok {
				return nil, celerrors.Overflow("+", "int")
			}
			return Int(r), nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			r, carry := bits.Add64(uint64(x), uint64(y), 0)
			if carry != 0 {
				return nil, celerrors.Overflow("+", "uint")
			}
			return UInt(r), nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			return x + y, nil
		}
	case String:
		if y, ok := b.(String); ok {
			return x + y, nil
		}
	case Bytes:
		if y, ok := b.(Bytes); ok {
			out := make([]byte, 0, x.Len()+y.Len())
			out = append(out, x.Data()...)
			out = append(out, y.Data()...)
			return Bytes{data: out}, nil
		}
	case List:
		if y, ok := b.(List); ok {
			out := make([]Value, 0, x.Len()+y.Len())
			out = append(out, x.items...)
			out = append(out, y.items...)
			return NewList(out...), nil
		}
	case Timestamp:
		if y, ok := b.(Duration); ok {
			return result(x.AddDuration(y))
		}
	case Duration:
		switch y := b.(type) {
		case Duration:
			return result(x.Add(y))
		case Timestamp:
			return result(y.AddDuration(x))
		}
	}
	return nil, celerrors.UnsupportedBinaryOperator("+", TypeName(a), TypeName(b))
}

// Sub implements the binary - operator.
func Sub(a, b Value) (Value, error) {
	a, b = Materialize(a), Materialize(b)
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if y == math.MinInt64 {
				if x >= 0 {
					return nil, celerrors.Overflow("-", "int")
				}
				return x - y, nil
			}
			r, ok := addInt64(int64(x), -int64(y))
			if !ok {
				return nil, celerrors.Overflow("-", "int")
			}
			return Int(r), nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			r, borrow := bits.Sub64(uint64(x), uint64(y), 0)
			if borrow != 0 {
				return nil, celerrors.Overflow("-", "uint")
			}
			return UInt(r), nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			return x - y, nil
		}
	case Timestamp:
		switch y := b.(type) {
		case Duration:
			return result(x.SubDuration(y))
		case Timestamp:
			return result(x.Sub(y))
		}
	case Duration:
		if y, ok := b.(Duration); ok {
			neg, err := y.Negate()
			if err != nil {
				return nil, err
			}
			return result(x.Add(neg))
		}
	}
	return nil, celerrors.UnsupportedBinaryOperator("-", TypeName(a), TypeName(b))
}

// Mul implements the * operator.
func Mul(a, b Value) (Value, error) {
	a, b = Materialize(a), Materialize(b)
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if x == 0 || y == 0 {
				return Int(0), nil
			}
			r := x * y
			if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
				return nil, celerrors.Overflow("*", "int")
			}
			return r, nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			hi, lo := bits.Mul64(uint64(x), uint64(y))
			if hi != 0 {
				return nil, celerrors.Overflow("*", "uint")
			}
			return UInt(lo), nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			return x * y, nil
		}
	}
	return nil, celerrors.UnsupportedBinaryOperator("*", TypeName(a), TypeName(b))
}

// Div implements the / operator. Integer division by zero fails with
// DivisionByZero; double division follows IEEE-754.
func Div(a, b Value) (Value, error) {
	a, b = Materialize(a), Materialize(b)
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if y == 0 {
				return nil, celerrors.DivisionByZero(strconv.FormatInt(int64(x), 10))
			}
			if x == math.MinInt64 && y == -1 {
				return nil, celerrors.Overflow("/", "int")
			}
			return x / y, nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			if y == 0 {
				return nil, celerrors.DivisionByZero(strconv.FormatUint(uint64(x), 10) + "u")
			}
			return x / y, nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			return x / y, nil
		}
	}
	return nil, celerrors.UnsupportedBinaryOperator("/", TypeName(a), TypeName(b))
}

// Rem implements the % operator on integers.
func Rem(a, b Value) (Value, error) {
	a, b = Materialize(a), Materialize(b)
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if y == 0 {
				return nil, celerrors.RemainderByZero(strconv.FormatInt(int64(x), 10))
			}
			if x == math.MinInt64 && y == -1 {
				return nil, celerrors.Overflow("%", "int")
			}
			return x % y, nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			if y == 0 {
				return nil, celerrors.RemainderByZero(strconv.FormatUint(uint64(x), 10) + "u")
			}
			return x % y, nil
		}
	}
	return nil, celerrors.UnsupportedBinaryOperator("%", TypeName(a), TypeName(b))
}

// Negate implements unary -.
func Negate(a Value) (Value, error) {
	a = Materialize(a)
	switch x := a.(type) {
	case Int:
		if x == math.MinInt64 {
			return nil, celerrors.Overflow("-", "int")
		}
		return -x, nil
	case Float:
		return -x, nil
	case Duration:
		return result(x.Negate())
	}
	return nil, celerrors.UnsupportedUnaryOperator("-", TypeName(a))
}

// Not implements unary !.
func Not(a Value) (Value, error) {
	if b, ok := Materialize(a).(Bool); ok {
		return !b, nil
	}
	return nil, celerrors.UnsupportedUnaryOperator("!", TypeName(a))
}

// In implements the in operator: list membership or map key presence.
func In(elem, container Value) (Value, error) {
	switch c := Materialize(container).(type) {
	case List:
		for _, item := range c.items {
			if Equal(elem, item) {
				return True, nil
			}
		}
		return False, nil
	case Map:
		k, err := KeyFromValue(elem)
		if err != nil {
			if f, ok := Materialize(elem).(Float); ok && f == Float(math.Trunc(float64(f))) {
				return Bool(c.Contains(IntKey(int64(f)))), nil
			}
			return False, nil
		}
		return Bool(c.Contains(k)), nil
	}
	return nil, celerrors.UnsupportedBinaryOperator("in", TypeName(elem), TypeName(container))
}

// Index implements container[key] for lists, maps, strings and bytes.
func Index(container, key Value) (Value, error) {
	key = Materialize(key)
	if d, ok := container.(Dynamic); ok && d.dyn != nil {
		name, ok := key.(String)
		if !ok {
			return nil, celerrors.UnsupportedMapIndex(TypeName(key))
		}
		if v, found := d.dyn.Field(string(name)); found {
			return v, nil
		}
		return nil, celerrors.NoSuchKey(string(name))
	}
	switch c := Materialize(container).(type) {
	case List:
		i, err := listIndex(key)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(c.Len()) {
			return nil, celerrors.IndexOutOfBounds(i, c.Len())
		}
		return c.items[i], nil
	case Map:
		k, err := KeyFromValue(key)
		if err != nil {
			return nil, celerrors.UnsupportedMapIndex(TypeName(key))
		}
		v, ok := c.Get(k)
		if !ok {
			return nil, celerrors.NoSuchKey(k.String())
		}
		return v, nil
	case String:
		i, err := listIndex(key)
		if err != nil {
			return nil, err
		}
		n := utf8.RuneCountInString(string(c))
		if i < 0 || i >= int64(n) {
			return nil, celerrors.IndexOutOfBounds(i, n)
		}
		return String([]rune(string(c))[i : i+1]), nil
	case Bytes:
		i, err := listIndex(key)
		if err != nil {
			return nil, err
		}
		data := c.Data()
		if i < 0 || i >= int64(len(data)) {
			return nil, celerrors.IndexOutOfBounds(i, len(data))
		}
		return UInt(data[i]), nil
	}
	return nil, celerrors.UnsupportedIndexType(TypeName(container))
}

func listIndex(key Value) (int64, error) {
	switch k := key.(type) {
	case Int:
		return int64(k), nil
	case UInt:
		if k > math.MaxInt64 {
			return 0, celerrors.IndexOutOfBounds(math.MaxInt64, 0)
		}
		return int64(k), nil
	case Float:
		if f := float64(k); f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	}
	return 0, celerrors.UnsupportedListIndex(TypeName(key))
}

// Size returns the length of a string (in code points), bytes, list or map.
func Size(v Value) (Value, error) {
	switch x := Materialize(v).(type) {
	case String:
		return Int(utf8.RuneCountInString(string(x))), nil
	case Bytes:
		return Int(x.Len()), nil
	case List:
		return Int(x.Len()), nil
	case Map:
		return Int(x.Len()), nil
	}
	return nil, celerrors.NoSuchOverload("size")
}

// result adapts a typed result to the Value interface.
func result[T Value](v T, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
