package interpreter

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

func installConversions(c *Context) {
	c.AddFunction("string", conversion(toString))
	c.AddFunction("int", conversion(toInt))
	c.AddFunction("uint", conversion(toUInt))
	c.AddFunction("double", conversion(toDouble))
	c.AddFunction("bytes", conversion(toBytes))
	c.AddFunction("bool", conversion(toBool))
	c.AddFunction("dyn", conversion(func(v value.Value) (value.Value, error) { return v, nil }))
	c.AddFunction("type", conversion(func(v value.Value) (value.Value, error) {
		return value.String(value.TypeName(value.Materialize(v))), nil
	}))
}

func conversion(fn func(value.Value) (value.Value, error)) Function {
	return func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		return fn(ops[0])
	}
}

func cannotConvert(v value.Value, to string) error {
	return celerrors.ConversionError(fmt.Sprintf("cannot convert %s to %s", value.TypeName(v), to))
}

func toString(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.String:
		return x, nil
	case value.Int:
		return value.String(strconv.FormatInt(int64(x), 10)), nil
	case value.UInt:
		return value.String(strconv.FormatUint(uint64(x), 10)), nil
	case value.Float:
		return value.String(strconv.FormatFloat(float64(x), 'g', -1, 64)), nil
	case value.Bool:
		return value.String(strconv.FormatBool(bool(x))), nil
	case value.Bytes:
		if !utf8.Valid(x.Data()) {
			return nil, celerrors.ConversionError("bytes are not valid UTF-8")
		}
		return value.String(string(x.Data())), nil
	case value.Timestamp:
		return value.String(x.UTC().Format(time.RFC3339Nano)), nil
	case value.Duration:
		return value.String(x.String()), nil
	case value.Object:
		if s, ok := x.Opaque().(fmt.Stringer); ok {
			return value.String(s.String()), nil
		}
		return nil, cannotConvert(x, "string")
	default:
		return nil, cannotConvert(x, "string")
	}
}

func toInt(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Int:
		return x, nil
	case value.UInt:
		if x > math.MaxInt64 {
			return nil, celerrors.Overflow("int", "uint value out of range")
		}
		return value.Int(x), nil
	case value.Float:
		f := math.Trunc(float64(x))
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, celerrors.Overflow("int", "double value out of range")
		}
		return value.Int(f), nil
	case value.String:
		n, err := strconv.ParseInt(string(x), 10, 64)
		if err != nil {
			return nil, celerrors.ConversionError(fmt.Sprintf("cannot convert %q to int", string(x)))
		}
		return value.Int(n), nil
	case value.Timestamp:
		return value.Int(x.Unix()), nil
	default:
		return nil, cannotConvert(x, "int")
	}
}

func toUInt(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.UInt:
		return x, nil
	case value.Int:
		if x < 0 {
			return nil, celerrors.Overflow("uint", "negative int value")
		}
		return value.UInt(x), nil
	case value.Float:
		f := math.Trunc(float64(x))
		if math.IsNaN(f) || f < 0 || f >= math.MaxUint64 {
			return nil, celerrors.Overflow("uint", "double value out of range")
		}
		return value.UInt(f), nil
	case value.String:
		n, err := strconv.ParseUint(string(x), 10, 64)
		if err != nil {
			return nil, celerrors.ConversionError(fmt.Sprintf("cannot convert %q to uint", string(x)))
		}
		return value.UInt(n), nil
	default:
		return nil, cannotConvert(x, "uint")
	}
}

func toDouble(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Float:
		return x, nil
	case value.Int:
		return value.Float(x), nil
	case value.UInt:
		return value.Float(x), nil
	case value.String:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil, celerrors.ConversionError(fmt.Sprintf("cannot convert %q to double", string(x)))
		}
		return value.Float(f), nil
	default:
		return nil, cannotConvert(x, "double")
	}
}

func toBytes(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Bytes:
		return x, nil
	case value.String:
		return value.BytesFromString(string(x)), nil
	default:
		return nil, cannotConvert(x, "bytes")
	}
}

func toBool(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Bool:
		return x, nil
	case value.String:
		b, err := strconv.ParseBool(string(x))
		if err != nil {
			return nil, celerrors.ConversionError(fmt.Sprintf("cannot convert %q to bool", string(x)))
		}
		return value.Bool(b), nil
	default:
		return nil, cannotConvert(x, "bool")
	}
}
