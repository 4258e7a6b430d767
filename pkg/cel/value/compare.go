package value

import (
	"bytes"
	"math"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
)

// Equal reports whether a and b are equal. Numbers compare across int, uint
// and double; values of unrelated kinds are simply unequal.
func Equal(a, b Value) bool {
	a, b = Materialize(a), Materialize(b)
	if a == nil || b == nil {
		return isNull(a) && isNull(b)
	}

	if isNumber(a) && isNumber(b) {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}

	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x.Data(), y.Data())
	case Timestamp:
		y, ok := b.(Timestamp)
		return ok && x.Equal(y.Time)
	case Duration:
		y, ok := b.(Duration)
		return ok && x.Compare(y) == 0
	case List:
		y, ok := b.(List)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.items {
			if !Equal(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		equal := true
		x.Range(func(k Key, v Value) bool {
			other, found := y.Get(k)
			if !found || !Equal(v, other) {
				equal = false
			}
			return equal
		})
		return equal
	case Object:
		y, ok := b.(Object)
		return ok && OpaqueEqual(x.opaque, y.opaque)
	}
	return false
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

func isNumber(v Value) bool {
	switch v.(type) {
	case Int, UInt, Float:
		return true
	}
	return false
}

// Compare orders a and b, returning -1, 0 or 1. Ordering is defined for
// numbers (across int, uint and double), strings, bytes, bools, timestamps and
// durations; anything else fails with ValuesNotComparable.
func Compare(a, b Value) (int, error) {
	a, b = Materialize(a), Materialize(b)
	if isNumber(a) && isNumber(b) {
		if c, ok := compareNumbers(a, b); ok {
			return c, nil
		}
		return 0, celerrors.ValuesNotComparable(TypeName(a), TypeName(b))
	}

	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return cmp3(x < y, x > y), nil
		}
	case Bytes:
		if y, ok := b.(Bytes); ok {
			return bytes.Compare(x.Data(), y.Data()), nil
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			return cmp3(!bool(x) && bool(y), bool(x) && !bool(y)), nil
		}
	case Timestamp:
		if y, ok := b.(Timestamp); ok {
			return x.Time.Compare(y.Time), nil
		}
	case Duration:
		if y, ok := b.(Duration); ok {
			return x.Compare(y), nil
		}
	}
	return 0, celerrors.ValuesNotComparable(TypeName(a), TypeName(b))
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// compareNumbers orders two numeric values without lossy conversion between
// int64 and uint64. It returns false when a NaN is involved.
func compareNumbers(a, b Value) (int, bool) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp3(x < y, x > y), true
		case UInt:
			if x < 0 {
				return -1, true
			}
			return cmp3(uint64(x) < uint64(y), uint64(x) > uint64(y)), true
		case Float:
			return compareFloat(float64(x), float64(y))
		}
	case UInt:
		switch y := b.(type) {
		case Int:
			c, ok := compareNumbers(y, x)
			return -c, ok
		case UInt:
			return cmp3(x < y, x > y), true
		case Float:
			return compareFloat(float64(x), float64(y))
		}
	case Float:
		switch y := b.(type) {
		case Int:
			return compareFloat(float64(x), float64(y))
		case UInt:
			return compareFloat(float64(x), float64(y))
		case Float:
			return compareFloat(float64(x), float64(y))
		}
	}
	return 0, false
}

func compareFloat(a, b float64) (int, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	return cmp3(a < b, a > b), true
}
