package value

import (
	"math"
	"strconv"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
)

// Key is a map key. Only int, uint, bool and string values can be keys.
//
// Key is a comparable struct, so the same value serves both owned hashed maps
// and borrowed ordered maps: a key built from a borrowed string shares the
// string's storage and hashes identically to one built from an owned copy.
type Key struct {
	kind Kind
	i    int64
	u    uint64
	s    string
	b    bool
}

// IntKey builds an int key.
func IntKey(i int64) Key { return Key{kind: KindInt, i: i} }

// UIntKey builds a uint key.
func UIntKey(u uint64) Key { return Key{kind: KindUInt, u: u} }

// StringKey builds a string key.
func StringKey(s string) Key { return Key{kind: KindString, s: s} }

// BoolKey builds a bool key.
func BoolKey(b bool) Key { return Key{kind: KindBool, b: b} }

// KeyFromValue converts v to a Key, failing with UnsupportedKeyType for any
// other kind of value.
func KeyFromValue(v Value) (Key, error) {
	switch t := Materialize(v).(type) {
	case Int:
		return IntKey(int64(t)), nil
	case UInt:
		return UIntKey(uint64(t)), nil
	case String:
		return StringKey(string(t)), nil
	case Bool:
		return BoolKey(bool(t)), nil
	default:
		return Key{}, celerrors.UnsupportedKeyType(TypeName(v))
	}
}

// Kind returns the kind of value the key holds.
func (k Key) Kind() Kind {
	return k.kind
}

// Value converts the key back into a Value.
func (k Key) Value() Value {
	switch k.kind {
	case KindInt:
		return Int(k.i)
	case KindUInt:
		return UInt(k.u)
	case KindBool:
		return Bool(k.b)
	default:
		return String(k.s)
	}
}

// String renders the key as a JSON object key.
func (k Key) String() string {
	switch k.kind {
	case KindInt:
		return strconv.FormatInt(k.i, 10)
	case KindUInt:
		return strconv.FormatUint(k.u, 10)
	case KindBool:
		return strconv.FormatBool(k.b)
	default:
		return k.s
	}
}

// numericAlias returns the other-signedness key holding the same number, so
// that 5 and 5u address the same entry.
func (k Key) numericAlias() (Key, bool) {
	switch k.kind {
	case KindInt:
		if k.i >= 0 {
			return UIntKey(uint64(k.i)), true
		}
	case KindUInt:
		if k.u <= math.MaxInt64 {
			return IntKey(int64(k.u)), true
		}
	}
	return Key{}, false
}

// less orders keys for deterministic output: bools, then numbers, then strings.
func (k Key) less(o Key) bool {
	rank := func(k Key) int {
		switch k.kind {
		case KindBool:
			return 0
		case KindInt, KindUInt:
			return 1
		default:
			return 2
		}
	}
	if rank(k) != rank(o) {
		return rank(k) < rank(o)
	}
	switch k.kind {
	case KindBool:
		return !k.b && o.b
	case KindString:
		return k.s < o.s
	}
	c, _ := compareNumbers(k.Value(), o.Value())
	return c < 0
}
