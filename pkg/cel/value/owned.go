package value

import "bytes"

// Owned returns a deep copy of v that shares no memory with any caller
// buffer. Dynamic values are materialized. Use it when a result must outlive
// the request, response or JSON text it was evaluated against.
func Owned(v Value) Value {
	switch x := Materialize(v).(type) {
	case Bytes:
		return Bytes{data: bytes.Clone(x.Data())}
	case List:
		items := make([]Value, len(x.items))
		for i, item := range x.items {
			items[i] = Owned(item)
		}
		return List{items: items}
	case Map:
		out := make(map[Key]Value, x.Len())
		x.Range(func(k Key, item Value) bool {
			out[k] = Owned(item)
			return true
		})
		return Map{hashed: out}
	default:
		return x
	}
}

// IsBorrowed reports whether v, or anything nested inside it, aliases a
// caller buffer.
func IsBorrowed(v Value) bool {
	switch x := v.(type) {
	case Bytes:
		return x.borrowed
	case List:
		if x.borrowed {
			return true
		}
		for _, item := range x.items {
			if IsBorrowed(item) {
				return true
			}
		}
	case Map:
		if x.ordered != nil {
			return true
		}
		for _, item := range x.hashed {
			if IsBorrowed(item) {
				return true
			}
		}
	case Dynamic:
		return true
	}
	return false
}
