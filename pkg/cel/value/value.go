package value

import (
	"bytes"
	"strconv"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindTimestamp
	KindDuration
	KindObject
	KindDynamic
)

// String returns the type name as it appears in expressions and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null_type"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindTimestamp:
		return "timestamp"
	case KindDuration:
		return "duration"
	case KindObject:
		return "object"
	case KindDynamic:
		return "dynamic"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a runtime datum. The set of implementations is closed: Int, UInt,
// Float, String, Bytes, Bool, Null, List, Map, Timestamp, Duration, Object and
// Dynamic.
//
// A Value may alias memory owned by the caller (see BorrowBytes, BorrowList and
// BorrowMap). Such a value is only valid while the aliased buffer is left
// unmodified; use Owned to obtain a copy that outlives it.
type Value interface {
	Kind() Kind
	isValue()
}

// Int is a signed 64-bit integer.
type Int int64

// UInt is an unsigned 64-bit integer.
type UInt uint64

// Float is an IEEE-754 double.
type Float float64

// String is immutable UTF-8 text. Go strings are already shared and
// immutable, so a String never needs an owned/borrowed distinction.
type String string

// Bool is a boolean.
type Bool bool

// Null is the null value.
type Null struct{}

// NullValue is the single null instance.
var NullValue = Null{}

// True and False are the boolean constants.
var (
	True  = Bool(true)
	False = Bool(false)
)

func (Int) Kind() Kind    { return KindInt }
func (UInt) Kind() Kind   { return KindUInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Bool) Kind() Kind   { return KindBool }
func (Null) Kind() Kind   { return KindNull }

func (Int) isValue()    {}
func (UInt) isValue()   {}
func (Float) isValue()  {}
func (String) isValue() {}
func (Bool) isValue()   {}
func (Null) isValue()   {}

// Bytes is a byte sequence. It either borrows a caller slice, owns a private
// copy, or reads through a shared *bytes.Buffer handle.
type Bytes struct {
	data     []byte
	buf      *bytes.Buffer
	borrowed bool
}

// BorrowBytes wraps b without copying. b must not be modified while the
// returned value is in use.
func BorrowBytes(b []byte) Bytes {
	return Bytes{data: b, borrowed: true}
}

// OwnedBytes copies b into a value that owns its storage.
func OwnedBytes(b []byte) Bytes {
	return Bytes{data: bytes.Clone(b)}
}

// BytesFromString builds an owned byte value from s.
func BytesFromString(s string) Bytes {
	return Bytes{data: []byte(s)}
}

// BufferBytes wraps a shared buffer handle. The buffer's unread portion is the value.
func BufferBytes(buf *bytes.Buffer) Bytes {
	return Bytes{buf: buf, borrowed: true}
}

// Data returns the underlying bytes. Callers must not modify the result.
func (b Bytes) Data() []byte {
	if b.buf != nil {
		return b.buf.Bytes()
	}
	return b.data
}

// Len returns the number of bytes.
func (b Bytes) Len() int {
	return len(b.Data())
}

// IsBorrowed reports whether the bytes alias a caller buffer.
func (b Bytes) IsBorrowed() bool {
	return b.borrowed
}

func (Bytes) Kind() Kind { return KindBytes }
func (Bytes) isValue()   {}

// List is an ordered sequence of values.
type List struct {
	items    []Value
	borrowed bool
}

// NewList builds a list that takes ownership of items.
func NewList(items ...Value) List {
	return List{items: items}
}

// BorrowList wraps items without copying. The slice must not be modified
// while the list is in use.
func BorrowList(items []Value) List {
	return List{items: items, borrowed: true}
}

// Len returns the number of elements.
func (l List) Len() int {
	return len(l.items)
}

// Get returns the element at index i. The caller checks bounds.
func (l List) Get(i int) Value {
	return l.items[i]
}

// Items returns the elements. Callers must not modify the result.
func (l List) Items() []Value {
	return l.items
}

// IsBorrowed reports whether the list aliases a caller slice.
func (l List) IsBorrowed() bool {
	return l.borrowed
}

func (List) Kind() Kind { return KindList }
func (List) isValue()   {}

// Object holds an opaque foreign value.
type Object struct {
	opaque Opaque
}

// NewObject wraps o.
func NewObject(o Opaque) Object {
	return Object{opaque: o}
}

// Opaque returns the wrapped foreign value.
func (o Object) Opaque() Opaque {
	return o.opaque
}

// TypeName returns the stable type name of the wrapped value.
func (o Object) TypeName() string {
	if o.opaque == nil {
		return ""
	}
	return o.opaque.TypeName()
}

func (Object) Kind() Kind { return KindObject }
func (Object) isValue()   {}

// Dynamic defers conversion of a host structure until a field or the whole
// value is needed.
type Dynamic struct {
	dyn DynamicType
}

// DynamicType returns the wrapped host structure.
func (d Dynamic) DynamicType() DynamicType {
	return d.dyn
}

func (Dynamic) Kind() Kind { return KindDynamic }
func (Dynamic) isValue()   {}

// TypeName returns the expression-level type name of v.
func TypeName(v Value) string {
	if v == nil {
		return "null_type"
	}
	if o, ok := v.(Object); ok {
		return o.TypeName()
	}
	return v.Kind().String()
}

// Materialize resolves a Dynamic value into a concrete Value. Other values are
// returned unchanged.
func Materialize(v Value) Value {
	for {
		d, ok := v.(Dynamic)
		if !ok || d.dyn == nil {
			return v
		}
		v = d.dyn.Materialize()
	}
}

// Truthy returns the boolean held by v, or false if v is not a Bool.
func Truthy(v Value) (bool, bool) {
	b, ok := Materialize(v).(Bool)
	return bool(b), ok
}
