package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	bytesType    = reflect.TypeOf([]byte(nil))
)

// FromGo converts a Go value into the value model. Byte slices are borrowed,
// structs become Dynamic values driven by their FieldTable, and types with no
// counterpart (functions, channels) become opaque host objects.
func FromGo(x any) Value {
	switch v := x.(type) {
	case nil:
		return NullValue
	case Value:
		return v
	case DynamicType:
		return NewDynamic(v)
	case Opaque:
		return NewObject(v)
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int8:
		return Int(v)
	case int16:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case uint:
		return UInt(v)
	case uint8:
		return UInt(v)
	case uint16:
		return UInt(v)
	case uint32:
		return UInt(v)
	case uint64:
		return UInt(v)
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	case string:
		return String(v)
	case []byte:
		return BorrowBytes(v)
	case time.Time:
		return Timestamp{Time: v}
	case time.Duration:
		return DurationOf(v)
	case json.Number:
		return fromJSONNumber(v)
	case map[string]any:
		out := make(map[Key]Value, len(v))
		for k, e := range v {
			out[StringKey(k)] = FromGo(e)
		}
		return NewMap(out)
	case []any:
		items := make([]Value, len(v))
		for i, e := range v {
			items[i] = FromGo(e)
		}
		return NewList(items...)
	case map[string]string:
		out := make(map[Key]Value, len(v))
		for k, e := range v {
			out[StringKey(k)] = String(e)
		}
		return NewMap(out)
	case []string:
		items := make([]Value, len(v))
		for i, e := range v {
			items[i] = String(e)
		}
		return NewList(items...)
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) Value {
	if !rv.IsValid() {
		return NullValue
	}
	if rv.CanInterface() {
		switch rv.Type() {
		case timeType, durationType, bytesType:
			return FromGo(rv.Interface())
		}
		if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Pointer {
			switch x := rv.Interface().(type) {
			case Value, DynamicType, Opaque:
				return FromGo(x)
			}
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NullValue
		}
		if rv.CanInterface() {
			switch x := rv.Interface().(type) {
			case Value, DynamicType, Opaque:
				return FromGo(x)
			}
		}
		return fromReflect(rv.Elem())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UInt(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		return String(rv.String())
	case reflect.Struct:
		if rv.CanInterface() {
			switch x := rv.Interface().(type) {
			case Value, DynamicType, Opaque:
				return FromGo(x)
			}
		}
		return newStructDynamic(rv)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NewList()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.Slice {
			return BorrowBytes(rv.Bytes())
		}
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = fromReflect(rv.Index(i))
		}
		return BorrowList(items)
	case reflect.Map:
		out := make(map[Key]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := KeyFromValue(fromReflect(iter.Key()))
			if err != nil {
				k = StringKey(fmt.Sprint(iter.Key().Interface()))
			}
			out[k] = fromReflect(iter.Value())
		}
		return NewMap(out)
	}
	if rv.CanInterface() {
		return NewObject(hostValue{v: rv.Interface()})
	}
	return NullValue
}

func fromJSONNumber(n json.Number) Value {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return UInt(u)
	}
	f, _ := strconv.ParseFloat(s, 64)
	return Float(f)
}

// ParseJSON decodes JSON text. Integral numbers become Int (or UInt when they
// exceed int64), other numbers become Float.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ConvertError{Kind: ConvertInvalidJSON, Message: err.Error()}
	}
	return FromGo(raw), nil
}

// hostValue carries a Go value with no value-model counterpart.
type hostValue struct {
	v any
}

func (h hostValue) TypeName() string {
	return "go:" + reflect.TypeOf(h.v).String()
}

func (h hostValue) EqualOpaque(other Opaque) bool {
	o, ok := other.(hostValue)
	if !ok || reflect.TypeOf(h.v) != reflect.TypeOf(o.v) {
		return false
	}
	if !reflect.ValueOf(h.v).Comparable() {
		return false
	}
	return h.v == o.v
}
