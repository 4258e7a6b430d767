package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ConvertErrorKind categorizes a failed conversion to JSON.
type ConvertErrorKind string

const (
	// ConvertUnsupportedType means the value has no JSON representation.
	ConvertUnsupportedType ConvertErrorKind = "unsupported_type"

	// ConvertDurationOverflow means a duration's nanosecond count exceeds int64.
	ConvertDurationOverflow ConvertErrorKind = "duration_overflow"

	// ConvertInvalidJSON means the input text is not valid JSON.
	ConvertInvalidJSON ConvertErrorKind = "invalid_json"
)

// ConvertError is returned by the JSON bridge.
type ConvertError struct {
	Kind     ConvertErrorKind
	TypeName string
	Message  string
}

// Error returns the error message.
func (e *ConvertError) Error() string {
	switch {
	case e.TypeName != "":
		return fmt.Sprintf("json conversion: %s: %s", e.Kind, e.TypeName)
	case e.Message != "":
		return fmt.Sprintf("json conversion: %s: %s", e.Kind, e.Message)
	default:
		return fmt.Sprintf("json conversion: %s", e.Kind)
	}
}

// Is matches another ConvertError of the same kind.
func (e *ConvertError) Is(target error) bool {
	t, ok := target.(*ConvertError)
	return ok && t.Kind == e.Kind
}

// ErrDurationOverflow matches conversions of durations too long for int64 nanoseconds.
var ErrDurationOverflow = &ConvertError{Kind: ConvertDurationOverflow}

// ErrUnsupportedJSONType matches values with no JSON representation.
var ErrUnsupportedJSONType = &ConvertError{Kind: ConvertUnsupportedType}

// JSON converts v into the generic form used by encoding/json: nil, bool,
// int64, uint64, float64, string, []any and map[string]any.
//
// Bytes become base64 strings, timestamps RFC3339 strings and durations a
// nanosecond count. Objects are projected through json.Marshaler; dynamic
// values are materialized first.
func JSON(v Value) (any, error) {
	switch x := Materialize(v).(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(x), nil
	case Int:
		return int64(x), nil
	case UInt:
		return uint64(x), nil
	case Float:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, &ConvertError{Kind: ConvertUnsupportedType, Message: "non-finite double"}
		}
		return float64(x), nil
	case String:
		return string(x), nil
	case Bytes:
		return base64.StdEncoding.EncodeToString(x.Data()), nil
	case Timestamp:
		return x.Format(time.RFC3339Nano), nil
	case Duration:
		n, ok := x.Nanoseconds()
		if !ok {
			return nil, &ConvertError{Kind: ConvertDurationOverflow, Message: x.String()}
		}
		return n, nil
	case List:
		out := make([]any, x.Len())
		for i, item := range x.items {
			j, err := JSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case Map:
		out := make(map[string]any, x.Len())
		var err error
		x.Range(func(k Key, item Value) bool {
			var j any
			j, err = JSON(item)
			if err != nil {
				return false
			}
			out[k.String()] = j
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case Object:
		m, ok := x.opaque.(json.Marshaler)
		if !ok {
			return nil, &ConvertError{Kind: ConvertUnsupportedType, TypeName: x.TypeName()}
		}
		data, err := m.MarshalJSON()
		if err != nil {
			return nil, &ConvertError{Kind: ConvertUnsupportedType, TypeName: x.TypeName(), Message: err.Error()}
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, &ConvertError{Kind: ConvertInvalidJSON, Message: err.Error()}
		}
		return out, nil
	}
	return nil, &ConvertError{Kind: ConvertUnsupportedType, TypeName: TypeName(v)}
}

// MarshalJSON encodes v as JSON text.
func MarshalJSON(v Value) ([]byte, error) {
	j, err := JSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// Format renders v for display: JSON where possible, Go syntax otherwise.
func Format(v Value) string {
	if data, err := MarshalJSON(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
