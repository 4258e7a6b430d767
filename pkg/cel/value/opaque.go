package value

import "reflect"

// Opaque is a foreign value that takes part in evaluation without being
// converted into the value model. TypeName must be stable: it gates every
// equality check and method call before any downcast is attempted.
type Opaque interface {
	TypeName() string
}

// OpaqueEqualer is implemented by opaque values with their own notion of
// equality. EqualOpaque is only called when both type names match; the
// implementation downcasts other and returns false if that fails.
type OpaqueEqualer interface {
	Opaque
	EqualOpaque(other Opaque) bool
}

// Call is the view of a function invocation handed to opaque methods.
type Call interface {
	// Function returns the called function name.
	Function() string

	// ArgCount returns the number of arguments, not counting the receiver.
	ArgCount() int

	// Arg evaluates and returns argument i.
	Arg(i int) (Value, error)
}

// MethodProvider is implemented by opaque values that expose host-defined
// methods. handled is false when the value has no method with that name, in
// which case the caller falls back to the global function table.
type MethodProvider interface {
	Opaque
	CallFunction(name string, call Call) (result Value, handled bool, err error)
}

// OpaqueEqual compares two opaque values. Values with different type names
// are never equal; matching names defer to OpaqueEqualer and otherwise to
// identity for comparable types.
func OpaqueEqual(a, b Opaque) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.TypeName() != b.TypeName() {
		return false
	}
	if eq, ok := a.(OpaqueEqualer); ok {
		return eq.EqualOpaque(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
