package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind categorizes an evaluation-time failure. The set is closed: every
// ExecutionError carries exactly one of the kinds below.
type ErrorKind string

const (
	KindInvalidArgumentCount                  ErrorKind = "invalid_argument_count"
	KindUnsupportedTargetType                 ErrorKind = "unsupported_target_type"
	KindUnsupportedKeyType                    ErrorKind = "unsupported_key_type"
	KindUnsupportedListIndex                  ErrorKind = "unsupported_list_index"
	KindUnsupportedMapIndex                   ErrorKind = "unsupported_map_index"
	KindUnsupportedIndexType                  ErrorKind = "unsupported_index_type"
	KindNotSupportedAsMethod                  ErrorKind = "not_supported_as_method"
	KindNoSuchKey                             ErrorKind = "no_such_key"
	KindNoSuchOverload                        ErrorKind = "no_such_overload"
	KindUndeclaredReference                   ErrorKind = "undeclared_reference"
	KindMissingArgumentOrTarget               ErrorKind = "missing_argument_or_target"
	KindValuesNotComparable                   ErrorKind = "values_not_comparable"
	KindUnsupportedUnaryOperator              ErrorKind = "unsupported_unary_operator"
	KindUnsupportedBinaryOperator             ErrorKind = "unsupported_binary_operator"
	KindUnsupportedFunctionCallIdentifierType ErrorKind = "unsupported_function_call_identifier_type"
	KindUnsupportedStructConstruction         ErrorKind = "unsupported_struct_construction"
	KindFunctionError                         ErrorKind = "function_error"
	KindDivisionByZero                        ErrorKind = "division_by_zero"
	KindRemainderByZero                       ErrorKind = "remainder_by_zero"
	KindOverflow                              ErrorKind = "overflow"
	KindConversionError                       ErrorKind = "conversion_error"
	KindIndexOutOfBounds                      ErrorKind = "index_out_of_bounds"
	KindUnexpectedType                        ErrorKind = "unexpected_type"
)

// ExecutionError is returned when evaluating a compiled expression fails.
// It is never produced by the parser; see ParseErrors for compile-time failures.
type ExecutionError struct {
	// Kind is the failure category.
	Kind ErrorKind

	// Name identifies the function, key, identifier or operator involved, when any.
	Name string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error for function-reported failures.
	Cause error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Name, e.Message)
	case e.Name != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Name)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bare kind sentinel matching this error's kind.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	if t.Name == "" && t.Message == "" && t.Cause == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Kind sentinels for use with errors.Is.
var (
	ErrInvalidArgumentCount                  = &ExecutionError{Kind: KindInvalidArgumentCount}
	ErrUnsupportedTargetType                 = &ExecutionError{Kind: KindUnsupportedTargetType}
	ErrUnsupportedKeyType                    = &ExecutionError{Kind: KindUnsupportedKeyType}
	ErrUnsupportedListIndex                  = &ExecutionError{Kind: KindUnsupportedListIndex}
	ErrUnsupportedMapIndex                   = &ExecutionError{Kind: KindUnsupportedMapIndex}
	ErrUnsupportedIndexType                  = &ExecutionError{Kind: KindUnsupportedIndexType}
	ErrNotSupportedAsMethod                  = &ExecutionError{Kind: KindNotSupportedAsMethod}
	ErrNoSuchKey                             = &ExecutionError{Kind: KindNoSuchKey}
	ErrNoSuchOverload                        = &ExecutionError{Kind: KindNoSuchOverload}
	ErrUndeclaredReference                   = &ExecutionError{Kind: KindUndeclaredReference}
	ErrValuesNotComparable                   = &ExecutionError{Kind: KindValuesNotComparable}
	ErrUnsupportedUnary                      = &ExecutionError{Kind: KindUnsupportedUnaryOperator}
	ErrUnsupportedBinary                     = &ExecutionError{Kind: KindUnsupportedBinaryOperator}
	ErrUnsupportedFunctionCallIdentifierType = &ExecutionError{Kind: KindUnsupportedFunctionCallIdentifierType}
	ErrFunctionError                         = &ExecutionError{Kind: KindFunctionError}
	ErrDivisionByZero                        = &ExecutionError{Kind: KindDivisionByZero}
	ErrRemainderByZero                       = &ExecutionError{Kind: KindRemainderByZero}
	ErrOverflow                              = &ExecutionError{Kind: KindOverflow}
	ErrConversion                            = &ExecutionError{Kind: KindConversionError}
	ErrIndexOutOfBounds                      = &ExecutionError{Kind: KindIndexOutOfBounds}
	ErrUnexpectedType                        = &ExecutionError{Kind: KindUnexpectedType}
	ErrUnsupportedStruct                     = &ExecutionError{Kind: KindUnsupportedStructConstruction}
	ErrMissingArgumentOrTarget               = &ExecutionError{Kind: KindMissingArgumentOrTarget}
)

// KindOf returns the kind of err if it is (or wraps) an ExecutionError.
func KindOf(err error) (ErrorKind, bool) {
	var ee *ExecutionError
	if stderrors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

// InvalidArgumentCount reports a call with the wrong number of arguments.
func InvalidArgumentCount(expected, actual int) *ExecutionError {
	return &ExecutionError{
		Kind:    KindInvalidArgumentCount,
		Message: fmt.Sprintf("expected %d arguments, got %d", expected, actual),
	}
}

// UnsupportedTargetType reports a receiver whose type cannot serve the call.
func UnsupportedTargetType(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedTargetType, Name: typeName}
}

// UnsupportedKeyType reports a map key expression that is not int, uint, bool or string.
func UnsupportedKeyType(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedKeyType, Name: typeName}
}

// RepeatedMapKey reports a map literal that sets the same key twice.
func RepeatedMapKey(key string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedKeyType, Name: key, Message: "repeated in map literal"}
}

// UnsupportedListIndex reports indexing a list with a non-integer.
func UnsupportedListIndex(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedListIndex, Name: typeName}
}

// UnsupportedMapIndex reports indexing a map with a value that cannot be a key.
func UnsupportedMapIndex(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedMapIndex, Name: typeName}
}

// UnsupportedIndexType reports indexing into a value that is not indexable.
func UnsupportedIndexType(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedIndexType, Name: typeName}
}

// NotSupportedAsMethod reports a function that cannot be called with the given receiver.
func NotSupportedAsMethod(function, typeName string) *ExecutionError {
	return &ExecutionError{
		Kind:    KindNotSupportedAsMethod,
		Name:    function,
		Message: "not supported on " + typeName,
	}
}

// NoSuchKey reports a field or key missing from an existing container.
func NoSuchKey(key string) *ExecutionError {
	return &ExecutionError{Kind: KindNoSuchKey, Name: key}
}

// NoSuchOverload reports a function invoked with argument types it does not accept.
func NoSuchOverload(function string) *ExecutionError {
	return &ExecutionError{Kind: KindNoSuchOverload, Name: function}
}

// UndeclaredReference reports an identifier or function that cannot be resolved.
func UndeclaredReference(name string) *ExecutionError {
	return &ExecutionError{Kind: KindUndeclaredReference, Name: name}
}

// MissingArgumentOrTarget reports a method called without its receiver or argument.
func MissingArgumentOrTarget(function string) *ExecutionError {
	return &ExecutionError{Kind: KindMissingArgumentOrTarget, Name: function}
}

// ValuesNotComparable reports an ordering comparison between incompatible values.
func ValuesNotComparable(left, right string) *ExecutionError {
	return &ExecutionError{
		Kind:    KindValuesNotComparable,
		Message: fmt.Sprintf("%s and %s", left, right),
	}
}

// UnsupportedUnaryOperator reports a unary operator applied to an unsupported type.
func UnsupportedUnaryOperator(op, typeName string) *ExecutionError {
	return &ExecutionError{
		Kind:    KindUnsupportedUnaryOperator,
		Name:    op,
		Message: typeName,
	}
}

// UnsupportedBinaryOperator reports a binary operator applied to unsupported operand types.
func UnsupportedBinaryOperator(op, left, right string) *ExecutionError {
	return &ExecutionError{
		Kind:    KindUnsupportedBinaryOperator,
		Name:    op,
		Message: fmt.Sprintf("%s %s %s", left, op, right),
	}
}

// UnsupportedFunctionCallIdentifierType reports a call whose callee is not an identifier.
func UnsupportedFunctionCallIdentifierType(shape string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedFunctionCallIdentifierType, Name: shape}
}

// UnsupportedStructConstruction reports a struct literal of an unknown type.
func UnsupportedStructConstruction(typeName string) *ExecutionError {
	return &ExecutionError{Kind: KindUnsupportedStructConstruction, Name: typeName}
}

// FunctionError reports a domain-specific failure raised by a function implementation.
func FunctionError(function, message string) *ExecutionError {
	return &ExecutionError{Kind: KindFunctionError, Name: function, Message: message}
}

// WrapFunctionError wraps cause as a FunctionError for function. ExecutionErrors pass through.
func WrapFunctionError(function string, cause error) error {
	if cause == nil {
		return nil
	}
	var ee *ExecutionError
	if stderrors.As(cause, &ee) {
		return cause
	}
	return &ExecutionError{Kind: KindFunctionError, Name: function, Message: cause.Error(), Cause: cause}
}

// DivisionByZero reports an integer division by zero.
func DivisionByZero(operand string) *ExecutionError {
	return &ExecutionError{Kind: KindDivisionByZero, Message: operand + " / 0"}
}

// RemainderByZero reports an integer remainder by zero.
func RemainderByZero(operand string) *ExecutionError {
	return &ExecutionError{Kind: KindRemainderByZero, Message: operand + " % 0"}
}

// Overflow reports a fixed-width integer or timestamp range overflow.
func Overflow(op, detail string) *ExecutionError {
	return &ExecutionError{Kind: KindOverflow, Name: op, Message: detail}
}

// ConversionError reports a failed type conversion.
func ConversionError(message string) *ExecutionError {
	return &ExecutionError{Kind: KindConversionError, Message: message}
}

// IndexOutOfBounds reports a list or string index outside its length.
func IndexOutOfBounds(index int64, length int) *ExecutionError {
	return &ExecutionError{
		Kind:    KindIndexOutOfBounds,
		Message: fmt.Sprintf("index %d, length %d", index, length),
	}
}

// UnexpectedType reports a value of the wrong type, for example a non-bool condition.
func UnexpectedType(got, want string) *ExecutionError {
	return &ExecutionError{
		Kind:    KindUnexpectedType,
		Message: fmt.Sprintf("got %s, want %s", got, want),
	}
}
