package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{name: "kind sentinel", err: NoSuchKey("a"), target: ErrNoSuchKey, want: true},
		{name: "other kind", err: NoSuchKey("a"), target: ErrUndeclaredReference, want: false},
		{name: "wrapped", err: fmt.Errorf("rule deny: %w", DivisionByZero("1")), target: ErrDivisionByZero, want: true},
		{name: "index type", err: UnsupportedIndexType("int"), target: ErrUnsupportedIndexType, want: true},
		{name: "call identifier shape", err: UnsupportedFunctionCallIdentifierType("unnamed call"), target: ErrUnsupportedFunctionCallIdentifierType, want: true},
		{name: "index type is not a map index", err: UnsupportedIndexType("int"), target: ErrUnsupportedMapIndex, want: false},
		{name: "specific instance is not a sentinel", err: NoSuchKey("a"), target: NoSuchKey("a"), want: false},
		{name: "parse errors never match", err: &ParseErrors{Errors: []*ParseError{{Message: "x"}}}, target: ErrFunctionError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionError_Error(t *testing.T) {
	tests := []struct {
		err  *ExecutionError
		want string
	}{
		{err: NoSuchKey("baz"), want: "no_such_key: baz"},
		{err: FunctionError("matches", "bad pattern"), want: "function_error: matches: bad pattern"},
		{err: InvalidArgumentCount(2, 1), want: "invalid_argument_count: expected 2 arguments, got 1"},
		{err: &ExecutionError{Kind: KindOverflow}, want: "overflow"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapFunctionError(t *testing.T) {
	if WrapFunctionError("f", nil) != nil {
		t.Error("WrapFunctionError(nil) != nil")
	}

	cause := stderrors.New("boom")
	err := WrapFunctionError("f", cause)
	if !stderrors.Is(err, ErrFunctionError) {
		t.Errorf("WrapFunctionError() = %v, want function error", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("WrapFunctionError() does not unwrap to its cause")
	}

	inner := NoSuchKey("a")
	if got := WrapFunctionError("f", inner); got != error(inner) {
		t.Errorf("WrapFunctionError(ExecutionError) = %v, want it unchanged", got)
	}

	kind, ok := KindOf(fmt.Errorf("ctx: %w", err))
	if !ok || kind != KindFunctionError {
		t.Errorf("KindOf() = %v, %v", kind, ok)
	}
	if _, ok := KindOf(cause); ok {
		t.Error("KindOf(plain error) reported a kind")
	}
}

func TestParseErrors(t *testing.T) {
	pe := NewParseErrors("a &&\n  $")
	if pe.ToError() != nil {
		t.Fatal("ToError() on empty list != nil")
	}

	pe.Add(Location{Offset: 7, Line: 2, Column: 3}, "unexpected character %q", '$')
	if pe.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", pe.Count())
	}
	msg := pe.Error()
	for _, want := range []string{"parse error: 2:3: unexpected character '$'", "   |   $", "   | ..^"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	pe.Add(Location{}, "too many errors")
	msg = pe.ToError().Error()
	if !strings.HasPrefix(msg, "found 2 parse errors:") {
		t.Errorf("Error() = %q, want a count header", msg)
	}
	if !strings.Contains(msg, "  too many errors") {
		t.Errorf("Error() = %q, want the location-less error listed", msg)
	}

	var ee *ExecutionError
	if stderrors.As(pe.ToError(), &ee) {
		t.Error("ParseErrors converted to an ExecutionError")
	}
}
