package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// A rule file is rejected at one of three stages, each with its own error
// type: reading (LoadError), decoding YAML (ParseError) and checking rules
// and compiling their expressions (ValidationError). The loader reports
// every ValidationError in a file at once through ErrorList, and the
// "rules validate" command flattens them back into findings.

// LoadError means the file could not be read at all.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

func (e *LoadError) Error() string {
	msg := "failed to load rule file " + strconv.Quote(e.FilePath) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ParseError means the file is not a valid rule document. Line is
// 1-indexed and zero when the decoder gave no position.
type ParseError struct {
	FilePath string
	Line     int
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	where := strconv.Quote(e.FilePath)
	if e.Line > 0 {
		where += " at line " + strconv.Itoa(e.Line)
	}
	return "parse error in " + where + ": " + e.Message
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ValidationError locates a problem with one rule. FieldPath is in the
// form rules[2].expr; Cause holds the expression's *errors.ParseErrors
// when the rule failed to compile.
type ValidationError struct {
	Rule      string
	FieldPath string
	Message   string
	Cause     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation error")
	if e.Rule != "" {
		fmt.Fprintf(&b, " in rule %q", e.Rule)
	}
	if e.FieldPath != "" {
		b.WriteString(" at " + e.FieldPath)
	}
	b.WriteString(" " + e.Message)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// RuleError wraps the evaluation failure of a single rule so the decision
// names the rule that broke.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string { return fmt.Sprintf("rule %q: %v", e.Rule, e.Err) }

func (e *RuleError) Unwrap() error { return e.Err }

// ErrorList accumulates the problems found in one file.
type ErrorList struct {
	Errors []error
}

func (e *ErrorList) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %v\n", i+1, err)
	}
	return b.String()
}

// Unwrap lets errors.Is and errors.As search every collected error.
func (e *ErrorList) Unwrap() []error { return e.Errors }

// Add appends err unless it is nil.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorList) HasErrors() bool { return len(e.Errors) > 0 }

// ToError collapses the list: nil when empty, the sole error when there is
// one, the list otherwise.
func (e *ErrorList) ToError() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}
