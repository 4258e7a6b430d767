package errors

import (
	"fmt"
	"strings"
)

// Location is a position in expression source text.
type Location struct {
	Offset int // Byte offset (0-based)
	Line   int // Line number (1-based)
	Column int // Column number (1-based, in runes)
}

// String returns a human-readable representation of the location.
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// IsValid returns true if the location points into the source.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// ParseError is a single syntax error found while compiling an expression.
type ParseError struct {
	Message  string
	Location Location
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Location.IsValid() {
		return fmt.Sprintf("%s: %s", e.Location, e.Message)
	}
	return e.Message
}

// ParseErrors collects every syntax error of one compilation. The parser keeps
// going after an error so callers see all problems at once.
type ParseErrors struct {
	Source string
	Errors []*ParseError
}

// NewParseErrors creates an empty error list for source.
func NewParseErrors(source string) *ParseErrors {
	return &ParseErrors{
		Source: source,
		Errors: make([]*ParseError, 0),
	}
}

// Add appends a parse error.
func (pe *ParseErrors) Add(loc Location, format string, args ...any) {
	pe.Errors = append(pe.Errors, &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// HasErrors returns true if any error was recorded.
func (pe *ParseErrors) HasErrors() bool {
	return len(pe.Errors) > 0
}

// Count returns the number of recorded errors.
func (pe *ParseErrors) Count() int {
	return len(pe.Errors)
}

// Error formats all errors with a source snippet and caret per error.
func (pe *ParseErrors) Error() string {
	if !pe.HasErrors() {
		return ""
	}

	var sb strings.Builder
	if pe.Count() == 1 {
		sb.WriteString("parse error: ")
	} else {
		sb.WriteString(fmt.Sprintf("found %d parse errors:\n", pe.Count()))
	}

	lines := strings.Split(pe.Source, "\n")
	for i, err := range pe.Errors {
		if i > 0 || pe.Count() > 1 {
			sb.WriteString("  ")
		}
		sb.WriteString(err.Error())
		sb.WriteString("\n")

		if err.Location.IsValid() && err.Location.Line <= len(lines) {
			line := lines[err.Location.Line-1]
			sb.WriteString("   | ")
			sb.WriteString(line)
			sb.WriteString("\n   | ")
			if err.Location.Column > 1 {
				sb.WriteString(strings.Repeat(".", err.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// ToError returns nil if the list is empty, otherwise the list itself.
func (pe *ParseErrors) ToError() error {
	if !pe.HasErrors() {
		return nil
	}
	return pe
}
