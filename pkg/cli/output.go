package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat is the value of a command's --format flag.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseFormat checks a --format value; the empty string selects text.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q: must be 'text' or 'json'", s)
}

// Texter is implemented by command results that have their own terminal
// rendering, such as rule validation reports and decision tables.
type Texter interface {
	Text() string
}

// Formatter renders a command result for --format.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// NewFormatter returns the formatter for format. Anything other than
// FormatJSON renders as text.
func NewFormatter(format OutputFormat) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{Indent: true}
	}
	return &TextFormatter{}
}

// TextFormatter prints Texter results through Text and everything else
// with %v, adding a trailing newline when the rendering lacks one.
type TextFormatter struct{}

func (*TextFormatter) Format(data any) ([]byte, error) {
	var s string
	switch v := data.(type) {
	case Texter:
		s = v.Text()
	default:
		s = fmt.Sprint(v)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return []byte(s), nil
}

func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	out, _ := f.Format(data)
	_, err := w.Write(out)
	return err
}

// JSONFormatter emits data with encoding/json, two-space indented when
// Indent is set, for scripts consuming command output.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if !f.Indent {
		return json.Marshal(data)
	}
	return json.MarshalIndent(data, "", "  ")
}

// FormatTo streams the encoding followed by a newline.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
