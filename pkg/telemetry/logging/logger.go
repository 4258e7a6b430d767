package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/gateway/pkg/config"
)

// LogFormat selects the slog handler records are written with.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var formats = map[string]LogFormat{
	"":        FormatJSON,
	"json":    FormatJSON,
	"text":    FormatText,
	"console": FormatText,
}

// New returns the gateway logger described by cfg, writing to w or, when w
// is nil, to stdout. The handler chain, outermost first, is:
//
//	ContextHandler    request, evaluation and rule set IDs from ctx
//	RedactingHandler  only when redaction is enabled
//	JSON or text      the configured format
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if format == FormatText {
		h = slog.NewTextHandler(w, opts)
	}

	if cfg.RedactEnabled() {
		redactor, err := NewRedactor(cfg.RedactPatterns)
		if err != nil {
			return nil, err
		}
		h = NewRedactingHandler(h, redactor)
	}
	return slog.New(NewContextHandler(h)), nil
}

// parseLevel is case-insensitive. Unknown levels report slog.LevelInfo
// alongside the error.
func parseLevel(s string) (slog.Level, error) {
	if l, ok := levels[strings.ToLower(s)]; ok {
		return l, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}

func parseFormat(s string) (LogFormat, error) {
	if f, ok := formats[strings.ToLower(s)]; ok {
		return f, nil
	}
	return FormatJSON, fmt.Errorf("invalid log format %q", s)
}
