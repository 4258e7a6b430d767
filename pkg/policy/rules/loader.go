package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/snapshot"
	"mercator-hq/gateway/pkg/telemetry/metrics"
	"mercator-hq/gateway/pkg/telemetry/tracing"
)

// DefaultMaxFileSize bounds the size of a rule file.
const DefaultMaxFileSize = 1 << 20

var yamlLine = regexp.MustCompile(`line (\d+)`)

// Loader compiles rule files into rule sets. Every rule set it produces
// evaluates through the same engine, metrics and tracer.
type Loader struct {
	engine        *cel.Engine
	defaultAction Action
	maxFileSize   int64

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMetrics records rule evaluations, decisions and reloads.
func WithMetrics(m *metrics.Collector) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithTracer emits rules.* spans.
func WithTracer(t *tracing.Tracer) LoaderOption {
	return func(l *Loader) { l.tracer = t }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) LoaderOption {
	return func(l *Loader) { l.maxFileSize = n }
}

// NewLoader creates a loader compiling through engine. A nil cfg uses the
// defaults.
func NewLoader(engine *cel.Engine, cfg *config.RulesConfig, logger *slog.Logger, opts ...LoaderOption) (*Loader, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		cfg = &config.Default().Rules
	}
	if logger == nil {
		logger = slog.Default()
	}

	action := Action(cfg.DefaultAction)
	switch action {
	case "":
		action = ActionAllow
	case ActionAllow, ActionDeny:
	default:
		return nil, fmt.Errorf("invalid default action %q", cfg.DefaultAction)
	}

	l := &Loader{
		engine:        engine,
		defaultAction: action,
		maxFileSize:   DefaultMaxFileSize,
		logger:        logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// LoadFile reads and compiles the rule file at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		msg := "failed to access file"
		switch {
		case errors.Is(err, os.ErrNotExist):
			msg = "file not found"
		case errors.Is(err, os.ErrPermission):
			msg = "permission denied"
		}
		return nil, &LoadError{FilePath: path, Message: msg, Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if info.Size() > l.maxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.maxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	return l.Parse(ctx, path, data)
}

// Parse compiles a rule file held in memory. name is used in errors and
// recorded as the rule set's source.
func (l *Loader) Parse(ctx context.Context, name string, data []byte) (*RuleSet, error) {
	ctx, span := l.tracer.Start(ctx, "rules.load")
	defer span.End()

	if !utf8.Valid(data) {
		err := &LoadError{FilePath: name, Message: "file contains invalid UTF-8 encoding"}
		tracing.SetErrorAttributes(span, err, "load")
		return nil, err
	}

	var file ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		perr := &ParseError{FilePath: name, Message: err.Error(), Cause: err}
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			perr.Line, _ = strconv.Atoi(m[1])
		}
		tracing.SetErrorAttributes(span, perr, "parse")
		return nil, perr
	}

	rs := &RuleSet{
		Generation: uuid.NewString(),
		Source:     name,
		LoadedAt:   time.Now(),
		loader:     l,
	}

	var errs ErrorList
	seen := make(map[string]int, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := l.compileRule(ctx, i, spec, seen)
		if err != nil {
			errs.Add(err)
			continue
		}
		rs.Rules = append(rs.Rules, rule)
		rs.Requirements = rs.Requirements.Merge(snapshot.RequirementsOf(rule.Refs))
	}
	if err := errs.ToError(); err != nil {
		tracing.SetErrorAttributes(span, err, "validation")
		return nil, err
	}

	tracing.SetRuleSetAttributes(span, rs.Generation, len(rs.Rules))
	tracing.SetStatus(span, nil)
	l.logger.InfoContext(ctx, "Rule set loaded",
		"source", name,
		"generation", rs.Generation,
		"rules", len(rs.Rules),
	)
	return rs, nil
}

func (l *Loader) compileRule(ctx context.Context, i int, spec ruleSpec, seen map[string]int) (*Rule, error) {
	field := func(name string) string {
		return fmt.Sprintf("rules[%d].%s", i, name)
	}
	invalid := func(name, msg string) error {
		return &ValidationError{Rule: spec.Name, FieldPath: field(name), Message: msg}
	}

	if spec.Name == "" {
		return nil, invalid("name", "name is required")
	}
	if j, ok := seen[spec.Name]; ok {
		return nil, invalid("name", fmt.Sprintf("duplicate rule name, first defined at rules[%d]", j))
	}
	seen[spec.Name] = i

	if spec.Expr == "" {
		return nil, invalid("expr", "expression is required")
	}

	rule := &Rule{
		Name:        spec.Name,
		Description: spec.Description,
		Kind:        spec.Kind,
		Action:      spec.Action,
		Header:      spec.Header,
		Backend:     spec.Backend,
	}
	if rule.Kind == "" {
		rule.Kind = KindAuthorization
	}

	switch rule.Kind {
	case KindAuthorization:
		if rule.Action == "" {
			rule.Action = ActionDeny
		}
		if rule.Action != ActionAllow && rule.Action != ActionDeny {
			return nil, invalid("action", fmt.Sprintf("invalid action %q (must be allow or deny)", spec.Action))
		}
	case KindTransform:
		if rule.Header == "" {
			return nil, invalid("header", "transform rules require a header")
		}
	case KindRoute:
		if rule.Backend == "" {
			return nil, invalid("backend", "route rules require a backend")
		}
	default:
		return nil, invalid("kind", fmt.Sprintf("unknown kind %q", spec.Kind))
	}
	if rule.Kind != KindAuthorization && spec.Action != "" {
		return nil, invalid("action", "action only applies to authorization rules")
	}

	p, err := l.engine.Compile(ctx, spec.Expr)
	if err != nil {
		return nil, &ValidationError{
			Rule:      spec.Name,
			FieldPath: field("expr"),
			Message:   "expression does not compile",
			Cause:     err,
		}
	}
	rule.Program = p
	rule.Refs = p.References()
	return rule, nil
}
