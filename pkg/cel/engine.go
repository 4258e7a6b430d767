package cel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/optimizer"
	"mercator-hq/gateway/pkg/cel/value"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/telemetry/logging"
	"mercator-hq/gateway/pkg/telemetry/metrics"
	"mercator-hq/gateway/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// programCacheName labels the program cache in metrics.
const programCacheName = "program"

// Engine compiles expressions through a program cache and executes them
// against one function registry, recording logs, metrics and spans.
// An Engine is safe for concurrent use.
type Engine struct {
	env       *interpreter.Context
	optimizer optimizer.Optimizer
	lenient   bool
	cache     *Cache

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics records compilations, evaluations and cache activity.
func WithMetrics(m *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer emits cel.compile and cel.execute spans.
func WithTracer(t *tracing.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithEnvironment replaces the function registry. The context must not be
// modified afterwards.
func WithEnvironment(env *interpreter.Context) EngineOption {
	return func(e *Engine) { e.env = env }
}

// WithOptimizer replaces the optimizer selected by the configuration.
func WithOptimizer(opt optimizer.Optimizer) EngineOption {
	return func(e *Engine) { e.optimizer = opt }
}

// NewEngine creates an engine from cfg. A nil cfg uses the defaults.
func NewEngine(cfg *config.ExpressionConfig, logger *slog.Logger, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = &config.Default().Expression
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("invalid cache size %d", cfg.CacheSize)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opt, err := OptimizerFor(cfg.Optimizations)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		optimizer: opt,
		lenient:   cfg.Lenient,
		cache:     NewCache(cfg.CacheSize),
		logger:    logger,
	}
	for _, o := range opts {
		o(e)
	}
	if e.env == nil {
		e.env = interpreter.NewDefaultContext()
		if cfg.MaxDepth > 0 {
			e.env.WithMaxDepth(cfg.MaxDepth)
		}
	}
	e.cache.OnEvicted(func(string) {
		e.metrics.RecordCacheEviction(programCacheName)
	})

	return e, nil
}

// OptimizerFor chains the named built-in optimizations in order. No names
// selects none.
func OptimizerFor(names []string) (optimizer.Optimizer, error) {
	if len(names) == 0 {
		return nil, nil
	}
	opts := make([]optimizer.Optimizer, 0, len(names))
	for _, name := range names {
		switch name {
		case config.OptimizationHeader:
			opts = append(opts, optimizer.HeaderLookup())
		case config.OptimizationRegex:
			opts = append(opts, optimizer.RegexPrecompile())
		case config.OptimizationIP:
			opts = append(opts, optimizer.IPPrecompile())
		default:
			return nil, fmt.Errorf("unknown optimization %q", name)
		}
	}
	return optimizer.Chain(opts...), nil
}

// Environment returns the function registry used for execution.
func (e *Engine) Environment() *interpreter.Context {
	return e.env
}

// Compile returns the program for src, compiling it on a cache miss. In
// lenient mode a parse failure is logged and replaced with a program that
// always fails; otherwise the parse error is returned and nothing is cached.
func (e *Engine) Compile(ctx context.Context, src string) (*Program, error) {
	if p, ok := e.cache.Get(src); ok {
		e.metrics.RecordCacheHit(programCacheName)
		return p, nil
	}
	e.metrics.RecordCacheMiss(programCacheName)

	_, span := e.tracer.Start(ctx, "cel.compile")
	defer span.End()
	tracing.SetExpressionAttributes(span, src, "")

	start := time.Now()
	p, err := CompileWithOptimizer(src, e.optimizer)
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordCompilation("error", duration)
		tracing.SetErrorAttributes(span, err, "parse")
		if !e.lenient {
			return nil, err
		}
		e.logger.WarnContext(ctx, "Expression failed to compile, substituting failing program",
			"source", src,
			"error", err,
		)
		p = &Program{Source: src, compileErr: err}
	} else {
		e.metrics.RecordCompilation("success", duration)
		span.SetAttributes(attribute.Bool(tracing.AttrOptimized, e.optimizer != nil))
		tracing.SetStatus(span, nil)
	}

	e.cache.Add(p)
	e.metrics.UpdateCacheSize(programCacheName, e.cache.Len())
	return p, nil
}

// Execute runs p against resolver.
func (e *Engine) Execute(ctx context.Context, p *Program, resolver interpreter.Resolver) (value.Value, error) {
	evalID := uuid.NewString()
	ctx = logging.WithEvaluationID(ctx, evalID)

	ctx, span := e.tracer.Start(ctx, "cel.execute")
	defer span.End()
	tracing.SetExpressionAttributes(span, p.Source, evalID)

	start := time.Now()
	v, err := p.Execute(e.env, resolver)
	duration := time.Since(start)

	if err != nil {
		kind := errorKind(err)
		e.metrics.RecordEvaluation(kind, duration)
		tracing.SetErrorAttributes(span, err, kind)
		e.logger.DebugContext(ctx, "Expression evaluation failed",
			"source", p.Source,
			"error_kind", kind,
			"error", err,
			"duration", duration,
		)
		return nil, err
	}

	e.metrics.RecordEvaluation("", duration)
	tracing.SetResultAttributes(span, value.TypeName(v))
	tracing.SetStatus(span, nil)
	return v, nil
}

// Eval compiles src through the cache and executes it.
func (e *Engine) Eval(ctx context.Context, src string, resolver interpreter.Resolver) (value.Value, error) {
	p, err := e.Compile(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, p, resolver)
}

// CacheLen returns the number of cached programs.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// errorKind returns the ExecutionError kind of err, or "unknown".
func errorKind(err error) string {
	if kind, ok := celerrors.KindOf(err); ok {
		return string(kind)
	}
	return "unknown"
}
