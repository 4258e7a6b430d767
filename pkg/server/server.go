package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/gateway/pkg/audit"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/rules"
	"mercator-hq/gateway/pkg/telemetry/health"
	"mercator-hq/gateway/pkg/telemetry/metrics"
	"mercator-hq/gateway/pkg/telemetry/tracing"
)

// AuthorizePath is the forward-auth endpoint.
const AuthorizePath = "/v1/authorize"

// DefaultProvider labels llm.provider when no provider is configured.
const DefaultProvider = "openai"

// RuleSource supplies the active rule set. *rules.Manager implements it.
type RuleSource interface {
	Current() *rules.RuleSet
}

// DecisionRecorder receives one record per authorize decision.
// *audit.Recorder implements it.
type DecisionRecorder interface {
	Record(rec *audit.Record) bool
}

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts the health endpoints backed by checker.
func WithHealth(checker *health.Checker, info health.VersionInfo) Option {
	return func(s *Server) {
		s.checker = checker
		s.version = info
	}
}

// WithMetrics mounts the collector's Prometheus handler at path.
func WithMetrics(c *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.metrics = c
		s.metricsPath = path
	}
}

// WithProvider sets the provider name reported as llm.provider.
func WithProvider(name string) Option {
	return func(s *Server) {
		s.provider = name
	}
}

// WithRecorder records every authorize decision to r.
func WithRecorder(r DecisionRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// Server is the HTTP decision server.
type Server struct {
	cfg    config.ServerConfig
	rules  RuleSource
	logger *slog.Logger

	checker     *health.Checker
	version     health.VersionInfo
	metrics     *metrics.Collector
	metricsPath string
	provider    string
	recorder    DecisionRecorder

	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a server answering from source. A nil cfg uses the defaults.
func New(cfg *config.ServerConfig, source RuleSource, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = &config.Default().Server
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      *cfg,
		rules:    source,
		logger:   logger,
		provider: DefaultProvider,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the server's handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(AuthorizePath, s.handleAuthorize)
	if s.checker != nil {
		health.Register(mux, s.checker, s.version)
	}
	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle(s.metricsPath, s.metrics.Handler())
	}

	var h http.Handler = mux
	h = tracing.HTTPMiddleware(h)
	h = loggingMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	h = recoveryMiddleware(s.logger)(h)
	return h
}

// Start listens on ServerConfig.ListenAddress and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	if s.cfg.TLS.Enabled {
		tlsLn, err := s.listenTLS(ctx, ln)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		ln = tlsLn
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Decision server started", "address", ln.Addr().String(), "tls", s.cfg.TLS.Enabled)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.shutdown()
	}
}

// listenTLS wraps ln with TLS. Certificates are reloaded until ctx is
// cancelled.
func (s *Server) listenTLS(ctx context.Context, ln net.Listener) (net.Listener, error) {
	reloader := newCertReloader(&s.cfg.TLS, s.logger)
	if err := reloader.load(); err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	tlsCfg, err := newTLSConfig(&s.cfg.TLS, reloader)
	if err != nil {
		return nil, err
	}
	go reloader.run(ctx)
	return tls.NewListener(ln, tlsCfg), nil
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Shutting down decision server", "timeout", s.cfg.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("Decision server stopped")
	return nil
}

// RulesCheck reports the rule source as unhealthy until a rule set is
// loaded. Register it as a readiness check.
func RulesCheck(source RuleSource) health.CheckFunc {
	return func(context.Context) error {
		if source.Current() == nil {
			return errors.New("no rule set loaded")
		}
		return nil
	}
}
