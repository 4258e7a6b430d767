package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/gateway/pkg/audit"
	"mercator-hq/gateway/pkg/cel"
	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/git"
	"mercator-hq/gateway/pkg/policy/rules"
	"mercator-hq/gateway/pkg/secrets"
	"mercator-hq/gateway/pkg/server"
	"mercator-hq/gateway/pkg/telemetry/health"
	"mercator-hq/gateway/pkg/telemetry/logging"
	"mercator-hq/gateway/pkg/telemetry/metrics"
	"mercator-hq/gateway/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	rulesFile     string
	provider      string
	watchConfig   bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decision server",
	Long: `Start the forward-auth decision server.

A reverse proxy sends each LLM request to /v1/authorize. The server answers
403 when the active rules deny it, and 200 otherwise with the transform
headers and the selected backend (X-Mercator-Backend) set on the response.

The rule file is reloaded on change when rules.watch is set; a file that
fails to load leaves the previous rules active. When rules.git.repository is
set the rules are cloned from that repository instead and reloaded when a
new commit changes them.

With audit.enabled every decision is written to the decision log, which is
pruned on audit.retention.prune_schedule.

Examples:
  # Start with a config file
  gateway serve --config /etc/mercator/gateway.yaml

  # Override the rule file and listen address
  gateway serve --rules ./rules.yaml --listen 127.0.0.1:9000

  # Validate config and rules without starting the server
  gateway serve --config gateway.yaml --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVarP(&serveFlags.rulesFile, "rules", "r", "", "override rule file path")
	serveCmd.Flags().StringVar(&serveFlags.provider, "provider", server.DefaultProvider, "provider name reported as llm.provider")
	serveCmd.Flags().BoolVar(&serveFlags.watchConfig, "watch-config", false, "log configuration file changes that need a restart")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and rules without starting the server")
}

// gateway holds the components started by "serve".
type gateway struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	rules   *rules.Manager
	checker *health.Checker

	repo     *git.Repository
	storage  audit.Storage
	recorder *audit.Recorder
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore(cfgFile, nil)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	snapshot := *store.Get()
	cfg := &snapshot
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.rulesFile != "" {
		cfg.Rules.FilePath = serveFlags.rulesFile
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	gw, err := newGateway(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer gw.close()

	if serveFlags.dryRun {
		rs := gw.rules.Current()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid\n✓ %d rules loaded from %s\n", rs.Len(), cfg.Rules.FilePath)
		return nil
	}

	opts := []server.Option{
		server.WithHealth(gw.checker, versionInfo()),
		server.WithProvider(serveFlags.provider),
	}
	metricsCfg := cfg.Telemetry.Metrics
	if metricsCfg.IsEnabled() && metricsCfg.ListenAddress == "" {
		opts = append(opts, server.WithMetrics(gw.metrics, metricsCfg.Path))
	}
	if gw.recorder != nil {
		opts = append(opts, server.WithRecorder(gw.recorder))
	}
	srv := server.New(&cfg.Server, gw.rules, gw.logger, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if metricsCfg.IsEnabled() && metricsCfg.ListenAddress != "" {
		g.Go(func() error {
			return serveMetrics(ctx, gw, metricsCfg)
		})
	}
	switch {
	case gw.repo != nil:
		poller := git.NewPoller(gw.repo, cfg.Rules.Git.PollInterval, func(ctx context.Context, _ *git.Commit) error {
			return gw.rules.Reload(ctx)
		}, gw.logger)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	case cfg.Rules.Watch:
		g.Go(func() error {
			return gw.rules.Watch(ctx)
		})
	}
	if gw.storage != nil {
		pruner := audit.NewPruner(gw.storage, &cfg.Audit.Retention, gw.logger, gw.metrics)
		g.Go(func() error {
			return pruner.Run(ctx)
		})
	}
	if serveFlags.watchConfig && cfgFile != "" {
		store.OnChange(func(*config.Config) {
			gw.logger.Warn("Configuration file changed; restart to apply", "path", cfgFile)
		})
		g.Go(func() error {
			return store.Watch(ctx, cfg.Rules.DebounceInterval)
		})
	}

	gw.logger.Info("Gateway started",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"rules", cfg.Rules.FilePath,
		"generation", gw.rules.Current().Generation,
	)
	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// newGateway builds the telemetry, engine, rule manager and decision log for
// cfg. A git rule source is cloned first and replaces cfg.Rules.FilePath.
func newGateway(ctx context.Context, cfg *config.Config, cmd *cobra.Command) (*gateway, error) {
	logger, err := logging.New(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger)

	gw := &gateway{cfg: cfg, logger: logger}
	gw.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	gw.tracer, err = tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Rules.Git.Enabled() {
		if err := gw.syncRepository(ctx); err != nil {
			gw.close()
			return nil, err
		}
	}

	engine, err := cel.NewEngine(&cfg.Expression, logger,
		cel.WithMetrics(gw.metrics),
		cel.WithTracer(gw.tracer),
	)
	if err != nil {
		gw.close()
		return nil, cli.NewConfigError(cfgFile, err)
	}
	loader, err := rules.NewLoader(engine, &cfg.Rules, logger,
		rules.WithMetrics(gw.metrics),
		rules.WithTracer(gw.tracer),
	)
	if err != nil {
		gw.close()
		return nil, err
	}
	gw.rules, err = rules.NewManager(ctx, loader, &cfg.Rules)
	if err != nil {
		gw.close()
		return nil, err
	}
	gw.rules.OnReload(func(ev rules.ReloadEvent) {
		if ev.Err == nil {
			logger.Info("Rules reloaded", "generation", ev.Generation, "rules", ev.Rules, "duration", ev.Duration)
		}
	})

	if cfg.Audit.Enabled {
		gw.storage, err = audit.Open(&cfg.Audit, logger)
		if err != nil {
			gw.close()
			return nil, fmt.Errorf("failed to open decision log: %w", err)
		}
		gw.recorder = audit.NewRecorder(gw.storage, &cfg.Audit, logger, audit.WithMetrics(gw.metrics))
	}

	gw.checker = health.New(cfg.Server.HealthCheckTimeout, logger)
	gw.checker.RegisterCheck("rules", server.RulesCheck(gw.rules))
	return gw, nil
}

// syncRepository clones or updates the rules repository and points the rule
// file at its checkout.
func (gw *gateway) syncRepository(ctx context.Context) error {
	auth := &gw.cfg.Rules.Git.Auth
	if err := newSecretResolver(&gw.cfg.Secrets, gw.logger).ExpandAll(ctx, &auth.Token, &auth.SSHKeyPassphrase); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	repo, err := git.NewRepository(&gw.cfg.Rules.Git, gw.logger)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	head, err := repo.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync rules repository: %w", err)
	}
	gw.repo = repo
	gw.cfg.Rules.FilePath = repo.RulesPath()
	gw.logger.Info("Rules repository synced",
		"repository", gw.cfg.Rules.Git.Repository,
		"branch", gw.cfg.Rules.Git.Branch,
		"commit", head.Short(),
	)
	return nil
}

// newSecretResolver tries the secrets directory, when configured, before
// the environment.
func newSecretResolver(cfg *config.SecretsConfig, logger *slog.Logger) *secrets.Resolver {
	var providers []secrets.Provider
	if cfg.Dir != "" {
		files, err := secrets.NewFileProvider(cfg.Dir)
		if err != nil {
			logger.Warn("Secrets directory unavailable", "dir", cfg.Dir, "error", err)
		} else {
			providers = append(providers, files)
		}
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.EnvPrefix))
	return secrets.NewResolver(logger, providers...)
}

func (gw *gateway) close() {
	if gw.recorder != nil {
		gw.recorder.Close()
	}
	if gw.storage != nil {
		if err := gw.storage.Close(); err != nil {
			gw.logger.Warn("Decision log close failed", "error", err)
		}
	}

	if gw.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.tracer.Shutdown(ctx); err != nil {
		gw.logger.Warn("Tracer shutdown failed", "error", err)
	}
}

// serveMetrics serves the Prometheus endpoint on its own listener until ctx
// is cancelled.
func serveMetrics(ctx context.Context, gw *gateway, cfg config.MetricsConfig) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, gw.metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: gw.cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		gw.logger.Info("Metrics server started", "address", cfg.ListenAddress, "path", cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gw.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
