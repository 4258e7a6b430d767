// Package health provides liveness, readiness and version endpoints for the
// gateway decision server.
//
// # Endpoints
//
//   - /health: liveness, 200 while the process is up
//   - /ready: readiness, 200 when every registered check passes, 503 otherwise
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2*time.Second, logger)
//	checker.RegisterCheck("rules", func(ctx context.Context) error {
//		if manager.Current() == nil {
//			return errors.New("no rule set loaded")
//		}
//		return nil
//	})
//	health.Register(mux, checker, health.VersionInfo{Version: "0.1.0"})
//
// Checks run concurrently, each bounded by the checker's timeout. A check
// that does not return in time is reported unhealthy and its goroutine is
// left to finish on its own, so checks should honor ctx.
package health
