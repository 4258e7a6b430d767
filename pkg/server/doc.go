// Package server provides the HTTP decision server run by "gateway serve".
//
// The server answers forward-auth requests: a reverse proxy sends each
// client request (or a copy of its method, URI and headers) to
// AuthorizePath and forwards the original only when the answer is 200.
//
// # Endpoints
//
//   - /v1/authorize: evaluates the active rule set against the request
//   - /health, /ready, /version: see package health
//   - the metrics path, when a collector is configured
//
// # Forwarded requests
//
// When the proxy calls AuthorizePath directly instead of mirroring the
// request, the original request line is read from the X-Forwarded-Method,
// X-Forwarded-Proto, X-Forwarded-Host and X-Forwarded-Uri headers, and the
// client address from the first X-Forwarded-For entry.
//
// # Decisions
//
// A denied request gets 403 with a JSON body naming the deciding rule. An
// allowed request gets 200; headers produced by transform rules are set on
// the response, and the backend chosen by route rules is returned in
// BackendHeader, so the proxy can copy them onto the upstream request.
//
// The request body is read only when some rule reads request.body or llm,
// and never beyond ServerConfig.MaxBodyBytes.
//
// # TLS
//
// With ServerConfig.TLS enabled the listener serves HTTPS. The certificate
// pair is checked for changes every reload interval and swapped in without
// a restart; a pair that fails to load or has expired keeps the previous
// one. Setting a client CA file requires the proxy to present a certificate
// signed by it.
//
// # Usage
//
//	srv := server.New(&cfg.Server, manager, logger,
//		server.WithHealth(checker, health.VersionInfo{Version: version}),
//		server.WithMetrics(collector, cfg.Telemetry.Metrics.Path),
//	)
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
package server
