// Package secrets resolves ${secret:name} references in configuration.
//
// Values come from providers tried in order. The file provider reads one
// file per secret from a directory, the layout of a mounted Kubernetes
// secret; the environment provider reads MERCATOR_SECRET_<NAME> and serves
// as the fallback:
//
//	r := secrets.NewResolver(logger,
//		fileProvider,
//		secrets.NewEnvProvider(secrets.DefaultEnvPrefix),
//	)
//	err := r.ExpandAll(ctx, &cfg.Rules.Git.Auth.Token)
//
// Secret names are redacted in logs.
package secrets
