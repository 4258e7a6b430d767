package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// referencePattern matches ${secret:name}.
var referencePattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up across providers in order.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver that tries providers in order.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, logger: logger}
}

// Get returns the secret from the first supporting provider that has it.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, p := range r.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.Get(ctx, name)
		if err != nil {
			r.logger.Debug("Secret provider miss", "provider", p.Name(), "name", redactName(name), "error", err)
			lastErr = err
			continue
		}
		r.logger.Debug("Secret resolved", "provider", p.Name(), "name", redactName(name))
		return value, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("secret %q: no provider supports it", name)
}

// Expand replaces every ${secret:name} in s. Strings without references
// are returned unchanged.
func (r *Resolver) Expand(ctx context.Context, s string) (string, error) {
	var errs []string
	out := referencePattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSpace(referencePattern.FindStringSubmatch(ref)[1])
		value, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err.Error())
			return ref
		}
		return value
	})
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to resolve secret references: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// ExpandAll expands each field in place and stops at the first failure.
func (r *Resolver) ExpandAll(ctx context.Context, fields ...*string) error {
	for _, f := range fields {
		if f == nil || !strings.Contains(*f, "${secret:") {
			continue
		}
		value, err := r.Expand(ctx, *f)
		if err != nil {
			return err
		}
		*f = value
	}
	return nil
}

// redactName keeps the first and last two characters of a secret name.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "***" + name[len(name)-2:]
}
