package secrets

import "context"

// Provider looks up secrets by name.
type Provider interface {
	// Get returns the value of the named secret.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs and errors.
	Name() string

	// Supports reports whether the provider may hold the named secret.
	Supports(name string) bool
}
