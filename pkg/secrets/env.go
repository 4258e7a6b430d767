package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "MERCATOR_SECRET_"

// EnvProvider reads secrets from environment variables. The secret
// "git-token" is read from MERCATOR_SECRET_GIT_TOKEN with the default prefix.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment provider with prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get returns the variable's value. Empty variables count as unset.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	v := p.variable(name)
	value, ok := os.LookupEnv(v)
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable %s is not set", v)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// Supports always returns true so the environment works as a fallback.
func (p *EnvProvider) Supports(string) bool {
	return true
}

func (p *EnvProvider) variable(name string) string {
	return p.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
