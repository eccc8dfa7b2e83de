package rtscribe

import (
	"context"
	"os"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"
	ApiKeyEnvVarNameVite  = "VITE_OPENAI_API_KEY"
)

// CredentialResolver supplies the long-lived API key. An empty string with
// a nil error means no key is configured.
type CredentialResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to CredentialResolver.
type CredentialFunc func(ctx context.Context) (string, error)

func (f CredentialFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticCredential always resolves to itself.
type StaticCredential string

func (s StaticCredential) Resolve(context.Context) (string, error) {
	return string(s), nil
}

// EnvCredentials returns the value of the first non-empty environment
// variable in Vars, or of the default names when Vars is empty.
type EnvCredentials struct {
	Vars []string
}

func (e EnvCredentials) Resolve(context.Context) (string, error) {
	vars := e.Vars
	if len(vars) == 0 {
		vars = []string{ApiKeyEnvVarNameLong, ApiKeyEnvVarNameShort, ApiKeyEnvVarNameVite}
	}
	for _, name := range vars {
		if k := os.Getenv(name); k != "" {
			return k, nil
		}
	}
	return "", nil
}

// ChainCredentials tries each resolver in order and returns the first key
// found. A resolver error stops the chain.
type ChainCredentials []CredentialResolver

func (c ChainCredentials) Resolve(ctx context.Context) (string, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		k, err := r.Resolve(ctx)
		if err != nil {
			return "", err
		}
		if k != "" {
			return k, nil
		}
	}
	return "", nil
}
