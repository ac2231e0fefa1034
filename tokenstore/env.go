package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore provides read-only access to tokens provisioned as environment variables.
// A key maps to the variable prefix + upper-cased key with non-alphanumerics replaced by '_'.
type EnvStore struct {
	prefix string
}

// Compile-time check to ensure EnvStore implements TokenStore
var _ TokenStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading variables that start with prefix.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{
		prefix: prefix,
	}
}

// VariableName returns the environment variable consulted for key.
func (e *EnvStore) VariableName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return e.prefix + name
}

// Get returns the token from the environment. Unset or empty variables count as absent.
func (e *EnvStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := e.VariableName(key)
	token := os.Getenv(name)
	if token == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrTokenNotFound, name)
	}
	return token, nil
}

// Set is not supported for environment variables (they are read-only).
func (e *EnvStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}
