package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage for tokens.
// The store key is used as the keyring user under a fixed service name.
type KeyringStore struct {
	service string
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore that files every token under service.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringStore{
		service: service,
	}, nil
}

// Get returns the token from the system keyring. Missing and empty entries
// both yield ErrTokenNotFound.
func (k *KeyringStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token, err := keyring.Get(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", err
	}
	// A cleared token is stored as an empty secret
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}

	return token, nil
}

// Set persists the token to the system keyring, overwriting any existing value.
func (k *KeyringStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, key, value)
}
