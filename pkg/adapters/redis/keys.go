package redis

import (
	"context"
	"fmt"

	"github.com/glyphhq/glyph/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// KeyStore implements ports.KeyStore using a Redis hash.
type KeyStore struct {
	client *backend.Client
	key    string
}

// NewKeyStore creates a key store over an existing client.
func NewKeyStore(client *backend.Client, prefix string) *KeyStore {
	return &KeyStore{client: client, key: prefix + "apikeys"}
}

func (k *KeyStore) Verify(ctx context.Context, key string) (string, error) {
	owner, err := k.client.HGet(ctx, k.key, key).Result()
	if err != nil {
		if err == backend.Nil {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("failed to verify key: %w", err)
	}
	return owner, nil
}

func (k *KeyStore) Put(ctx context.Context, key, owner string) error {
	return k.client.HSet(ctx, k.key, key, owner).Err()
}

func (k *KeyStore) Revoke(ctx context.Context, key string) error {
	return k.client.HDel(ctx, k.key, key).Err()
}
