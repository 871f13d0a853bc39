package memory

import (
	"context"
	"sync"

	"github.com/glyphhq/glyph/pkg/domain"
)

// KeyStore implements ports.KeyStore in memory.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]string // key -> owner
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]string)}
}

func (k *KeyStore) Verify(ctx context.Context, key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	owner, ok := k.keys[key]
	if !ok {
		return "", domain.ErrUnauthorized
	}
	return owner, nil
}

func (k *KeyStore) Put(ctx context.Context, key, owner string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = owner
	return nil
}

func (k *KeyStore) Revoke(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key)
	return nil
}
