package ports

import "context"

// KeyStore is the credential boundary: simple CRUD over API keys. Sessions
// are namespaced by the owner a key resolves to.
type KeyStore interface {
	// Verify resolves an API key to its owner reference.
	// Unknown or revoked keys fail with domain.ErrUnauthorized.
	Verify(ctx context.Context, key string) (owner string, err error)

	// Put registers a key for an owner, overwriting any previous binding.
	Put(ctx context.Context, key, owner string) error

	// Revoke removes a key. Revoking an unknown key is not an error.
	Revoke(ctx context.Context, key string) error
}
