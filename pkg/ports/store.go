package ports

import (
	"context"

	"github.com/glyphhq/glyph/pkg/domain"
)

// SessionStore persists editing sessions keyed by session ID.
//
// Expiry is enforced lazily by the engine on access; a store may additionally
// evict expired records on its own (capacity management, not correctness).
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, s *domain.Session) error

	// Load retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}
