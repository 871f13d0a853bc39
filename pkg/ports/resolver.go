package ports

import (
	"context"

	"github.com/glyphhq/glyph/pkg/domain"
)

// TemplateResolver maps template identifiers to immutable templates. The
// template set is closed and known at deploy time.
type TemplateResolver interface {
	// Resolve returns the template for an ID. Unknown IDs fail with
	// domain.ErrTemplateNotFound; the error message enumerates valid IDs.
	Resolve(ctx context.Context, id string) (*domain.Template, error)

	// List returns all templates, optionally filtered by category.
	List(ctx context.Context, category string) ([]*domain.Template, error)
}

// DataValidator checks a data payload against a template's JSON schema.
// Violations fail with domain.ErrInvalidData.
type DataValidator interface {
	ValidateData(tpl *domain.Template, data map[string]any) error
}
