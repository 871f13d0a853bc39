package glyph_test

import (
	"context"
	"testing"

	"github.com/glyphhq/glyph"
	"github.com/glyphhq/glyph/pkg/adapters/memory"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsShippedTemplates(t *testing.T) {
	client, err := glyph.New("templates")
	require.NoError(t, err)

	tpls, err := client.Templates().List(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, tpls)
}

func TestNew_RequiresTemplatesSource(t *testing.T) {
	_, err := glyph.New("")
	assert.Error(t, err)
}

func TestClient_SessionLifecycle(t *testing.T) {
	client, err := glyph.New("templates")
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := client.Create(ctx, engine.CreateRequest{
		TemplateID: "quote-modern",
		Data: map[string]any{
			"customer": map[string]any{"name": "Acme"},
			"items": []any{
				map[string]any{"description": "Widget", "quantity": 2, "unitPrice": 50, "total": 100},
			},
			"totals": map[string]any{"subtotal": 100, "grand": 100},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, sess.RenderedMarkup, "Acme")
	assert.Contains(t, sess.RenderedMarkup, "Widget")

	got, err := client.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	require.NoError(t, client.Expire(ctx, sess.ID))
	_, err = client.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestClient_SchemaValidationEnforced(t *testing.T) {
	client, err := glyph.New("templates")
	require.NoError(t, err)

	// quote-modern requires customer and items.
	_, err = client.Create(context.Background(), engine.CreateRequest{
		TemplateID: "quote-modern",
		Data:       map[string]any{"customer": map[string]any{"name": "Acme"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestClient_CustomTemplateResolver(t *testing.T) {
	resolver := memory.NewResolver(&domain.Template{
		ID:     "inline",
		Markup: "<!-- region:body -->Hello {{name}}<!-- /region:body -->",
	})

	client, err := glyph.New("", glyph.WithTemplates(resolver))
	require.NoError(t, err)

	sess, err := client.Create(context.Background(), engine.CreateRequest{
		TemplateID: "inline",
		Data:       map[string]any{"name": "World"},
	})
	require.NoError(t, err)
	assert.Contains(t, sess.RenderedMarkup, "Hello World")
}
