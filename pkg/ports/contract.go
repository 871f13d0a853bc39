package ports

import (
	"context"
	"testing"
	"time"

	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a
// SessionStore implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession("quote-modern", "acct_1", time.Hour)
		s.TemplateMarkup = "<!-- region:a -->{{x}}<!-- /region:a -->"
		s.RenderedMarkup = "<!-- region:a -->1<!-- /region:a -->"
		s.Data["x"] = "1"
		s.Modifications = append(s.Modifications, domain.Modification{
			Region:       "a",
			Instruction:  "make it pop",
			PatchSummary: "replaced region content",
			AppliedAt:    time.Now().UTC(),
		})

		err := store.Save(ctx, s)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, s.ID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.TemplateID, loaded.TemplateID)
		assert.Equal(t, s.TemplateMarkup, loaded.TemplateMarkup)
		assert.Equal(t, s.RenderedMarkup, loaded.RenderedMarkup)
		assert.Equal(t, s.OwnerRef, loaded.OwnerRef)
		assert.Len(t, loaded.Modifications, 1)
		assert.Equal(t, "make it pop", loaded.Modifications[0].Instruction)
		// JSON persistence may coerce numeric types; only check presence.
		assert.NotNil(t, loaded.Data["x"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		s := domain.NewSession("quote-modern", "acct_1", time.Hour)
		require.NoError(t, store.Save(ctx, s))

		first, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		first.TemplateMarkup = "mutated"
		first.Data["k"] = "v"

		second, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", second.TemplateMarkup)
		assert.NotContains(t, second.Data, "k")
	})

	t.Run("Load isolates nested data", func(t *testing.T) {
		s := domain.NewSession("quote-modern", "acct_1", time.Hour)
		s.Data["customer"] = map[string]any{"name": "Acme"}
		require.NoError(t, store.Save(ctx, s))

		first, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		first.Data["customer"].(map[string]any)["name"] = "mutated"

		second, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", second.Data["customer"].(map[string]any)["name"])
	})

	t.Run("Delete", func(t *testing.T) {
		s := domain.NewSession("quote-modern", "acct_1", time.Hour)
		require.NoError(t, store.Save(ctx, s))

		err := store.Delete(ctx, s.ID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, s.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, s.ID), "Delete should be idempotent")
	})

	t.Run("List", func(t *testing.T) {
		s1 := domain.NewSession("quote-modern", "acct_1", time.Hour)
		s2 := domain.NewSession("invoice-clean", "acct_2", time.Hour)
		_ = store.Save(ctx, s1)
		_ = store.Save(ctx, s2)

		defer func() {
			_ = store.Delete(ctx, s1.ID)
			_ = store.Delete(ctx, s2.ID)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, s1.ID)
		assert.Contains(t, ids, s2.ID)
	})
}
