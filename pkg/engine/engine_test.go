package engine

import (
	"context"
	"testing"
	"time"

	"github.com/glyphhq/glyph/pkg/adapters/memory"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteMarkup = `<div class="quote">
<!-- region:header --><h1>Quote for {{client.name}}</h1><!-- /region:header -->
<!-- region:items --><ul>{{#each items}}<li>{{name}}: {{price}}</li>{{/each}}</ul><!-- /region:items -->
<!-- region:totals --><b>Total: {{totals.amount|0}}</b><!-- /region:totals -->
</div>`

func quoteTemplate() *domain.Template {
	return &domain.Template{
		ID:          "quote-modern",
		Markup:      quoteMarkup,
		Stylesheet:  ".quote { font-family: sans-serif; }",
		RegionNames: []string{"header", "items", "totals"},
		Category:    "billing",
	}
}

type fakeInterpreter struct {
	patch *domain.Patch
	err   error
	calls int
	// hook runs before returning, e.g. to simulate a concurrent edit.
	hook func()
}

func (f *fakeInterpreter) Interpret(ctx context.Context, req ports.InterpretRequest) (*domain.Patch, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.patch, nil
}

type fakeRenderer struct {
	err   error
	block bool
	last  ports.RenderRequest
}

func (f *fakeRenderer) Render(ctx context.Context, req ports.RenderRequest) (ports.Artifact, error) {
	f.last = req
	if f.block {
		<-ctx.Done()
		return ports.Artifact{}, ctx.Err()
	}
	if f.err != nil {
		return ports.Artifact{}, f.err
	}
	ct := "application/pdf"
	if req.Format == domain.FormatPNG {
		ct = "image/png"
	}
	return ports.Artifact{Data: []byte("%PDF-stub"), ContentType: ct}, nil
}

type env struct {
	engine   *Engine
	store    *memory.Store
	interp   *fakeInterpreter
	renderer *fakeRenderer
	now      time.Time
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		store:    memory.NewStore(),
		interp:   &fakeInterpreter{},
		renderer: &fakeRenderer{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	resolver := memory.NewResolver(quoteTemplate())
	all := append([]Option{
		WithInterpreter(e.interp),
		WithRenderer(e.renderer),
		withClock(func() time.Time { return e.now }),
	}, opts...)
	e.engine = New(resolver, e.store, all...)
	return e
}

func (e *env) create(t *testing.T) *domain.Session {
	t.Helper()
	s, err := e.engine.Create(context.Background(), CreateRequest{
		TemplateID: "quote-modern",
		Data:       map[string]any{"client": map[string]any{"name": "Acme"}},
		Owner:      "acct_1",
	})
	require.NoError(t, err)
	return s
}

func TestCreate_BindsInitialRender(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	assert.Contains(t, s.RenderedMarkup, "Acme")
	assert.NotContains(t, s.RenderedMarkup, "{{client.name}}")
	assert.Equal(t, quoteMarkup, s.TemplateMarkup)
	assert.Empty(t, s.Modifications)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.Equal(t, e.now.Add(DefaultTTL), s.ExpiresAt)
	assert.Equal(t, "acct_1", s.OwnerRef)
}

func TestCreate_UnknownTemplate(t *testing.T) {
	e := newEnv(t)
	_, err := e.engine.Create(context.Background(), CreateRequest{TemplateID: "nope"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "quote-modern", "not-found error should enumerate valid ids")
}

func TestCreate_RawHTMLPassthrough(t *testing.T) {
	e := newEnv(t)
	s, err := e.engine.Create(context.Background(), CreateRequest{
		HTML: "<!-- region:body --><p>{{msg}}</p><!-- /region:body -->",
		Data: map[string]any{"msg": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "", s.TemplateID)
	assert.Contains(t, s.RenderedMarkup, "<p>hi</p>")
}

func TestCreate_URLSource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s, err := e.engine.Create(ctx, CreateRequest{
		URL:     "https://example.com/invoice/42",
		Format:  domain.FormatPNG,
		Options: map[string]any{"pageSize": "A4"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/invoice/42", s.SourceURL)
	assert.Empty(t, s.TemplateMarkup)
	assert.Empty(t, s.RenderedMarkup)

	// Rendering forwards the source url and options to the backend.
	artifact, _, err := e.engine.Render(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", artifact.ContentType)
	assert.Equal(t, "https://example.com/invoice/42", e.renderer.last.URL)
	assert.Empty(t, e.renderer.last.HTML)
	assert.Equal(t, "A4", e.renderer.last.Options["pageSize"])

	// There is no markup to edit or rebind.
	_, err = e.engine.Modify(ctx, s.ID, "header", "change it")
	assert.ErrorIs(t, err, domain.ErrInvalidData)
	_, err = e.engine.Regenerate(ctx, s.ID, map[string]any{"x": 1})
	assert.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestCreate_URLValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.engine.Create(ctx, CreateRequest{URL: "ftp://example.com/doc"})
	assert.ErrorIs(t, err, domain.ErrInvalidData)

	_, err = e.engine.Create(ctx, CreateRequest{URL: "not a url"})
	assert.ErrorIs(t, err, domain.ErrInvalidData)

	_, err = e.engine.Create(ctx, CreateRequest{URL: "https://example.com", HTML: "<p>x</p>"})
	assert.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.engine.Create(ctx, CreateRequest{TemplateID: "quote-modern", Format: "docx"})
	assert.ErrorIs(t, err, domain.ErrInvalidData)

	_, err = e.engine.Create(ctx, CreateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidData)

	_, err = e.engine.Create(ctx, CreateRequest{HTML: "<!-- region:a -->unclosed"})
	assert.ErrorIs(t, err, domain.ErrRegionIndex)

	_, err = e.engine.Create(ctx, CreateRequest{HTML: "{{#each xs}}no close"})
	assert.ErrorIs(t, err, domain.ErrTemplateMalformed)
}

func TestCreate_TTLClamped(t *testing.T) {
	e := newEnv(t)
	s, err := e.engine.Create(context.Background(), CreateRequest{
		TemplateID: "quote-modern",
		TTL:        100 * 24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, e.now.Add(MaxTTL), s.ExpiresAt)
}

func TestModify_SetAttributeScenario(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	e.interp.patch = &domain.Patch{
		Kind: domain.PatchSetAttribute,
		Set:  &domain.SetAttribute{Path: "totals.discountPct", Value: float64(10)},
	}

	updated, err := e.engine.Modify(context.Background(), s.ID, "totals", "add 10% discount")
	require.NoError(t, err)

	assert.Contains(t, updated.TemplateMarkup, "{{totals.discountPct|10}}")
	require.Len(t, updated.Modifications, 1)
	assert.Equal(t, "totals", updated.Modifications[0].Region)
	assert.Equal(t, "add 10% discount", updated.Modifications[0].Instruction)
	// The new placeholder default shows up in the re-render.
	assert.Contains(t, updated.RenderedMarkup, "10")
}

func TestModify_RegionContainment(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	e.interp.patch = &domain.Patch{
		Kind:    domain.PatchReplaceRegion,
		Replace: &domain.ReplaceRegion{Markup: "<h1>Different</h1>"},
	}

	updated, err := e.engine.Modify(context.Background(), s.ID, "header", "change the header")
	require.NoError(t, err)

	// Everything outside the header region survives byte-for-byte.
	assert.Contains(t, updated.TemplateMarkup, `<ul>{{#each items}}<li>{{name}}: {{price}}</li>{{/each}}</ul>`)
	assert.Contains(t, updated.TemplateMarkup, `<b>Total: {{totals.amount|0}}</b>`)
	assert.Contains(t, updated.TemplateMarkup, "<h1>Different</h1>")
}

func TestModify_RegionNotFound(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	_, err := e.engine.Modify(context.Background(), s.ID, "does-not-exist", "anything")
	assert.ErrorIs(t, err, domain.ErrRegionNotFound)
	assert.Zero(t, e.interp.calls, "interpreter must not be called for unknown regions")

	after, err := e.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.TemplateMarkup, after.TemplateMarkup)
	assert.Empty(t, after.Modifications)
}

func TestModify_NoPartialCommitOnConflict(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	// Anchor does not exist in the totals region, so application conflicts.
	e.interp.patch = &domain.Patch{
		Kind:   domain.PatchInsertRelative,
		Insert: &domain.InsertRelative{Anchor: "<td>", Position: domain.InsertAfter, Markup: "x"},
	}

	before, err := e.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)

	_, err = e.engine.Modify(context.Background(), s.ID, "totals", "insert a cell")
	assert.ErrorIs(t, err, domain.ErrPatchConflict)

	after, err := e.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, before.TemplateMarkup, after.TemplateMarkup)
	assert.Equal(t, before.RenderedMarkup, after.RenderedMarkup)
	assert.Equal(t, len(before.Modifications), len(after.Modifications))
}

func TestModify_StaleSnapshotConflicts(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	// Simulate a concurrent edit landing while the interpreter is out:
	// the totals region changes between phase one and phase two.
	e.interp.hook = func() {
		stored, err := e.store.Load(context.Background(), s.ID)
		require.NoError(t, err)
		stored.TemplateMarkup = `<div class="quote">
<!-- region:header --><h1>Quote for {{client.name}}</h1><!-- /region:header -->
<!-- region:items --><ul>{{#each items}}<li>{{name}}: {{price}}</li>{{/each}}</ul><!-- /region:items -->
<!-- region:totals --><b>Grand total: {{totals.amount|0}}</b><!-- /region:totals -->
</div>`
		require.NoError(t, e.store.Save(context.Background(), stored))
	}
	e.interp.patch = &domain.Patch{
		Kind:    domain.PatchReplaceRegion,
		Replace: &domain.ReplaceRegion{Markup: "<b>mine</b>"},
	}

	_, err := e.engine.Modify(context.Background(), s.ID, "totals", "rewrite totals")
	assert.ErrorIs(t, err, domain.ErrPatchConflict)

	// The concurrent edit wins; the losing patch is not applied.
	after, err := e.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Contains(t, after.TemplateMarkup, "Grand total")
	assert.NotContains(t, after.TemplateMarkup, "<b>mine</b>")
}

func TestModify_AppendOnlyLog(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)
	ctx := context.Background()

	e.interp.patch = &domain.Patch{
		Kind:    domain.PatchReplaceRegion,
		Replace: &domain.ReplaceRegion{Markup: "<h1>v</h1>"},
	}

	for i := 0; i < 3; i++ {
		_, err := e.engine.Modify(ctx, s.ID, "header", "tweak")
		require.NoError(t, err)
	}

	// A failing modification appends nothing.
	_, err := e.engine.Modify(ctx, s.ID, "missing", "nope")
	require.ErrorIs(t, err, domain.ErrRegionNotFound)

	after, err := e.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, after.Modifications, 3)
}

func TestModify_EditsComposeOnPriorEdits(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)
	ctx := context.Background()

	// First edit introduces a nested region inside the header.
	e.interp.patch = &domain.Patch{
		Kind:    domain.PatchReplaceRegion,
		Replace: &domain.ReplaceRegion{Markup: "<!-- region:subtitle --><h2>{{subtitle}}</h2><!-- /region:subtitle -->"},
	}
	_, err := e.engine.Modify(ctx, s.ID, "header", "add a subtitle")
	require.NoError(t, err)

	// The second edit addresses the region that only exists post-edit.
	e.interp.patch = &domain.Patch{
		Kind: domain.PatchSetAttribute,
		Set:  &domain.SetAttribute{Path: "subtitle", Value: "Q3"},
	}
	updated, err := e.engine.Modify(ctx, s.ID, "subtitle", "default the subtitle to Q3")
	require.NoError(t, err)
	assert.Contains(t, updated.TemplateMarkup, "{{subtitle|Q3}}")
}

func TestModify_InterpreterFailures(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)
	ctx := context.Background()

	e.interp.err = context.DeadlineExceeded
	_, err := e.engine.Modify(ctx, s.ID, "header", "x")
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)

	e.interp.err = assert.AnError
	_, err = e.engine.Modify(ctx, s.ID, "header", "x")
	assert.ErrorIs(t, err, domain.ErrInterpretation)

	e.interp.err = nil
	e.interp.patch = &domain.Patch{Kind: "drop-table"}
	_, err = e.engine.Modify(ctx, s.ID, "header", "x")
	assert.ErrorIs(t, err, domain.ErrInterpretation)

	after, err := e.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Modifications)
}

func TestRegenerate_ReplacesDataOnly(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	updated, err := e.engine.Regenerate(context.Background(), s.ID, map[string]any{
		"client": map[string]any{"name": "Globex"},
	})
	require.NoError(t, err)

	assert.Contains(t, updated.RenderedMarkup, "Globex")
	assert.NotContains(t, updated.RenderedMarkup, "Acme")
	assert.Equal(t, s.TemplateMarkup, updated.TemplateMarkup)
	assert.Empty(t, updated.Modifications)
}

func TestExpiry_HardCutoff(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)
	ctx := context.Background()

	e.now = e.now.Add(DefaultTTL + time.Minute)

	_, err := e.engine.Modify(ctx, s.ID, "header", "x")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = e.engine.Regenerate(ctx, s.ID, nil)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, _, err = e.engine.Render(ctx, s.ID, "")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = e.engine.Get(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestExpire_ExplicitAndIdempotent(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)
	ctx := context.Background()

	require.NoError(t, e.engine.Expire(ctx, s.ID))
	require.NoError(t, e.engine.Expire(ctx, s.ID), "expire must be idempotent")
	require.NoError(t, e.engine.Expire(ctx, "unknown-id"), "expiring an unknown id is not an error")

	_, err := e.engine.Modify(ctx, s.ID, "header", "x")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestModify_UnknownSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.engine.Modify(context.Background(), "unknown-id", "header", "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRender_ReturnsArtifact(t *testing.T) {
	e := newEnv(t)
	s := e.create(t)

	artifact, sess, err := e.engine.Render(context.Background(), s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.NotEmpty(t, artifact.Data)
	assert.Equal(t, s.ID, sess.ID)

	artifact, _, err = e.engine.Render(context.Background(), s.ID, domain.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", artifact.ContentType)
}

func TestRender_BackendFailures(t *testing.T) {
	e := newEnv(t, WithRenderer(&fakeRenderer{err: assert.AnError}))
	s := e.create(t)

	_, _, err := e.engine.Render(context.Background(), s.ID, "")
	assert.ErrorIs(t, err, domain.ErrRenderFailed)

	e = newEnv(t, WithRenderer(&fakeRenderer{block: true}), WithUpstreamTimeout(10*time.Millisecond))
	s = e.create(t)

	_, _, err = e.engine.Render(context.Background(), s.ID, "")
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestComposeDocument(t *testing.T) {
	out := ComposeDocument("<p>hi</p>", "p { color: red; }")
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "p { color: red; }")
	assert.Contains(t, out, "<p>hi</p>")

	full := "<html><body>done</body></html>"
	assert.Equal(t, full, ComposeDocument(full, "ignored"))
}
