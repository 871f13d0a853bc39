package glyph

import (
	"context"
	"log/slog"

	"github.com/glyphhq/glyph/pkg/adapters/memory"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/engine"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/glyphhq/glyph/pkg/registry"
)

// Client is the high-level entry point for the Glyph library. It wraps the
// session engine and provides a simplified API for consumers.
type Client struct {
	engine    *engine.Engine
	templates ports.TemplateResolver
	store     ports.SessionStore

	engineOpts []engine.Option
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithStore injects a session store, bypassing the default in-memory one.
func WithStore(s ports.SessionStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithTemplates injects a template resolver, bypassing the default
// file-registry initialization.
func WithTemplates(r ports.TemplateResolver) Option {
	return func(c *Client) {
		c.templates = r
	}
}

// WithInterpreter sets the instruction interpreter backend.
func WithInterpreter(i ports.Interpreter) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, engine.WithInterpreter(i))
	}
}

// WithRenderer sets the rendering backend.
func WithRenderer(r ports.Renderer) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, engine.WithRenderer(r))
	}
}

// WithLocker enables distributed locking for multi-instance deployments.
func WithLocker(l ports.DistributedLocker) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, engine.WithLocker(l))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, engine.WithLifecycleHooks(hooks))
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, engine.WithLogger(logger))
	}
}

// WithEngineOptions appends raw engine options (TTL, timeouts, sanitizer).
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// New initializes a Glyph client.
// By default it loads the template registry from templatesDir and keeps
// sessions in memory. If WithTemplates is provided, templatesDir may be empty.
func New(templatesDir string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.templates == nil {
		reg, err := registry.NewFromDir(templatesDir)
		if err != nil {
			return nil, err
		}
		c.templates = reg
	}
	if c.store == nil {
		c.store = memory.NewStore()
	}

	// A registry doubles as the data validator.
	if v, ok := c.templates.(ports.DataValidator); ok {
		c.engineOpts = append([]engine.Option{engine.WithValidator(v)}, c.engineOpts...)
	}

	c.engine = engine.New(c.templates, c.store, c.engineOpts...)
	return c, nil
}

// Create starts a new document session.
func (c *Client) Create(ctx context.Context, req engine.CreateRequest) (*domain.Session, error) {
	return c.engine.Create(ctx, req)
}

// Get returns the current state of a session.
func (c *Client) Get(ctx context.Context, id string) (*domain.Session, error) {
	return c.engine.Get(ctx, id)
}

// List returns the IDs of live sessions.
func (c *Client) List(ctx context.Context) ([]string, error) {
	return c.engine.List(ctx)
}

// Modify applies a natural-language edit to one region of the document.
func (c *Client) Modify(ctx context.Context, id, region, instruction string) (*domain.Session, error) {
	return c.engine.Modify(ctx, id, region, instruction)
}

// Regenerate replaces the session data wholesale and rebinds.
func (c *Client) Regenerate(ctx context.Context, id string, data map[string]any) (*domain.Session, error) {
	return c.engine.Regenerate(ctx, id, data)
}

// Render produces the final artifact for a session.
func (c *Client) Render(ctx context.Context, id, format string) (ports.Artifact, *domain.Session, error) {
	return c.engine.Render(ctx, id, format)
}

// Expire terminates a session immediately. Idempotent.
func (c *Client) Expire(ctx context.Context, id string) error {
	return c.engine.Expire(ctx, id)
}

// Engine exposes the underlying engine for adapters.
func (c *Client) Engine() *engine.Engine {
	return c.engine
}

// Templates exposes the template resolver used by the client.
func (c *Client) Templates() ports.TemplateResolver {
	return c.templates
}

// Store exposes the session store used by the client.
func (c *Client) Store() ports.SessionStore {
	return c.store
}
