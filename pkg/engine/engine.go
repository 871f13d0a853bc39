// Package engine implements the session state machine: create, modify,
// regenerate, render and expire operations over editing sessions.
//
// A session is Active until it expires (by horizon or explicit close); a
// failed operation leaves it Active with its prior value unchanged. All
// state-changing operations on one session ID are serialized through the
// session manager.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/glyphhq/glyph/internal/logging"
	"github.com/glyphhq/glyph/pkg/binder"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/glyphhq/glyph/pkg/region"
	"github.com/glyphhq/glyph/pkg/session"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// DefaultTTL is the expiry horizon applied when a create request does
	// not override it.
	DefaultTTL = 30 * time.Minute

	// MaxTTL bounds caller-supplied TTL overrides.
	MaxTTL = 24 * time.Hour

	// DefaultUpstreamTimeout bounds interpreter and renderer calls.
	DefaultUpstreamTimeout = 30 * time.Second
)

// Engine orchestrates the document-session lifecycle through the ports.
type Engine struct {
	resolver  ports.TemplateResolver
	validator ports.DataValidator
	sessions  *session.Manager
	interp    ports.Interpreter
	renderer  ports.Renderer

	ttl             time.Duration
	maxTTL          time.Duration
	upstreamTimeout time.Duration
	sanitizer       *bluemonday.Policy
	hooks           domain.LifecycleHooks
	logger          *slog.Logger
	now             func() time.Time

	managerOpts []session.Option
}

// Option configures the Engine.
type Option func(*Engine)

// WithInterpreter wires the natural-language interpreter boundary.
func WithInterpreter(i ports.Interpreter) Option {
	return func(e *Engine) { e.interp = i }
}

// WithRenderer wires the rendering backend boundary.
func WithRenderer(r ports.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithValidator enables JSON-schema validation of data payloads at create time.
func WithValidator(v ports.DataValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithTTL sets the default session expiry horizon.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// WithUpstreamTimeout bounds interpreter and renderer calls.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(e *Engine) { e.upstreamTimeout = d }
}

// WithSanitizer applies an HTML policy to interpreter-produced markup before
// patch application.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(e *Engine) { e.sanitizer = p }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLocker enables distributed per-session locking.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.managerOpts = append(e.managerOpts, session.WithLocker(l)) }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over a template resolver and a session store.
// Interpreter and renderer are optional; operations needing them fail with
// a clear error when absent.
func New(resolver ports.TemplateResolver, store ports.SessionStore, opts ...Option) *Engine {
	e := &Engine{
		resolver:        resolver,
		ttl:             DefaultTTL,
		maxTTL:          MaxTTL,
		upstreamTimeout: DefaultUpstreamTimeout,
		logger:          logging.NewNop(),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.managerOpts = append(e.managerOpts, session.WithLogger(e.logger))
	e.sessions = session.NewManager(store, e.managerOpts...)
	return e
}

// CreateRequest describes a new session. Exactly one of TemplateID, HTML or
// URL must be set: TemplateID resolves markup from the registry, HTML
// supplies raw markup directly (regions are still indexed if boundary
// markers are present), URL points the rendering backend at an external page.
// URL sessions carry no markup, so Modify and Regenerate reject them.
// Options are renderer knobs passed through to the backend untouched.
type CreateRequest struct {
	TemplateID string
	HTML       string
	URL        string
	Data       map[string]any
	Format     string
	TTL        time.Duration
	Intent     string
	Style      string
	Options    map[string]any
	Owner      string
}

// Create binds the initial render and persists a fresh Active session.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	format := req.Format
	if format == "" {
		format = domain.FormatPDF
	}
	if format != domain.FormatPDF && format != domain.FormatPNG {
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidData, req.Format)
	}

	sources := 0
	for _, set := range []bool{req.TemplateID != "", req.HTML != "", req.URL != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("%w: exactly one of templateId, html or url is required", domain.ErrInvalidData)
	}

	var markup, stylesheet string
	switch {
	case req.TemplateID != "":
		tpl, err := e.resolver.Resolve(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		if e.validator != nil && tpl.Schema != nil {
			if err := e.validator.ValidateData(tpl, req.Data); err != nil {
				return nil, err
			}
		}
		markup, stylesheet = tpl.Markup, tpl.Stylesheet
	case req.HTML != "":
		markup = req.HTML
	case req.URL != "":
		u, err := url.Parse(req.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: url must be absolute http(s): %q", domain.ErrInvalidData, req.URL)
		}
	}

	data := req.Data
	if data == nil {
		data = make(map[string]any)
	}

	var rendered string
	if req.URL == "" {
		// Reject markup with broken region boundaries up front.
		if _, err := region.New(markup); err != nil {
			return nil, err
		}
		var err error
		rendered, err = binder.Bind(markup, data)
		if err != nil {
			return nil, err
		}
	}

	s := domain.NewSession(req.TemplateID, req.Owner, e.clampTTL(req.TTL))
	s.SourceURL = req.URL
	s.TemplateMarkup = markup
	s.RenderedMarkup = rendered
	s.Stylesheet = stylesheet
	s.Data = data
	s.Options = req.Options
	s.Format = format
	s.Intent = req.Intent
	s.Style = req.Style
	s.CreatedAt = e.now()
	s.ExpiresAt = s.CreatedAt.Add(e.clampTTL(req.TTL))

	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	e.fireSession(ctx, domain.EventSessionCreate, s.ID, req.TemplateID, "", false)
	e.logger.Info("session created",
		"session_id", s.ID,
		"template_id", s.TemplateID,
		"expires_at", s.ExpiresAt,
	)
	return s.Clone(), nil
}

// Regenerate recomputes the rendered markup, optionally replacing the data
// payload first. It never touches the template markup or the edit log.
func (e *Engine) Regenerate(ctx context.Context, id string, data map[string]any) (*domain.Session, error) {
	var out *domain.Session
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		s, err := e.loadActive(ctx, id)
		if err != nil {
			return err
		}
		if s.SourceURL != "" {
			return fmt.Errorf("%w: session renders from a url and has no data binding", domain.ErrInvalidData)
		}
		if data != nil {
			s.Data = data
		}
		rendered, err := binder.Bind(s.TemplateMarkup, s.Data)
		if err != nil {
			return err
		}
		s.RenderedMarkup = rendered
		if err := e.sessions.Store().Save(ctx, s); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.fireSession(ctx, domain.EventRegenerate, id, out.TemplateID, "", false)
	return out, nil
}

// Expire transitions a session to its terminal state. Idempotent: expiring
// an already-expired or unknown session succeeds.
func (e *Engine) Expire(ctx context.Context, id string) error {
	return e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		s, err := e.sessions.Store().Load(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.Status == domain.StatusExpired {
			return nil
		}
		s.Status = domain.StatusExpired
		if now := e.now(); s.ExpiresAt.After(now) {
			s.ExpiresAt = now
		}
		return e.sessions.Store().Save(ctx, s)
	})
}

// Get returns a session for inspection. Expired sessions fail with
// domain.ErrSessionExpired; unknown IDs with domain.ErrSessionNotFound.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Session, error) {
	s, err := e.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(e.now()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExpired, id)
	}
	return s.Clone(), nil
}

// List returns the IDs of stored sessions.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Render hands the session's current rendered markup to the rendering
// backend and returns the binary artifact. An empty format falls back to the
// session's format.
func (e *Engine) Render(ctx context.Context, id, format string) (ports.Artifact, *domain.Session, error) {
	if e.renderer == nil {
		return ports.Artifact{}, nil, fmt.Errorf("%w: no rendering backend configured", domain.ErrRenderFailed)
	}

	s, err := e.Get(ctx, id)
	if err != nil {
		return ports.Artifact{}, nil, err
	}
	if format == "" {
		format = s.Format
	}
	if format != domain.FormatPDF && format != domain.FormatPNG {
		return ports.Artifact{}, nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidData, format)
	}

	job := ports.RenderRequest{Format: format, Options: s.Options}
	if s.SourceURL != "" {
		job.URL = s.SourceURL
	} else {
		job.HTML = ComposeDocument(s.RenderedMarkup, s.Stylesheet)
	}

	rctx, cancel := context.WithTimeout(ctx, e.upstreamTimeout)
	defer cancel()

	started := e.now()
	artifact, err := e.renderer.Render(rctx, job)
	e.fireUpstream(ctx, "renderer", id, e.now().Sub(started), len(artifact.Data), err != nil)
	if err != nil {
		return ports.Artifact{}, nil, e.mapUpstreamErr(err, domain.ErrRenderFailed)
	}

	e.fireSession(ctx, domain.EventRender, id, s.TemplateID, "", false)
	return artifact, s, nil
}

// -- internals --

// loadActive loads a session and enforces the expiry hard cutoff for
// state-changing operations. Must be called under the session lock.
func (e *Engine) loadActive(ctx context.Context, id string) (*domain.Session, error) {
	s, err := e.sessions.Store().Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(e.now()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExpired, id)
	}
	return s, nil
}

func (e *Engine) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return e.ttl
	}
	if ttl > e.maxTTL {
		return e.maxTTL
	}
	return ttl
}

// mapUpstreamErr normalizes boundary failures: deadline hits become
// UpstreamTimeout, everything else not already a sentinel is wrapped.
func (e *Engine) mapUpstreamErr(err error, sentinel error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, sentinel):
		return err
	default:
		return fmt.Errorf("%w: %v", sentinel, err)
	}
}

func (e *Engine) fireSession(ctx context.Context, typ domain.EventType, id, templateID, regionName string, isErr bool) {
	var fn func(context.Context, *domain.SessionEvent)
	switch typ {
	case domain.EventSessionCreate:
		fn = e.hooks.OnSessionCreate
	case domain.EventModify:
		fn = e.hooks.OnModify
	case domain.EventRegenerate:
		fn = e.hooks.OnRegenerate
	case domain.EventRender:
		fn = e.hooks.OnRender
	}
	if fn == nil {
		return
	}
	fn(ctx, &domain.SessionEvent{
		EventBase:  domain.EventBase{Timestamp: e.now(), Type: typ, SessionID: id},
		TemplateID: templateID,
		Region:     regionName,
		IsError:    isErr,
	})
}

func (e *Engine) fireUpstream(ctx context.Context, target, id string, d time.Duration, bytes int, isErr bool) {
	if e.hooks.OnUpstreamCall == nil {
		return
	}
	e.hooks.OnUpstreamCall(ctx, &domain.UpstreamEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventUpstreamCall, SessionID: id},
		Target:    target,
		Duration:  d,
		Bytes:     bytes,
		IsError:   isErr,
	})
}

// ComposeDocument wraps rendered markup and a stylesheet into a complete
// HTML document for the rendering backend. Markup that already carries an
// <html> root passes through unchanged.
func ComposeDocument(markup, stylesheet string) string {
	if strings.Contains(strings.ToLower(markup), "<html") {
		return markup
	}
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if stylesheet != "" {
		sb.WriteString("<style>\n")
		sb.WriteString(stylesheet)
		sb.WriteString("\n</style>\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(markup)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}
