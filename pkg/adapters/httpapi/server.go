// Package httpapi exposes the engine over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glyphhq/glyph/internal/logging"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/engine"
	"github.com/glyphhq/glyph/pkg/observability"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Engine defines the document-session core the API fronts.
type Engine interface {
	Create(ctx context.Context, req engine.CreateRequest) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context) ([]string, error)
	Modify(ctx context.Context, id, region, instruction string) (*domain.Session, error)
	Regenerate(ctx context.Context, id string, data map[string]any) (*domain.Session, error)
	Render(ctx context.Context, id, format string) (ports.Artifact, *domain.Session, error)
	Expire(ctx context.Context, id string) error
}

// Server holds the API dependencies.
type Server struct {
	engine    Engine
	templates ports.TemplateResolver
	keys      ports.KeyStore
	metrics   *observability.Metrics
	logger    *slog.Logger
}

type Option func(*Server)

// WithTemplates enables the template catalog endpoints.
func WithTemplates(r ports.TemplateResolver) Option {
	return func(s *Server) {
		s.templates = r
	}
}

// WithKeyStore enables Bearer-token authentication.
func WithKeyStore(ks ports.KeyStore) Option {
	return func(s *Server) {
		s.keys = ks
	}
}

// WithMetrics mounts /metrics and instruments the API routes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewHandler builds the chi router for the API.
func NewHandler(eng Engine, opts ...Option) http.Handler {
	s := &Server{
		engine: eng,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth)

		r.Post("/create", s.instrument("/v1/create", s.create))
		r.Get("/sessions", s.instrument("/v1/sessions", s.listSessions))
		r.Get("/sessions/{id}", s.instrument("/v1/sessions/{id}", s.getSession))
		r.Post("/sessions/{id}/modify", s.instrument("/v1/sessions/{id}/modify", s.modify))
		r.Post("/sessions/{id}/regenerate", s.instrument("/v1/sessions/{id}/regenerate", s.regenerate))
		r.Post("/sessions/{id}/render", s.instrument("/v1/sessions/{id}/render", s.render))
		r.Delete("/sessions/{id}", s.instrument("/v1/sessions/{id}", s.expire))

		if s.templates != nil {
			r.Get("/templates", s.instrument("/v1/templates", s.listTemplates))
			r.Get("/templates/{id}/schema", s.instrument("/v1/templates/{id}/schema", s.templateSchema))
		}
	})

	return enableCORS(r)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	wrapped := s.metrics.Middleware(route)(h)
	return wrapped.ServeHTTP
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey string

const ownerKey ctxKey = "owner"

// auth verifies the Bearer token against the key store. Without a key store
// the API is open and the owner is empty.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.keys == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, r, domain.ErrUnauthorized)
			return
		}

		owner, err := s.keys.Verify(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// -- Handlers --

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	TemplateID string         `json:"templateId,omitempty"`
	HTML       string         `json:"html,omitempty"`
	URL        string         `json:"url,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Format     string         `json:"format,omitempty"`
	TTLSeconds int            `json:"ttlSeconds,omitempty"`
	Intent     string         `json:"intent,omitempty"`
	Style      string         `json:"style,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidData, err))
		return
	}

	sess, err := s.engine.Create(r.Context(), engine.CreateRequest{
		TemplateID: body.TemplateID,
		HTML:       body.HTML,
		URL:        body.URL,
		Data:       body.Data,
		Format:     body.Format,
		TTL:        time.Duration(body.TTLSeconds) * time.Second,
		Intent:     body.Intent,
		Style:      body.Style,
		Options:    body.Options,
		Owner:      ownerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

type modifyRequest struct {
	Region      string `json:"region"`
	Instruction string `json:"instruction"`
}

func (s *Server) modify(w http.ResponseWriter, r *http.Request) {
	var body modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidData, err))
		return
	}
	if body.Region == "" || body.Instruction == "" {
		s.writeError(w, r, fmt.Errorf("%w: region and instruction are required", domain.ErrInvalidData))
		return
	}

	sess, err := s.engine.Modify(r.Context(), chi.URLParam(r, "id"), body.Region, body.Instruction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

type regenerateRequest struct {
	Data map[string]any `json:"data"`
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	var body regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidData, err))
		return
	}

	sess, err := s.engine.Regenerate(r.Context(), chi.URLParam(r, "id"), body.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := r.URL.Query().Get("format")

	artifact, sess, err := s.engine.Render(r.Context(), id, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Filename()))
	w.Header().Set("X-Session-Expires-At", sess.ExpiresAt.Format(time.RFC3339))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Error("failed to write artifact", "error", err, "session_id", id)
	}
}

func (s *Server) expire(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Expire(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "expired"})
}

type templateSummary struct {
	ID          string   `json:"id"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Regions     []string `json:"regions"`
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.templates.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]templateSummary, 0, len(tpls))
	for _, tpl := range tpls {
		out = append(out, templateSummary{
			ID:          tpl.ID,
			Category:    tpl.Category,
			Description: tpl.Description,
			Regions:     tpl.RegionNames,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) templateSchema(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	schema := tpl.Schema
	if schema == nil {
		schema = map[string]any{}
	}
	writeJSON(w, http.StatusOK, schema)
}

// -- Error envelope --

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// status/code pairs for each domain sentinel.
var errorTable = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrTemplateNotFound, http.StatusNotFound, "TEMPLATE_NOT_FOUND"},
	{domain.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{domain.ErrRegionNotFound, http.StatusNotFound, "REGION_NOT_FOUND"},
	{domain.ErrSessionExpired, http.StatusGone, "SESSION_EXPIRED"},
	{domain.ErrPatchConflict, http.StatusConflict, "PATCH_CONFLICT"},
	{domain.ErrInvalidData, http.StatusBadRequest, "INVALID_DATA"},
	{domain.ErrTemplateMalformed, http.StatusUnprocessableEntity, "TEMPLATE_MALFORMED"},
	{domain.ErrRegionIndex, http.StatusUnprocessableEntity, "REGION_INDEX_FAILED"},
	{domain.ErrInterpretation, http.StatusUnprocessableEntity, "INTERPRETATION_FAILED"},
	{domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
	{domain.ErrRenderFailed, http.StatusBadGateway, "RENDER_FAILED"},
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	for _, e := range errorTable {
		if errors.Is(err, e.sentinel) {
			status, code = e.status, e.code
			break
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "path", r.URL.Path)
	} else {
		s.logger.Warn("request rejected", "error", err, "path", r.URL.Path, "code", code)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sessionView is the API projection of a session.
type sessionView struct {
	ID             string                `json:"id"`
	TemplateID     string                `json:"templateId,omitempty"`
	SourceURL      string                `json:"sourceUrl,omitempty"`
	Status         domain.SessionStatus  `json:"status"`
	Format         string                `json:"format"`
	RenderedMarkup string                `json:"renderedMarkup"`
	Data           map[string]any        `json:"data"`
	Modifications  []domain.Modification `json:"modifications"`
	CreatedAt      time.Time             `json:"createdAt"`
	ExpiresAt      time.Time             `json:"expiresAt"`
	Filename       string                `json:"filename"`
}

func sessionResponse(s *domain.Session) sessionView {
	return sessionView{
		ID:             s.ID,
		TemplateID:     s.TemplateID,
		SourceURL:      s.SourceURL,
		Status:         s.Status,
		Format:         s.Format,
		RenderedMarkup: s.RenderedMarkup,
		Data:           s.Data,
		Modifications:  s.Modifications,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		Filename:       s.Filename(),
	}
}
