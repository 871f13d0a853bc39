package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusExpired SessionStatus = "expired" // Terminal
)

// Output formats accepted by the rendering backend.
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// Modification is one entry of the append-only edit log.
type Modification struct {
	Region       string    `json:"region"`
	Instruction  string    `json:"instruction"`
	PatchSummary string    `json:"patchSummary"`
	AppliedAt    time.Time `json:"appliedAt"`
}

// Session binds one template+data+edit-history tuple to an ID.
//
// TemplateMarkup is the editable form (placeholders intact) and is mutated
// only through patch application. RenderedMarkup is derived: it is always the
// data-bound projection of TemplateMarkup and Data, recomputed on change and
// never written directly.
type Session struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"templateId,omitempty"`
	SourceURL      string         `json:"sourceUrl,omitempty"`
	TemplateMarkup string         `json:"templateMarkup"`
	RenderedMarkup string         `json:"renderedMarkup"`
	Stylesheet     string         `json:"stylesheet,omitempty"`
	Data           map[string]any `json:"data"`
	Options        map[string]any `json:"options,omitempty"`
	Format         string         `json:"format"`
	Intent         string         `json:"intent,omitempty"`
	Style          string         `json:"style,omitempty"`
	Modifications  []Modification `json:"modifications"`
	Status         SessionStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`

	// OwnerRef is the credential that created the session. Used for
	// authorization scoping only.
	OwnerRef string `json:"ownerRef,omitempty"`
}

// NewSession creates an active session with a fresh ID and expiry horizon.
func NewSession(templateID, owner string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            uuid.NewString(),
		TemplateID:    templateID,
		Format:        FormatPDF,
		Data:          make(map[string]any),
		Modifications: []Modification{},
		Status:        StatusActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		OwnerRef:      owner,
	}
}

// Expired reports whether the session is past its horizon at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s.Status == StatusExpired || now.After(s.ExpiresAt)
}

// TTL returns the remaining lifetime at the given instant, or zero if expired.
func (s *Session) TTL(now time.Time) time.Duration {
	if s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Filename derives the artifact file name from the template and session IDs.
func (s *Session) Filename() string {
	base := s.TemplateID
	if base == "" {
		base = "document"
	}
	ext := s.Format
	if ext == "" {
		ext = FormatPDF
	}
	short := s.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s.%s", base, short, ext)
}

// Clone returns a deep copy so callers can't mutate stored state by pointer.
// Data and Options are copied recursively through their JSON-shaped values.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Data = cloneMap(s.Data)
	cp.Options = cloneMap(s.Options)
	cp.Modifications = make([]Modification, len(s.Modifications))
	copy(cp.Modifications, s.Modifications)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = cloneValue(v)
	}
	return cp
}

// cloneValue recurses over the shapes json.Unmarshal produces; scalars and
// anything else are copied by value.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		cp := make([]any, len(v))
		for i, e := range v {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}
