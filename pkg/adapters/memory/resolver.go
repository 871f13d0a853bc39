package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/glyphhq/glyph/pkg/domain"
)

// Resolver implements ports.TemplateResolver over a fixed in-memory set.
type Resolver struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
}

// NewResolver creates a resolver pre-loaded with the given templates.
func NewResolver(templates ...*domain.Template) *Resolver {
	r := &Resolver{templates: make(map[string]*domain.Template)}
	for _, tpl := range templates {
		r.templates[tpl.ID] = tpl
	}
	return r
}

// Add registers a template, overwriting any previous entry with the same ID.
func (r *Resolver) Add(tpl *domain.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tpl.ID] = tpl
}

// Resolve returns the template for an ID. The not-found error enumerates
// valid IDs for diagnosability.
func (r *Resolver) Resolve(ctx context.Context, id string) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", domain.ErrTemplateNotFound, id, strings.Join(r.ids(), ", "))
	}
	cp := *tpl
	return &cp, nil
}

// List returns all templates, optionally filtered by category.
func (r *Resolver) List(ctx context.Context, category string) ([]*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Template, 0, len(r.templates))
	for _, id := range r.ids() {
		tpl := r.templates[id]
		if category != "" && tpl.Category != category {
			continue
		}
		cp := *tpl
		out = append(out, &cp)
	}
	return out, nil
}

// ids returns sorted template IDs. Callers must hold at least a read lock.
func (r *Resolver) ids() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
