// Package registry resolves template identifiers to immutable templates.
//
// Templates are authored as YAML files (one per template) carrying markup,
// stylesheet, JSON schema and catalog metadata. The set is closed at load
// time: every file is parsed, region-indexed and schema-compiled up front,
// so a registry that constructs successfully can always resolve its IDs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/glyphhq/glyph/pkg/binder"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/region"
	"gopkg.in/yaml.v3"
)

// Registry implements ports.TemplateResolver and ports.DataValidator over a
// fixed template set.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
	schemas   map[string]*openapi3.Schema
}

// New builds a registry from in-memory templates, validating each one.
func New(templates ...*domain.Template) (*Registry, error) {
	r := &Registry{
		templates: make(map[string]*domain.Template),
		schemas:   make(map[string]*openapi3.Schema),
	}
	for _, tpl := range templates {
		if err := r.add(tpl); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewFromDir loads every *.yaml / *.yml template definition in dir.
func NewFromDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}

	r := &Registry{
		templates: make(map[string]*domain.Template),
		schemas:   make(map[string]*openapi3.Schema),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		tpl, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		if err := r.add(tpl); err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
	}
	if len(r.templates) == 0 {
		return nil, fmt.Errorf("no template definitions found in %s", dir)
	}
	return r, nil
}

func loadFile(path string) (*domain.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tpl domain.Template
	if err := yaml.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if tpl.ID == "" {
		return nil, fmt.Errorf("missing template id")
	}
	return &tpl, nil
}

// add validates markup and schema, fills RegionNames and registers the template.
func (r *Registry) add(tpl *domain.Template) error {
	if _, exists := r.templates[tpl.ID]; exists {
		return fmt.Errorf("duplicate template id %q", tpl.ID)
	}

	ix, err := region.New(tpl.Markup)
	if err != nil {
		return err
	}
	if err := binder.Validate(tpl.Markup); err != nil {
		return err
	}
	tpl.RegionNames = ix.Names()

	if tpl.Schema != nil {
		schema, err := compileSchema(tpl.Schema)
		if err != nil {
			return fmt.Errorf("invalid schema: %w", err)
		}
		r.schemas[tpl.ID] = schema
	}

	r.templates[tpl.ID] = tpl
	return nil
}

func compileSchema(raw map[string]any) (*openapi3.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	schema := openapi3.NewSchema()
	if err := schema.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return schema, nil
}

// Resolve returns the template for an ID. The not-found error enumerates
// valid IDs for diagnosability.
func (r *Registry) Resolve(ctx context.Context, id string) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", domain.ErrTemplateNotFound, id, strings.Join(r.ids(), ", "))
	}
	cp := *tpl
	return &cp, nil
}

// List returns all templates, optionally filtered by category, ordered by ID.
func (r *Registry) List(ctx context.Context, category string) ([]*domain.Template, error) {
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

// ValidateData checks a data payload against the template's JSON schema.
// Templates without a schema accept any payload.
func (r *Registry) ValidateData(tpl *domain.Template, data map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[tpl.ID]
	r.mu.RUnlock()

	if !ok {
		if tpl.Schema == nil {
			return nil
		}
		var err error
		schema, err = compileSchema(tpl.Schema)
		if err != nil {
			return fmt.Errorf("invalid schema: %w", err)
		}
	}

	var payload any = map[string]any{}
	if data != nil {
		payload = data
	}
	if err := schema.VisitJSON(payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidData, err)
	}
	return nil
}

// ids returns sorted template IDs. Callers must hold at least a read lock.
func (r *Registry) ids() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
