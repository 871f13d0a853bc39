package domain

import (
	"fmt"
	"strings"
)

// PatchKind enumerates the closed set of patch shapes produced by the
// interpreter boundary. The engine never parses instruction text itself.
type PatchKind string

const (
	PatchReplaceRegion  PatchKind = "replace-region"
	PatchSetAttribute   PatchKind = "set-attribute"
	PatchInsertRelative PatchKind = "insert-relative"
)

// InsertPosition places inserted markup relative to its anchor.
type InsertPosition string

const (
	InsertBefore InsertPosition = "before"
	InsertAfter  InsertPosition = "after"
)

// Patch is a structured, closed-shape instruction mutating template-form
// markup within one region. Exactly one payload matching Kind is set.
type Patch struct {
	Kind    PatchKind       `json:"kind"`
	Replace *ReplaceRegion  `json:"replace,omitempty"`
	Set     *SetAttribute   `json:"set,omitempty"`
	Insert  *InsertRelative `json:"insert,omitempty"`
}

// ReplaceRegion substitutes the region's inner markup wholesale.
type ReplaceRegion struct {
	Markup string `json:"markup"`
}

// SetAttribute changes a named placeholder's bound path or literal default.
// If the placeholder does not occur in the region yet, it is inserted at the
// end of the region.
type SetAttribute struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// InsertRelative inserts markup immediately before or after an anchor. The
// anchor must occur exactly once within the region span.
type InsertRelative struct {
	Anchor   string         `json:"anchor"`
	Position InsertPosition `json:"position"`
	Markup   string         `json:"markup"`
}

// Validate checks that the patch carries exactly the payload its kind demands.
func (p *Patch) Validate() error {
	switch p.Kind {
	case PatchReplaceRegion:
		if p.Replace == nil {
			return fmt.Errorf("replace-region patch missing payload")
		}
	case PatchSetAttribute:
		if p.Set == nil {
			return fmt.Errorf("set-attribute patch missing payload")
		}
		if strings.TrimSpace(p.Set.Path) == "" {
			return fmt.Errorf("set-attribute patch requires a placeholder path")
		}
	case PatchInsertRelative:
		if p.Insert == nil {
			return fmt.Errorf("insert-relative patch missing payload")
		}
		if p.Insert.Anchor == "" {
			return fmt.Errorf("insert-relative patch requires an anchor")
		}
		if p.Insert.Position != InsertBefore && p.Insert.Position != InsertAfter {
			return fmt.Errorf("insert-relative position must be %q or %q", InsertBefore, InsertAfter)
		}
	default:
		return fmt.Errorf("unknown patch kind %q", p.Kind)
	}
	return nil
}

// Summary produces the short human-readable line recorded in the edit log.
func (p *Patch) Summary() string {
	switch p.Kind {
	case PatchReplaceRegion:
		return "replaced region content"
	case PatchSetAttribute:
		if p.Set.NewPath != "" {
			return fmt.Sprintf("rebound %s to %s", p.Set.Path, p.Set.NewPath)
		}
		return fmt.Sprintf("set %s = %v", p.Set.Path, p.Set.Value)
	case PatchInsertRelative:
		return fmt.Sprintf("inserted markup %s anchor", p.Insert.Position)
	}
	return string(p.Kind)
}
