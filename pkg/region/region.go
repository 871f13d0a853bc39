// Package region builds the index of named, contiguous markup regions used
// to scope edits. Regions are delimited by boundary comments in the template
// authoring convention:
//
//	<!-- region:totals --> ... <!-- /region:totals -->
//
// Regions must be well-nested and names unique within one document. The
// index is recomputed from scratch after every modification instead of being
// maintained incrementally, which keeps it impossible for the index and the
// markup to drift apart.
package region

import (
	"fmt"
	"regexp"

	"github.com/glyphhq/glyph/pkg/domain"
)

var markerRe = regexp.MustCompile(`<!--\s*(/?)region:([A-Za-z0-9][A-Za-z0-9_-]*)\s*-->`)

// Span locates one region inside the markup it was indexed from. Start/End
// cover the boundary comments; InnerStart/InnerEnd cover the content between
// them.
type Span struct {
	Name       string
	Start      int
	End        int
	InnerStart int
	InnerEnd   int
}

// Index maps region names to their spans, preserving document order.
type Index struct {
	spans map[string]Span
	names []string
}

// Names returns the region names in document order of their opening markers.
func (ix *Index) Names() []string {
	out := make([]string, len(ix.names))
	copy(out, ix.names)
	return out
}

// Lookup returns the span for a region name.
func (ix *Index) Lookup(name string) (Span, bool) {
	s, ok := ix.spans[name]
	return s, ok
}

// Inner returns the content of a region (between its boundary markers).
func (ix *Index) Inner(markup, name string) (string, bool) {
	s, ok := ix.spans[name]
	if !ok {
		return "", false
	}
	return markup[s.InnerStart:s.InnerEnd], true
}

// New parses markup and builds the region index. It fails with
// domain.ErrRegionIndex when boundaries are unbalanced, close markers do not
// match the innermost open region, or a name is duplicated.
func New(markup string) (*Index, error) {
	type open struct {
		name       string
		start      int
		innerStart int
	}

	ix := &Index{spans: make(map[string]Span)}
	var stack []open

	for _, loc := range markerRe.FindAllStringSubmatchIndex(markup, -1) {
		closing := loc[3] > loc[2] // the "/" group is non-empty
		name := markup[loc[4]:loc[5]]

		if !closing {
			if _, dup := ix.spans[name]; dup {
				return nil, fmt.Errorf("%w: duplicate region %q", domain.ErrRegionIndex, name)
			}
			for _, o := range stack {
				if o.name == name {
					return nil, fmt.Errorf("%w: duplicate region %q", domain.ErrRegionIndex, name)
				}
			}
			stack = append(stack, open{name: name, start: loc[0], innerStart: loc[1]})
			continue
		}

		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: close marker for %q without open", domain.ErrRegionIndex, name)
		}
		top := stack[len(stack)-1]
		if top.name != name {
			return nil, fmt.Errorf("%w: close marker for %q inside region %q", domain.ErrRegionIndex, name, top.name)
		}
		stack = stack[:len(stack)-1]

		ix.spans[name] = Span{
			Name:       name,
			Start:      top.start,
			End:        loc[1],
			InnerStart: top.innerStart,
			InnerEnd:   loc[0],
		}
		ix.names = append(ix.names, name)
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: region %q never closed", domain.ErrRegionIndex, stack[len(stack)-1].name)
	}

	// Report names by opening order, not closing order.
	orderNamesByStart(ix)
	return ix, nil
}

func orderNamesByStart(ix *Index) {
	names := ix.names
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && ix.spans[names[j]].Start < ix.spans[names[j-1]].Start; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}
