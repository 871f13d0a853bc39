// Package patch applies structured patches to template-form markup, scoped
// to one named region. Markup outside the target region's span is copied
// through byte-for-byte; application is all-or-nothing.
package patch

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/glyphhq/glyph/pkg/binder"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/region"
)

// Apply returns new markup with the patch applied inside regionName.
//
// The region index is computed from the input immediately before
// application; after substitution the result is re-indexed and re-parsed by
// the binder grammar. Any re-validation failure yields
// domain.ErrPatchConflict and the caller keeps its prior markup.
func Apply(markup, regionName string, p *domain.Patch) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPatchConflict, err)
	}

	ix, err := region.New(markup)
	if err != nil {
		return "", err
	}
	span, ok := ix.Lookup(regionName)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrRegionNotFound, regionName)
	}

	inner := markup[span.InnerStart:span.InnerEnd]
	var newInner string
	switch p.Kind {
	case domain.PatchReplaceRegion:
		newInner = p.Replace.Markup
	case domain.PatchSetAttribute:
		newInner = setAttribute(inner, p.Set)
	case domain.PatchInsertRelative:
		newInner, err = insertRelative(inner, p.Insert)
		if err != nil {
			return "", err
		}
	}

	result := markup[:span.InnerStart] + newInner + markup[span.InnerEnd:]

	if _, err := region.New(result); err != nil {
		return "", fmt.Errorf("%w: patched markup failed re-indexing: %v", domain.ErrPatchConflict, err)
	}
	if err := binder.Validate(result); err != nil {
		return "", fmt.Errorf("%w: patched markup failed binder validation: %v", domain.ErrPatchConflict, err)
	}
	return result, nil
}

// setAttribute rewrites every placeholder bound to the given path, changing
// its bound path and/or literal default. A placeholder not yet present in
// the region is appended at its end.
func setAttribute(inner string, set *domain.SetAttribute) string {
	path := set.Path
	if set.NewPath != "" {
		path = set.NewPath
	}
	replacement := "{{" + path
	if set.Value != nil {
		replacement += "|" + formatLiteral(set.Value)
	}
	replacement += "}}"

	re := placeholderPattern(set.Path)
	if re.MatchString(inner) {
		// Literal replacement: values like "$1,250.00" must not be read
		// as capture-group references.
		return re.ReplaceAllLiteralString(inner, replacement)
	}
	return inner + "\n" + replacement
}

func insertRelative(inner string, ins *domain.InsertRelative) (string, error) {
	switch n := strings.Count(inner, ins.Anchor); {
	case n == 0:
		return "", fmt.Errorf("%w: anchor not found in region", domain.ErrPatchConflict)
	case n > 1:
		return "", fmt.Errorf("%w: anchor occurs %d times in region, need exactly one", domain.ErrPatchConflict, n)
	}

	at := strings.Index(inner, ins.Anchor)
	if ins.Position == domain.InsertAfter {
		at += len(ins.Anchor)
	}
	return inner[:at] + ins.Markup + inner[at:], nil
}

// placeholderPattern matches {{path}} and {{path|default}} occurrences of a
// specific bound path, tolerating marker-internal whitespace.
func placeholderPattern(path string) *regexp.Regexp {
	return regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(path) + `\s*(\|[^}]*)?\}\}`)
}

func formatLiteral(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
