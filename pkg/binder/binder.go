// Package binder implements the data-binding grammar for template-form
// markup: dotted-path placeholders with optional literal defaults
// ({{client.name}}, {{totals.discountPct|0}}) and block iteration over
// sequences ({{#each items}}...{{/each}}).
//
// Binding is pure: the same markup and data always produce byte-identical
// output. A missing path renders as an empty string; only grammar errors
// (unclosed tags, mismatched blocks) fail, with domain.ErrTemplateMalformed.
package binder

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/glyphhq/glyph/pkg/domain"
)

// Validate parses markup without rendering it. It reports the same grammar
// errors Bind would.
func Validate(markup string) error {
	p := &parser{src: markup}
	_, err := p.parse(false)
	return err
}

// Bind substitutes placeholders in markup using data and expands each-blocks.
func Bind(markup string, data map[string]any) (string, error) {
	p := &parser{src: markup}
	nodes, err := p.parse(false)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(markup))
	render(&sb, nodes, []any{data})
	return sb.String(), nil
}

// -- Parsing --

type node any

type textNode string

type placeholderNode struct {
	path string
	def  string
}

type eachNode struct {
	path string
	body []node
}

type parser struct {
	src string
	pos int
}

// parse consumes nodes until end of input, or until the matching {{/each}}
// when inBlock is set.
func (p *parser) parse(inBlock bool) ([]node, error) {
	var nodes []node
	for p.pos < len(p.src) {
		open := strings.Index(p.src[p.pos:], "{{")
		if open < 0 {
			nodes = append(nodes, textNode(p.src[p.pos:]))
			p.pos = len(p.src)
			break
		}
		if open > 0 {
			nodes = append(nodes, textNode(p.src[p.pos:p.pos+open]))
			p.pos += open
		}

		end := strings.Index(p.src[p.pos:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", domain.ErrTemplateMalformed, p.pos)
		}
		tag := strings.TrimSpace(p.src[p.pos+2 : p.pos+end])
		p.pos += end + 2

		switch {
		case strings.HasPrefix(tag, "#each"):
			path := strings.TrimSpace(strings.TrimPrefix(tag, "#each"))
			if path == "" {
				return nil, fmt.Errorf("%w: each-block missing sequence path", domain.ErrTemplateMalformed)
			}
			body, err := p.parse(true)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &eachNode{path: path, body: body})

		case tag == "/each":
			if !inBlock {
				return nil, fmt.Errorf("%w: {{/each}} without matching {{#each}}", domain.ErrTemplateMalformed)
			}
			return nodes, nil

		case strings.HasPrefix(tag, "#") || strings.HasPrefix(tag, "/"):
			return nil, fmt.Errorf("%w: unknown block tag %q", domain.ErrTemplateMalformed, tag)

		case tag == "":
			return nil, fmt.Errorf("%w: empty placeholder", domain.ErrTemplateMalformed)

		default:
			path, def := tag, ""
			if i := strings.Index(tag, "|"); i >= 0 {
				path = strings.TrimSpace(tag[:i])
				def = strings.TrimSpace(tag[i+1:])
				if path == "" {
					return nil, fmt.Errorf("%w: placeholder with default but no path", domain.ErrTemplateMalformed)
				}
			}
			nodes = append(nodes, &placeholderNode{path: path, def: def})
		}
	}
	if inBlock {
		return nil, fmt.Errorf("%w: unclosed {{#each}}", domain.ErrTemplateMalformed)
	}
	return nodes, nil
}

// -- Rendering --

// scopes is a stack of lookup roots, innermost last. Each-block iterations
// push the current item so relative paths shadow outer data.
func render(sb *strings.Builder, nodes []node, scopes []any) {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			sb.WriteString(string(n))

		case *placeholderNode:
			if v, ok := lookup(n.path, scopes); ok {
				sb.WriteString(formatValue(v))
			} else {
				sb.WriteString(n.def)
			}

		case *eachNode:
			v, ok := lookup(n.path, scopes)
			if !ok {
				continue
			}
			seq, ok := v.([]any)
			if !ok {
				continue
			}
			for _, item := range seq {
				render(sb, n.body, append(scopes, item))
			}
		}
	}
}

// lookup resolves a dotted path against the scope stack, innermost first.
// "this" and "." name the innermost scope value itself.
func lookup(path string, scopes []any) (any, bool) {
	if path == "this" || path == "." {
		return scopes[len(scopes)-1], true
	}
	segs := strings.Split(path, ".")
	if segs[0] == "this" {
		return resolve(scopes[len(scopes)-1], segs[1:])
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		if v, ok := resolve(scopes[i], segs); ok {
			return v, true
		}
	}
	return nil, false
}

// resolve walks one root through the path segments. Maps are looked up by
// key; sequences accept numeric segments as indexes.
func resolve(root any, segs []string) (any, bool) {
	cur := root
	for _, seg := range segs {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a fractional part.
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return formatValue(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
