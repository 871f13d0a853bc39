package ports

import (
	"context"

	"github.com/glyphhq/glyph/pkg/domain"
)

// InterpretRequest carries everything the interpreter may use to turn a
// free-text instruction into a structured patch. The engine never inspects
// the instruction text itself.
type InterpretRequest struct {
	Region       string `json:"region"`
	Instruction  string `json:"instruction"`
	RegionMarkup string `json:"regionMarkup"`
	Intent       string `json:"intent,omitempty"`
	Style        string `json:"style,omitempty"`
}

// Interpreter is the opaque natural-language boundary. Failures map to
// domain.ErrInterpretation or domain.ErrUpstreamTimeout.
type Interpreter interface {
	Interpret(ctx context.Context, req InterpretRequest) (*domain.Patch, error)
}
