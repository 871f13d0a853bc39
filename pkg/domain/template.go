package domain

// Template is an immutable registry entry. Sessions copy the markup in at
// creation, so a later registry change never affects a live session.
type Template struct {
	// ID is the registry identifier, e.g. "quote-modern".
	ID string `json:"id" yaml:"id"`

	// Markup is the template-form markup with placeholders and region
	// boundary comments intact.
	Markup string `json:"markup" yaml:"markup"`

	// Stylesheet is the CSS applied when the rendered markup is wrapped
	// into a full document for the rendering backend.
	Stylesheet string `json:"stylesheet" yaml:"stylesheet"`

	// Schema is a JSON-schema (as a JSON-compatible map) describing the
	// expected data payload.
	Schema map[string]any `json:"schema" yaml:"schema"`

	// RegionNames lists the editable regions in document order.
	RegionNames []string `json:"regionNames" yaml:"-"`

	Category    string `json:"category,omitempty" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description"`
}
