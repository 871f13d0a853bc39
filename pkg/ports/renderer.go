package ports

import "context"

// Artifact is the binary output of the rendering backend.
type Artifact struct {
	Data        []byte
	ContentType string
}

// RenderRequest describes one rendering call. Exactly one of HTML or URL is
// set: HTML carries a complete document, URL points the backend at a page to
// fetch and render. Options are backend-specific rendering knobs (margins,
// page size, scale) passed through untouched.
type RenderRequest struct {
	HTML    string
	URL     string
	Format  string
	Options map[string]any
}

// Renderer is the opaque rendering boundary: document in, PDF/PNG bytes out.
// Failures map to domain.ErrRenderFailed or domain.ErrUpstreamTimeout.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Artifact, error)
}
