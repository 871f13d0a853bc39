// Package chromium provides an HTTP client for a headless-browser rendering
// service that turns final HTML documents into PDF or PNG bytes.
package chromium

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/ports"
)

var contentTypes = map[string]string{
	domain.FormatPDF: "application/pdf",
	domain.FormatPNG: "image/png",
}

// Client implements ports.Renderer over HTTP.
type Client struct {
	baseURL string
	http    *http.Client

	// maxBytes bounds artifact size read from the backend.
	maxBytes int64
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithMaxArtifactBytes bounds the artifact size (default 64 MiB).
func WithMaxArtifactBytes(n int64) Option {
	return func(cl *Client) {
		cl.maxBytes = n
	}
}

// New creates a client against the rendering service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 60 * time.Second},
		maxBytes: 64 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type renderRequest struct {
	HTML    string         `json:"html,omitempty"`
	URL     string         `json:"url,omitempty"`
	Format  string         `json:"format"`
	Options map[string]any `json:"options,omitempty"`
}

// Render posts the document (or source URL) and returns the artifact bytes.
func (c *Client) Render(ctx context.Context, req ports.RenderRequest) (ports.Artifact, error) {
	contentType, ok := contentTypes[req.Format]
	if !ok {
		return ports.Artifact{}, fmt.Errorf("%w: unsupported format %q", domain.ErrRenderFailed, req.Format)
	}
	if req.HTML == "" && req.URL == "" {
		return ports.Artifact{}, fmt.Errorf("%w: nothing to render", domain.ErrRenderFailed)
	}

	body, err := json.Marshal(renderRequest{HTML: req.HTML, URL: req.URL, Format: req.Format, Options: req.Options})
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("failed to marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ports.Artifact{}, fmt.Errorf("%w: renderer call: %v", domain.ErrUpstreamTimeout, err)
		}
		return ports.Artifact{}, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.Artifact{}, fmt.Errorf("%w: renderer returned status %d: %s", domain.ErrRenderFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("%w: reading artifact: %v", domain.ErrRenderFailed, err)
	}
	if len(data) == 0 {
		return ports.Artifact{}, fmt.Errorf("%w: renderer returned empty artifact", domain.ErrRenderFailed)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		contentType = ct
	}
	return ports.Artifact{Data: data, ContentType: contentType}, nil
}
