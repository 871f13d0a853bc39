// Package interpreter provides an HTTP client for the instruction
// interpretation service. The service receives a region snapshot plus a
// free-text instruction and answers with one structured patch.
package interpreter

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
	"github.com/mitchellh/mapstructure"
)

// Client implements ports.Interpreter over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// New creates a client against the interpreter service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireResponse is the service's answer envelope. The payload shape depends
// on kind, so it stays loose until mapstructure decodes it.
type wireResponse struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

type wireError struct {
	Error string `json:"error"`
}

// Interpret posts the request and decodes the structured patch.
func (c *Client) Interpret(ctx context.Context, req ports.InterpretRequest) (*domain.Patch, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interpret request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interpret", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build interpret request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: interpreter call: %v", domain.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInterpretation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading interpreter response: %v", domain.ErrInterpretation, err)
	}

	if resp.StatusCode != http.StatusOK {
		var we wireError
		if json.Unmarshal(raw, &we) == nil && we.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrInterpretation, we.Error)
		}
		return nil, fmt.Errorf("%w: interpreter returned status %d", domain.ErrInterpretation, resp.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: invalid interpreter response: %v", domain.ErrInterpretation, err)
	}

	patch, err := decodePatch(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInterpretation, err)
	}
	return patch, nil
}

// decodePatch maps the loose payload into the typed shape matching kind.
func decodePatch(wire wireResponse) (*domain.Patch, error) {
	p := &domain.Patch{Kind: domain.PatchKind(wire.Kind)}

	var target any
	switch p.Kind {
	case domain.PatchReplaceRegion:
		p.Replace = &domain.ReplaceRegion{}
		target = p.Replace
	case domain.PatchSetAttribute:
		p.Set = &domain.SetAttribute{}
		target = p.Set
	case domain.PatchInsertRelative:
		p.Insert = &domain.InsertRelative{}
		target = p.Insert
	default:
		return nil, fmt.Errorf("unknown patch kind %q", wire.Kind)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  target,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(wire.Payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %v", wire.Kind, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
