/*
Package glyph is a document-session engine: it turns a template plus a data
payload into a living document that can be edited region by region through
natural-language instructions and rendered to PDF or PNG on demand.

It separates the editable template form (placeholders and region boundaries
intact) from the rendered projection, so structural edits and data refreshes
compose instead of overwriting each other.

# Concept

A session binds one template, one data payload, and an append-only edit log
to an ID with an expiry horizon. The engine manages binding, region indexing,
patch application, and concurrency control, while the interpretation of
free-text instructions and the final rasterization are opaque backends behind
ports. This hexagonal layout lets Glyph be embedded in any interface: HTTP
API, CLI, or AI agent infrastructure via MCP.

# Key Features

  - Deterministic binding: the same markup and data always produce
    byte-identical output.
  - All-or-nothing edits: a modification either fully commits (markup,
    rebind, log entry) or leaves the session untouched.
  - At-most-one-writer: per-session locking, with optional Redis-backed
    distributed locks for multi-instance deployments.
  - Lazy expiry: sessions past their horizon are refused on access, no
    background reaper required.

# Usage

Initialize the client with a template directory and drive sessions from
there. Backends for interpretation and rendering are injected as options.

	package main

	import (
		"context"
		"log"

		"github.com/glyphhq/glyph"
		"github.com/glyphhq/glyph/pkg/engine"
	)

	func main() {
		client, err := glyph.New("./templates")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		sess, err := client.Create(ctx, engine.CreateRequest{
			TemplateID: "quote-modern",
			Data: map[string]any{
				"customer": map[string]any{"name": "Acme"},
			},
		})
		if err != nil {
			log.Fatal(err)
		}

		log.Printf("session %s expires %s", sess.ID, sess.ExpiresAt)
	}
*/
package glyph
