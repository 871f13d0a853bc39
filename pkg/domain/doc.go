// Package domain contains the core types of the Glyph document-session
// engine: templates, editing sessions, the closed patch vocabulary, and the
// sentinel errors shared across all adapters.
package domain
