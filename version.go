package glyph

// Version is the library version, overridable at build time with
// -ldflags "-X github.com/glyphhq/glyph.Version=...".
var Version = "0.3.0"
