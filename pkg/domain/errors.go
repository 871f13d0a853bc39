package domain

import "errors"

// ErrTemplateNotFound is returned when a template ID is not in the registry.
var ErrTemplateNotFound = errors.New("template not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when a state-changing operation targets a
// session past its expiry horizon.
var ErrSessionExpired = errors.New("session expired")

// ErrRegionNotFound is returned when a modification names a region that is
// not present in the current region index of the session's template markup.
var ErrRegionNotFound = errors.New("region not found")

// ErrRegionIndex is returned when region boundary markers are unbalanced,
// mismatched, or duplicated.
var ErrRegionIndex = errors.New("region index error")

// ErrPatchConflict is returned when a patch cannot be applied cleanly: the
// region changed under a concurrent edit, the anchor is ambiguous, or the
// patched markup fails re-indexing. The session is left untouched.
var ErrPatchConflict = errors.New("patch conflict")

// ErrInterpretation is returned when the upstream interpreter cannot turn an
// instruction into a structured patch.
var ErrInterpretation = errors.New("interpretation failed")

// ErrUpstreamTimeout is returned when the interpreter or rendering backend
// does not answer within the operation deadline.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// ErrRenderFailed is returned when the rendering backend rejects the final markup.
var ErrRenderFailed = errors.New("render failed")

// ErrTemplateMalformed is returned by the data binder on placeholder grammar
// errors (unclosed tags, mismatched block sections).
var ErrTemplateMalformed = errors.New("template malformed")

// ErrInvalidData is returned when a data payload does not satisfy the
// template's JSON schema.
var ErrInvalidData = errors.New("invalid data payload")

// ErrUnauthorized is returned when an API key is unknown or revoked.
var ErrUnauthorized = errors.New("unauthorized")
