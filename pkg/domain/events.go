package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionCreate EventType = "session_create"
	EventModify        EventType = "modify"
	EventRegenerate    EventType = "regenerate"
	EventRender        EventType = "render"
	EventUpstreamCall  EventType = "upstream_call"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SessionEvent describes a state-machine transition on one session.
type SessionEvent struct {
	EventBase
	TemplateID string `json:"template_id,omitempty"`
	Region     string `json:"region,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// UpstreamEvent describes one call to the interpreter or rendering backend.
type UpstreamEvent struct {
	EventBase
	Target   string        `json:"target"` // "interpreter" or "renderer"
	Duration time.Duration `json:"duration"`
	Bytes    int           `json:"bytes,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSessionCreate func(context.Context, *SessionEvent)
	OnModify        func(context.Context, *SessionEvent)
	OnRegenerate    func(context.Context, *SessionEvent)
	OnRender        func(context.Context, *SessionEvent)
	OnUpstreamCall  func(context.Context, *UpstreamEvent)
}
