// Package mcp exposes the document-session engine as an MCP server so
// agent runtimes can drive sessions as tools.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/engine"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionResponse is the unified tool output across session tools.
type SessionResponse struct {
	ID             string                `json:"id" jsonschema_description:"Session identifier"`
	TemplateID     string                `json:"templateId,omitempty" jsonschema_description:"Registry template the session was created from"`
	Status         string                `json:"status" jsonschema_description:"Session status (active or expired)"`
	RenderedMarkup string                `json:"renderedMarkup" jsonschema_description:"Current data-bound markup"`
	Modifications  []domain.Modification `json:"modifications" jsonschema_description:"Append-only edit log"`
	ExpiresAt      time.Time             `json:"expiresAt" jsonschema_description:"Expiry horizon"`
}

// RenderResult carries the rendered artifact inline.
type RenderResult struct {
	Filename    string `json:"filename" jsonschema_description:"Suggested artifact file name"`
	ContentType string `json:"contentType" jsonschema_description:"Artifact MIME type"`
	Bytes       int    `json:"bytes" jsonschema_description:"Artifact size in bytes"`
	Data        string `json:"data" jsonschema_description:"Base64-encoded artifact"`
}

// Engine defines the session core the MCP server drives.
type Engine interface {
	Create(ctx context.Context, req engine.CreateRequest) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	Modify(ctx context.Context, id, region, instruction string) (*domain.Session, error)
	Regenerate(ctx context.Context, id string, data map[string]any) (*domain.Session, error)
	Render(ctx context.Context, id, format string) (ports.Artifact, *domain.Session, error)
	Expire(ctx context.Context, id string) error
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	templates ports.TemplateResolver
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server instance. templates may be nil.
func NewServer(eng Engine, templates ports.TemplateResolver, version string) *Server {
	s := &Server{
		engine:    eng,
		templates: templates,
		mcpServer: server.NewMCPServer("glyph-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	createTool := mcp.NewTool("create_session",
		mcp.WithDescription("Create a document session from a registry template, raw HTML, or a source URL, returning the bound markup."),
		mcp.WithString("template_id", mcp.Description("Registry template ID (mutually exclusive with html and url)")),
		mcp.WithString("html", mcp.Description("Raw HTML markup (mutually exclusive with template_id and url)")),
		mcp.WithString("url", mcp.Description("Absolute http(s) URL to render (mutually exclusive with template_id and html)")),
		mcp.WithString("data", mcp.Description("JSON object with the data payload")),
		mcp.WithString("format", mcp.Description("Output format: pdf (default) or png")),
		mcp.WithString("options", mcp.Description("JSON object with renderer options passed through to the backend")),
		mcp.WithString("intent", mcp.Description("Document intent hint passed to the interpreter")),
		mcp.WithString("style", mcp.Description("Style hint passed to the interpreter")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(createTool, mcp.NewStructuredToolHandler(s.handleCreate))

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Fetch the current state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGet))

	modifyTool := mcp.NewTool("modify_session",
		mcp.WithDescription("Apply a natural-language edit to one region of the document."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("region", mcp.Required(), mcp.Description("Region name to edit")),
		mcp.WithString("instruction", mcp.Required(), mcp.Description("Free-text edit instruction")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(modifyTool, mcp.NewStructuredToolHandler(s.handleModify))

	regenerateTool := mcp.NewTool("regenerate_session",
		mcp.WithDescription("Replace the session data wholesale and rebind, keeping all structural edits."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object with the new data payload")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(regenerateTool, mcp.NewStructuredToolHandler(s.handleRegenerate))

	renderTool := mcp.NewTool("render_session",
		mcp.WithDescription("Render the session to its final artifact (PDF or PNG)."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("format", mcp.Description("Override the session's output format")),
		mcp.WithOutputSchema[RenderResult](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRender))

	s.mcpServer.AddTool(mcp.NewTool("expire_session",
		mcp.WithDescription("Expire a session immediately. Idempotent."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.engine.Expire(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("expire failed: %v", err)), nil
		}
		return mcp.NewToolResultText("expired"), nil
	})

	if s.templates != nil {
		s.mcpServer.AddTool(mcp.NewTool("list_templates",
			mcp.WithDescription("List available document templates with their editable regions."),
			mcp.WithString("category", mcp.Description("Filter by category")),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tpls, err := s.templates.List(ctx, request.GetString("category", ""))
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
			}
			jsonBytes, _ := json.Marshal(tpls)
			return mcp.NewToolResultText(string(jsonBytes)), nil
		})
	}
}

// Handler methods for structured tools

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	req := engine.CreateRequest{}
	req.TemplateID, _ = args["template_id"].(string)
	req.HTML, _ = args["html"].(string)
	req.URL, _ = args["url"].(string)
	req.Format, _ = args["format"].(string)
	req.Intent, _ = args["intent"].(string)
	req.Style, _ = args["style"].(string)

	if dataStr, ok := args["data"].(string); ok && dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &req.Data); err != nil {
			return SessionResponse{}, fmt.Errorf("data must be a JSON object: %w", err)
		}
	}
	if optsStr, ok := args["options"].(string); ok && optsStr != "" {
		if err := json.Unmarshal([]byte(optsStr), &req.Options); err != nil {
			return SessionResponse{}, fmt.Errorf("options must be a JSON object: %w", err)
		}
	}

	sess, err := s.engine.Create(ctx, req)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("create failed: %w", err)
	}
	return toResponse(sess), nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	sess, err := s.engine.Get(ctx, id)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("get failed: %w", err)
	}
	return toResponse(sess), nil
}

func (s *Server) handleModify(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	regionName, _ := args["region"].(string)
	instruction, _ := args["instruction"].(string)

	sess, err := s.engine.Modify(ctx, id, regionName, instruction)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("modify failed: %w", err)
	}
	return toResponse(sess), nil
}

func (s *Server) handleRegenerate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)

	var data map[string]any
	if dataStr, ok := args["data"].(string); ok && dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
			return SessionResponse{}, fmt.Errorf("data must be a JSON object: %w", err)
		}
	}

	sess, err := s.engine.Regenerate(ctx, id, data)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("regenerate failed: %w", err)
	}
	return toResponse(sess), nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RenderResult, error) {
	id, _ := args["session_id"].(string)
	format, _ := args["format"].(string)

	artifact, sess, err := s.engine.Render(ctx, id, format)
	if err != nil {
		return RenderResult{}, fmt.Errorf("render failed: %w", err)
	}

	return RenderResult{
		Filename:    sess.Filename(),
		ContentType: artifact.ContentType,
		Bytes:       len(artifact.Data),
		Data:        base64.StdEncoding.EncodeToString(artifact.Data),
	}, nil
}

func (s *Server) registerResources() {
	if s.templates == nil {
		return
	}

	s.mcpServer.AddResource(mcp.NewResource("glyph://templates", "Template Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tpls, err := s.templates.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		jsonBytes, _ := json.Marshal(tpls)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "glyph://templates",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func toResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		TemplateID:     s.TemplateID,
		Status:         string(s.Status),
		RenderedMarkup: s.RenderedMarkup,
		Modifications:  s.Modifications,
		ExpiresAt:      s.ExpiresAt,
	}
}
