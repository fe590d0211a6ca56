// Package mcp exposes wizard sessions as Model Context Protocol tools, so an
// agent can fill in and advance a page graph the same way a user would.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/monolith"
	"github.com/aretw0/multipage/pkg/session"
)

// GraphURI is the resource holding the page definitions.
const GraphURI = "multipage://graph"

// ViewResponse is the structured result of every session tool.
type ViewResponse struct {
	SessionID string          `json:"session_id" jsonschema_description:"The session the view belongs to"`
	View      domain.PageView `json:"view" jsonschema_description:"The current page materialized against the session values"`
	// Failures lists unmet requirements when an advance was refused.
	Failures []domain.Failure `json:"failures,omitempty" jsonschema_description:"Unmet requirements of a refused advance"`
}

// ExportResponse carries a monolith blob.
type ExportResponse struct {
	SessionID string `json:"session_id"`
	Monolith  string `json:"monolith" jsonschema_description:"Base64 encoded monolith blob"`
	Version   string `json:"version"`
}

// SessionArgs addresses a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// SetValueArgs are the arguments of set_value.
type SetValueArgs struct {
	SessionID string `json:"session_id"`
	ElementID string `json:"element_id"`
	// Value is JSON; bare words are taken as strings.
	Value string `json:"value"`
}

// JumpArgs are the arguments of jump.
type JumpArgs struct {
	SessionID   string `json:"session_id"`
	PageID      string `json:"page_id"`
	KeepHistory bool   `json:"keep_history"`
}

// Server wraps the session manager and exposes it as an MCP Server.
type Server struct {
	manager   *session.Manager
	graph     *graph.Graph
	mcpServer *server.MCPServer
	logger    *slog.Logger
	name      string
	version   string
}

// Option configures the Server.
type Option func(*Server)

// WithInfo sets the advertised server name and version.
func WithInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithLogger configures the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP Server instance over the sessions of g.
func NewServer(mgr *session.Manager, g *graph.Graph, opts ...Option) *Server {
	s := &Server{
		manager: mgr,
		graph:   g,
		logger:  logging.NewNop(),
		name:    "multipage-mcp",
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer(s.name, s.version)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on addr (host:port) until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionParam := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier"))

	s.mcpServer.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Resume a session, or start it on the first page. Omit session_id to start a new one."),
		mcp.WithString("session_id", mcp.Description("Session identifier (optional)")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("view",
		mcp.WithDescription("Show the current page of a session with its element values."),
		sessionParam,
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleView))

	s.mcpServer.AddTool(mcp.NewTool("set_value",
		mcp.WithDescription("Set the value of an element on the current page."),
		sessionParam,
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element identifier")),
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON value; plain words are taken as strings")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetValue))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Validate the current page and move to the next one. Refusals list the unmet requirements."),
		sessionParam,
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("back",
		mcp.WithDescription("Return to the previous page."),
		sessionParam,
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleBack))

	s.mcpServer.AddTool(mcp.NewTool("jump",
		mcp.WithDescription("Force a transition to a page, ignoring skip conditions."),
		sessionParam,
		mcp.WithString("page_id", mcp.Required(), mcp.Description("Target page")),
		mcp.WithBoolean("keep_history", mcp.Description("Append to the history instead of rewinding it")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleJump))

	s.mcpServer.AddTool(mcp.NewTool("export",
		mcp.WithDescription("Export the graph and the session as a portable monolith."),
		sessionParam,
		mcp.WithOutputSchema[ExportResponse](),
	), mcp.NewStructuredToolHandler(s.handleExport))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the full page graph definition for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.graph.Pages())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode graph: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Page Graph Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.graph.Pages())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) handleOpen(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	id, err := s.manager.Open(ctx, args.SessionID)
	if err != nil {
		return ViewResponse{}, fmt.Errorf("open failed: %w", err)
	}
	return s.run(ctx, id, nil)
}

func (s *Server) handleView(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	return s.run(ctx, args.SessionID, nil)
}

func (s *Server) handleSetValue(ctx context.Context, _ mcp.CallToolRequest, args SetValueArgs) (ViewResponse, error) {
	value := ParseValue(args.Value)
	return s.run(ctx, args.SessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.SetValue(ctx, args.ElementID, value)
	})
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	return s.run(ctx, args.SessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.Advance(ctx)
	})
}

func (s *Server) handleBack(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	return s.run(ctx, args.SessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.Back(ctx)
	})
}

func (s *Server) handleJump(ctx context.Context, _ mcp.CallToolRequest, args JumpArgs) (ViewResponse, error) {
	return s.run(ctx, args.SessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.JumpTo(ctx, args.PageID, args.KeepHistory)
	})
}

func (s *Server) handleExport(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ExportResponse, error) {
	var blob []byte
	err := s.manager.Do(ctx, args.SessionID, func(_ context.Context, c *runtime.Controller) error {
		var err error
		blob, err = monolith.Export(c.Graph(), c.Snapshot(), monolith.WithName(args.SessionID), monolith.WithGenerator(s.name))
		return err
	})
	if err != nil {
		return ExportResponse{}, fmt.Errorf("export failed: %w", err)
	}
	return ExportResponse{
		SessionID: args.SessionID,
		Monolith:  base64.StdEncoding.EncodeToString(blob),
		Version:   monolith.FormatVersion.String(),
	}, nil
}

// run applies op (if any) and returns the resulting view. A refused advance
// is reported through Failures rather than as a tool error.
func (s *Server) run(ctx context.Context, sessionID string, op func(context.Context, *runtime.Controller) error) (ViewResponse, error) {
	if sessionID == "" {
		return ViewResponse{}, errors.New("session_id is required")
	}
	resp := ViewResponse{SessionID: sessionID}
	err := s.manager.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		var opErr error
		if op != nil {
			opErr = op(ctx, c)
		}
		view, err := c.View()
		if err != nil {
			return err
		}
		resp.View = view
		return opErr
	})
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		s.logger.Debug("MCP: advance refused", "session_id", sessionID, "failures", len(verr.Failures))
		resp.Failures = verr.Failures
		return resp, nil
	}
	if err != nil {
		return ViewResponse{}, err
	}
	return resp, nil
}

// ParseValue decodes a JSON literal, falling back to the raw string.
func ParseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
