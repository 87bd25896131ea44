package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/pkg/domain"
	"github.com/enrollkit/enrollkit/pkg/queryguard"
)

// Engine defines the surface this adapter exposes over MCP.
type Engine interface {
	Step(ctx context.Context, sessionID, userID, message string) (*enrollkit.TurnResult, error)
	Resume(ctx context.Context, sessionID string, decision domain.Decision) (*enrollkit.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Pending(ctx context.Context) ([]*domain.InterruptRequest, error)
	Ask(ctx context.Context, question string) (*queryguard.Answer, error)
}

// PendingResponse wraps the review queue for structured tool output.
type PendingResponse struct {
	Requests []*domain.InterruptRequest `json:"requests" jsonschema_description:"Outstanding review requests, oldest first"`
}

// Server exposes the check-in engine as an MCP server so agent hosts can
// drive sessions and reviewers can resolve interrupts through tools.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("enrollkit-mcp", enrollkit.Version),
	}
	s.registerTools()
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
		slog.Info("MCP server listening (SSE)", "address", addr)
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
	stepTool := mcp.NewTool("check_in_step",
		mcp.WithDescription("Process one user turn of a check-in session. Starts the session on first contact."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("user_id", mcp.Description("User identifier for budget accounting (defaults to session_id)")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message for this turn")),
		mcp.WithOutputSchema[enrollkit.TurnResult](),
	)
	s.mcpServer.AddTool(stepTool, mcp.NewStructuredToolHandler(s.handleStep))

	resumeTool := mcp.NewTool("resume_review",
		mcp.WithDescription("Apply a reviewer decision to a suspended session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("The pending interrupt request ID")),
		mcp.WithString("choice", mcp.Required(), mcp.Description("approve, reject or modify")),
		mcp.WithNumber("amount", mcp.Description("Corrected payment amount (modify only)")),
		mcp.WithString("dorm", mcp.Description("Corrected dormitory (modify only)")),
		mcp.WithString("comment", mcp.Description("Reviewer comment")),
		mcp.WithOutputSchema[enrollkit.TurnResult](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	pendingTool := mcp.NewTool("list_pending_reviews",
		mcp.WithDescription("List the outstanding review requests across all sessions, oldest first."),
		mcp.WithOutputSchema[PendingResponse](),
	)
	s.mcpServer.AddTool(pendingTool, mcp.NewStructuredToolHandler(s.handlePending))

	stateTool := mcp.NewTool("get_session",
		mcp.WithDescription("Get the current workflow state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	)
	s.mcpServer.AddTool(stateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, err := s.engine.State(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	queryTool := mcp.NewTool("campus_query",
		mcp.WithDescription("Answer a natural-language question against the campus directory using validated read-only queries."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
	)
	s.mcpServer.AddTool(queryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		answer, err := s.engine.Ask(ctx, question)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(answer)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (enrollkit.TurnResult, error) {
	sessionID, _ := args["session_id"].(string)
	userID, _ := args["user_id"].(string)
	message, _ := args["message"].(string)
	if sessionID == "" {
		return enrollkit.TurnResult{}, fmt.Errorf("session_id is required")
	}
	if userID == "" {
		userID = sessionID
	}

	res, err := s.engine.Step(ctx, sessionID, userID, message)
	if err != nil {
		return enrollkit.TurnResult{}, fmt.Errorf("step failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (enrollkit.TurnResult, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return enrollkit.TurnResult{}, fmt.Errorf("session_id is required")
	}

	var decision domain.Decision
	if err := mapstructure.WeakDecode(args, &decision); err != nil {
		return enrollkit.TurnResult{}, fmt.Errorf("invalid decision: %w", err)
	}

	res, err := s.engine.Resume(ctx, sessionID, decision)
	if err != nil {
		return enrollkit.TurnResult{}, fmt.Errorf("resume failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handlePending(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (PendingResponse, error) {
	pending, err := s.engine.Pending(ctx)
	if err != nil {
		return PendingResponse{}, fmt.Errorf("list failed: %w", err)
	}
	if pending == nil {
		pending = []*domain.InterruptRequest{}
	}
	return PendingResponse{Requests: pending}, nil
}
