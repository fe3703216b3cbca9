// Package mcpadapter exposes the assistant to MCP clients over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

const (
	serverName     = "cafe-support-assistant"
	serverVersion  = "1.0.0"
	defaultSession = "mcp"
)

type Server struct {
	assistant ports.Assistant
	retriever ports.KnowledgeRetriever
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func NewServer(assistant ports.Assistant, retriever ports.KnowledgeRetriever, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		assistant: assistant,
		retriever: retriever,
		logger:    logger,
		mcp:       server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("ask_cafe_assistant",
		mcp.WithDescription("Answer a customer question about the cafe menu, prices, branches or policies. Follow-up questions reuse the conversation of the same session."),
		mcp.WithString("question", mcp.Required(), mcp.Description("the customer's question, Arabic or English")),
		mcp.WithString("session_id", mcp.Description("conversation id; omit to use the client's session")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Return the knowledge base chunks most similar to a query, best first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("text to search for")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool("reset_conversation",
		mcp.WithDescription("Forget the conversation history of a session."),
		mcp.WithString("session_id", mcp.Description("conversation id; omit to use the client's session")),
	), s.handleReset)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	sessionID := s.sessionID(ctx, request)

	answer, err := s.assistant.Ask(ctx, sessionID, question)
	if err != nil {
		s.logger.Warn("mcp_ask_failed", "session_id", sessionID, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}

type searchHit struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	chunks, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		s.logger.Warn("mcp_search_failed", "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	hits := make([]searchHit, 0, len(chunks))
	for _, c := range chunks {
		hit := searchHit{Score: c.Score, Text: c.Chunk.PageContent}
		if c.Chunk.Metadata != nil {
			hit.ID = c.Chunk.Metadata.ChunkID()
			hit.Source = string(c.Chunk.Metadata.SourceType())
		}
		hits = append(hits, hit)
	}

	payload, err := json.Marshal(hits)
	if err != nil {
		return nil, fmt.Errorf("encode search hits: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := s.sessionID(ctx, request)
	if err := s.assistant.Reset(ctx, sessionID); err != nil {
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	return mcp.NewToolResultText("conversation reset"), nil
}

func (s *Server) sessionID(ctx context.Context, request mcp.CallToolRequest) string {
	if id := strings.TrimSpace(request.GetString("session_id", "")); id != "" {
		return id
	}
	if session := server.ClientSessionFromContext(ctx); session != nil && session.SessionID() != "" {
		return session.SessionID()
	}
	return defaultSession
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrTimeout):
		return "the assistant timed out, try again"
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return "the knowledge index is not available"
	case domain.IsKind(err, domain.ErrProvider), domain.IsKind(err, domain.ErrTemporary):
		return "an upstream model or index request failed"
	default:
		return "internal error"
	}
}
