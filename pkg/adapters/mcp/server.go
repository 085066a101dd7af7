package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SequencesURI is the resource listing every sequence id.
const SequencesURI = "coachflow://sequences"

// FlowResponse is the structured result of process_flow and respond.
type FlowResponse struct {
	Messages       []domain.MessageNode `json:"messages" jsonschema_description:"Messages to show, in order"`
	AwaitingInput  bool                 `json:"awaitingInput" jsonschema_description:"True when the last message waits for an answer"`
	AwaitingNodeID string               `json:"awaitingNodeId,omitempty" jsonschema_description:"The node to answer with the respond tool"`
	SequenceID     string               `json:"sequenceId,omitempty" jsonschema_description:"The sequence active when the flow stopped"`
}

// ProcessFlowArgs are the arguments of process_flow.
type ProcessFlowArgs struct {
	SessionID  string `json:"session_id"`
	SequenceID string `json:"sequence_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
}

// RespondArgs are the arguments of respond.
type RespondArgs struct {
	SessionID   string `json:"session_id"`
	NodeID      string `json:"node_id"`
	ChoiceIndex *int   `json:"choice_index,omitempty"`
	Text        string `json:"text,omitempty"`
}

// GetSequenceArgs are the arguments of get_sequence.
type GetSequenceArgs struct {
	SequenceID string `json:"sequence_id"`
}

// SequenceResponse is the structured result of get_sequence.
type SequenceResponse struct {
	SequenceID     string               `json:"sequenceId"`
	EntryMessageID string               `json:"entryMessageId,omitempty"`
	Messages       []domain.MessageNode `json:"messages"`
}

// Server wraps a FlowService and exposes it as an MCP Server.
type Server struct {
	service   ports.FlowService
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger. Logs must never go to stdout when
// serving over stdio.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.Component(logger, "mcp")
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service ports.FlowService, version string, opts ...Option) *Server {
	s := &Server{
		service:   service,
		mcpServer: server.NewMCPServer("coachflow-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	processTool := mcp.NewTool("process_flow",
		mcp.WithDescription("Run a session's conversation until it needs an answer or ends. Without sequence_id the session resumes where it stopped or starts at the entry point."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The conversation to drive")),
		mcp.WithString("sequence_id", mcp.Description("Sequence to start (optional)")),
		mcp.WithString("message_id", mcp.Description("Message to start from (optional, defaults to the sequence entry)")),
		mcp.WithOutputSchema[FlowResponse](),
	)
	s.mcpServer.AddTool(processTool, mcp.NewStructuredToolHandler(s.handleProcessFlow))

	respondTool := mcp.NewTool("respond",
		mcp.WithDescription("Answer the choice or text input the session is waiting on and continue the conversation."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The conversation to drive")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The awaitingNodeId returned by the previous call")),
		mcp.WithNumber("choice_index", mcp.Description("Zero-based option index for choice messages")),
		mcp.WithString("text", mcp.Description("Free text answer, or the option text when choice_index is omitted")),
		mcp.WithOutputSchema[FlowResponse](),
	)
	s.mcpServer.AddTool(respondTool, mcp.NewStructuredToolHandler(s.handleRespond))

	sequenceTool := mcp.NewTool("get_sequence",
		mcp.WithDescription("Get a sequence definition for introspection."),
		mcp.WithString("sequence_id", mcp.Required(), mcp.Description("The sequence to load")),
		mcp.WithOutputSchema[SequenceResponse](),
	)
	s.mcpServer.AddTool(sequenceTool, mcp.NewStructuredToolHandler(s.handleGetSequence))
}

func (s *Server) handleProcessFlow(ctx context.Context, request mcp.CallToolRequest, args ProcessFlowArgs) (FlowResponse, error) {
	if args.SessionID == "" {
		return FlowResponse{}, errors.New("session_id is required")
	}
	res, err := s.service.Start(ctx, args.SessionID, args.SequenceID, args.MessageID)
	if err != nil {
		s.logger.Warn("process_flow failed", "session_id", args.SessionID, "err", err)
		return FlowResponse{}, fmt.Errorf("process flow failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleRespond(ctx context.Context, request mcp.CallToolRequest, args RespondArgs) (FlowResponse, error) {
	if args.SessionID == "" || args.NodeID == "" {
		return FlowResponse{}, errors.New("session_id and node_id are required")
	}
	resp := domain.Response{ChoiceIndex: args.ChoiceIndex, Text: args.Text}
	res, err := s.service.Respond(ctx, args.SessionID, args.NodeID, resp)
	if err != nil {
		s.logger.Warn("respond failed", "session_id", args.SessionID, "node_id", args.NodeID, "err", err)
		return FlowResponse{}, fmt.Errorf("respond failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleGetSequence(ctx context.Context, request mcp.CallToolRequest, args GetSequenceArgs) (SequenceResponse, error) {
	seq, err := s.service.Sequence(ctx, args.SequenceID)
	if err != nil {
		return SequenceResponse{}, fmt.Errorf("load sequence failed: %w", err)
	}
	return SequenceResponse{
		SequenceID:     seq.ID,
		EntryMessageID: seq.EntryMessageID,
		Messages:       seq.Messages,
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SequencesURI, "Available sequences",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.service.Sequences(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sequences: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SequencesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func toResponse(res *domain.TraversalResult) FlowResponse {
	if res == nil {
		return FlowResponse{Messages: []domain.MessageNode{}}
	}
	out := FlowResponse{
		Messages:       res.Messages,
		AwaitingInput:  res.AwaitingInput,
		AwaitingNodeID: res.AwaitingNodeID,
		SequenceID:     res.SequenceID,
	}
	if out.Messages == nil {
		out.Messages = []domain.MessageNode{}
	}
	return out
}
