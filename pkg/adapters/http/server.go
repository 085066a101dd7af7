package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/internal/presentation/graph"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/aretw0/coachflow/pkg/session"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds request bodies; response texts are bounded again by the
// session manager.
const maxBodySize = 1 << 20

// Sessions is the optional session administration surface. *session.Manager
// implements it.
type Sessions interface {
	Values(ctx context.Context, sessionID string) (map[string]domain.Value, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// Watcher reports changed sequence ids. *coachflow.Engine implements it.
type Watcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

// Server routes HTTP requests to a FlowService.
type Server struct {
	Service  ports.FlowService
	Sessions Sessions
	Watcher  Watcher
	Metrics  http.Handler
	Version  string

	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions enables GET/DELETE /sessions/{id} and GET /sessions.
func WithSessions(s Sessions) Option {
	return func(srv *Server) {
		srv.Sessions = s
	}
}

// WithWatcher enables the GET /events reload stream.
func WithWatcher(w Watcher) Option {
	return func(srv *Server) {
		srv.Watcher = w
	}
}

// WithMetricsHandler mounts h (usually promhttp.Handler()) on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(srv *Server) {
		srv.Metrics = h
	}
}

// WithVersion is reported by GET /info.
func WithVersion(v string) Option {
	return func(srv *Server) {
		srv.Version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = logging.Component(logger, "http")
	}
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(service ports.FlowService, opts ...Option) http.Handler {
	srv := &Server{
		Service: service,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	r := chi.NewRouter()
	r.Get("/health", srv.GetHealth)
	r.Get("/info", srv.GetInfo)

	r.Route("/sequences", func(r chi.Router) {
		r.Get("/", srv.ListSequences)
		r.Get("/{id}", srv.GetSequence)
		r.Get("/{id}/graph", srv.GetGraph)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", srv.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", srv.GetSession)
			r.Delete("/", srv.DeleteSession)
			r.Post("/flow", srv.StartFlow)
			r.Post("/respond", srv.Respond)
		})
	})

	if srv.Watcher != nil {
		r.Get("/events", srv.SubscribeEvents)
	}
	if srv.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", srv.Metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest is the body of POST /sessions/{id}/flow. Both fields are
// optional: empty ids resume the session or start the entry point.
type StartRequest struct {
	SequenceID string `json:"sequenceId,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
}

// RespondRequest is the body of POST /sessions/{id}/respond.
type RespondRequest struct {
	NodeID      string `json:"nodeId"`
	ChoiceIndex *int   `json:"choiceIndex,omitempty"`
	Text        string `json:"text,omitempty"`
}

// ErrorResponse carries the error and, when there is one, the partial
// result: messages rendered before a failure, or the node a rejected answer
// leaves the session waiting on.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Result *domain.TraversalResult `json:"result,omitempty"`
}

// SequenceResponse is the wire shape of a loaded sequence.
type SequenceResponse struct {
	SequenceID     string               `json:"sequenceId"`
	EntryMessageID string               `json:"entryMessageId,omitempty"`
	Messages       []domain.MessageNode `json:"messages"`
}

// StartFlow handles POST /sessions/{id}/flow.
func (s *Server) StartFlow(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decodeBody(r, &body, true); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)
		return
	}

	sessionID := chi.URLParam(r, "id")
	res, err := s.Service.Start(r.Context(), sessionID, body.SequenceID, body.MessageID)
	if err != nil {
		s.flowError(w, "start", sessionID, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Respond handles POST /sessions/{id}/respond.
func (s *Server) Respond(w http.ResponseWriter, r *http.Request) {
	var body RespondRequest
	if err := decodeBody(r, &body, false); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)
		return
	}
	if body.NodeID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("nodeId is required"), nil)
		return
	}

	sessionID := chi.URLParam(r, "id")
	resp := domain.Response{ChoiceIndex: body.ChoiceIndex, Text: body.Text}
	res, err := s.Service.Respond(r.Context(), sessionID, body.NodeID, resp)
	if err != nil {
		s.flowError(w, "respond", sessionID, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListSequences handles GET /sequences.
func (s *Server) ListSequences(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Service.Sequences(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err, nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sequences": ids})
}

// GetSequence handles GET /sequences/{id}.
func (s *Server) GetSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := s.Service.Sequence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, statusFor(err), err, nil)
		return
	}
	writeJSON(w, http.StatusOK, SequenceResponse{
		SequenceID:     seq.ID,
		EntryMessageID: seq.EntryMessageID,
		Messages:       seq.Messages,
	})
}

// GetGraph handles GET /sequences/{id}/graph with a Mermaid flowchart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	seq, err := s.Service.Sequence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, statusFor(err), err, nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(seq, nil))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		s.fail(w, http.StatusNotImplemented, errors.New("session administration is disabled"), nil)
		return
	}
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err, nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetSession handles GET /sessions/{id} with every stored value.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		s.fail(w, http.StatusNotImplemented, errors.New("session administration is disabled"), nil)
		return
	}
	values, err := s.Sessions.Values(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, statusFor(err), err, nil)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		s.fail(w, http.StatusNotImplemented, errors.New("session administration is disabled"), nil)
		return
	}
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, statusFor(err), err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "coachflow-http",
		"version": s.Version,
	})
}

// SubscribeEvents handles GET /events, streaming the id of every changed
// sequence as server-sent events.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, http.StatusInternalServerError, errors.New("streaming not supported"), nil)
		return
	}

	events, err := s.Watcher.Watch(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("watch error: %w", err), nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected")
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", id)
			flusher.Flush()
		}
	}
}

func (s *Server) flowError(w http.ResponseWriter, op, sessionID string, err error, res *domain.TraversalResult) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("flow call failed", "operation", op, "session_id", sessionID, "err", err)
	} else {
		s.logger.Debug("flow call rejected", "operation", op, "session_id", sessionID, "err", err)
	}
	if res != nil && len(res.Messages) == 0 && !res.AwaitingInput && !res.RequiresTransition {
		res = nil
	}
	s.fail(w, status, err, res)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error, res *domain.TraversalResult) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Result: res})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSequenceNotFound), errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAwaitingInput):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidResponse), errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	}
	var perr *domain.ParseError
	if errors.As(err, &perr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
