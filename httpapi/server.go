// Package httpapi maps the chat service onto HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/creastat/chatcore/analytics"
	"github.com/creastat/chatcore/chat"
	"github.com/creastat/chatcore/identity"
)

const (
	maxBodyBytes = 1 << 16

	ChatPath      = "/api/ai/chat"
	HealthPath    = "/api/ai/health"
	AnalyticsPath = "/api/ai/analytics"

	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"

	headerRetryAfter = "Retry-After"
)

// Backend is the service the handlers call.
type Backend interface {
	SubmitTurn(ctx context.Context, req chat.TurnRequest) (chat.TurnResult, error)
	Health(ctx context.Context) (chat.HealthReport, error)
	ListAnalytics(ctx context.Context, limit, offset int) (analytics.Page, error)
}

// Server serves the chat API.
type Server struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Server. A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, logger: logger, now: time.Now}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc(ChatPath, s.handleChat)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc(AnalyticsPath, s.handleAnalytics)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Context        string `json:"context,omitempty"`
}

type chatResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId"`
	Response       string `json:"response"`
	Remaining      int    `json:"remaining"`
	Timestamp      string `json:"timestamp"`
}

type errorResponse struct {
	Success   *bool  `json:"success,omitempty"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

type analyticsResponse struct {
	Success bool `json:"success"`
	analytics.Page
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, chat.ErrMethodNotAllowed())
		return
	}

	// An undecodable body is an empty message, so it is still rate
	// checked before being rejected.
	var req chatRequest
	s.decode(r, &req)

	res, err := s.backend.SubmitTurn(r.Context(), chat.TurnRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Context:        req.Context,
		User:           identity.Resolve(r.Header, s.now()),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(headerRemaining, strconv.Itoa(res.Remaining))
	s.writeJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		ConversationID: res.ConversationID,
		Response:       res.Response,
		Remaining:      res.Remaining,
		Timestamp:      res.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, chat.ErrMethodNotAllowed())
		return
	}
	report, err := s.backend.Health(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, chat.ErrMethodNotAllowed())
		return
	}
	q := r.URL.Query()
	page, err := s.backend.ListAnalytics(r.Context(), queryInt(q.Get("limit"), analytics.DefaultListLimit), queryInt(q.Get("offset"), 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyticsResponse{Success: true, Page: page})
}

func (s *Server) decode(r *http.Request, dest any) {
	if r.Body == nil {
		return
	}
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dest); err != nil {
		s.logger.Debug("ignoring undecodable chat body", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	ce, ok := chat.AsError(err)
	if !ok {
		s.logger.Error("unclassified error", "error", err)
		ce = &chat.Error{Kind: chat.KindUpstream, Code: http.StatusInternalServerError, Message: "Internal server error", Err: err}
	}

	body := errorResponse{Error: ce.Message, Message: ce.Localized}
	switch ce.Kind {
	case chat.KindQuota:
		zero := 0
		body.Success = new(bool)
		body.Remaining = &zero
		w.Header().Set(headerRemaining, "0")
		w.Header().Set(headerReset, ce.ResetAt.UTC().Format(time.RFC3339))
		w.Header().Set(headerRetryAfter, strconv.Itoa(retryAfter(ce.ResetAt, s.now())))
	case chat.KindUpstream:
		body.Success = new(bool)
	case chat.KindClient:
		if ce.Localized != "" {
			body.Success = new(bool)
		}
	}
	s.writeJSON(w, ce.Code, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// retryAfter is the whole seconds from now until resetAt, rounded up.
func retryAfter(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
