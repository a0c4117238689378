// Package server exposes the gateway pipeline over HTTP. The wire shapes
// are a compatibility contract: /chat accepts an OpenAI-style message list
// and every response carries X-Policy-Version and X-Request-Id headers.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
	"github.com/arbiterai/arbiter-oss/pkg/gateway"
	"github.com/arbiterai/arbiter-oss/pkg/identity"
)

// Message is one turn in a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the /chat request body. The last message's content is
// the prompt submitted to the pipeline.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ChatPayload is the inner object of every /chat response.
type ChatPayload struct {
	Blocked bool   `json:"blocked"`
	Intent  string `json:"intent"`
	Answer  string `json:"answer,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ChatResponse wraps the payload to match the historical response shape.
type ChatResponse struct {
	Response ChatPayload `json:"response"`
}

// Server is the HTTP transport in front of a gateway.Pipeline.
type Server struct {
	pipeline *gateway.Pipeline
	metrics  http.Handler
	logger   zerolog.Logger
}

// New constructs a Server. metricsHandler serves GET /metrics and may be
// nil to disable the endpoint.
func New(pipeline *gateway.Pipeline, metricsHandler http.Handler, logger zerolog.Logger) *Server {
	return &Server{pipeline: pipeline, metrics: metricsHandler, logger: logger}
}

// Handler builds the routed handler, wrapped for tracing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /whoami", s.handleWhoami)
	mux.HandleFunc("POST /chat", s.handleChat)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return otelhttp.NewHandler(mux, "arbiter.gateway")
}

// HTTPServer wraps the handler in an http.Server with sane timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	id := identity.Resolve(flattenHeaders(r.Header))
	writeJSON(w, http.StatusOK, map[string]any{
		"role":       id.Role,
		"attrs":      id.Attributes,
		"request_id": r.Header.Get(identity.HeaderRequestID),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(identity.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	s.setDecisionHeaders(w, requestID)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages must not be empty"})
		return
	}

	prompt := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content)
	result, err := s.pipeline.Handle(r.Context(), gateway.Request{
		ID:       requestID,
		Identity: identity.Resolve(flattenHeaders(r.Header)),
		Prompt:   prompt,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyPrompt):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty content"})
		case errors.Is(err, domain.ErrUpstreamUnreachable):
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
		default:
			s.logger.Error().Err(err).Str("request_id", requestID).Msg("chat request failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	if !result.Allowed {
		writeJSON(w, http.StatusForbidden, ChatResponse{Response: ChatPayload{
			Blocked: true,
			Intent:  result.Intent.Intent,
			Reason:  string(result.Reason),
		}})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: ChatPayload{
		Blocked: false,
		Intent:  result.Intent.Intent,
		Answer:  result.Answer,
	}})
}

// setDecisionHeaders stamps the headers every /chat response carries,
// including error responses.
func (s *Server) setDecisionHeaders(w http.ResponseWriter, requestID string) {
	w.Header().Set("X-Policy-Version", s.pipeline.PolicyVersion())
	w.Header().Set("X-Request-Id", requestID)
}

// flattenHeaders reduces multi-valued HTTP headers to the first value,
// which is what the identity resolver expects.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
