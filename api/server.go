package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

const (
	HeaderSessionID = "X-Session-ID"

	AppName    = "AI Chatbot API"
	AppVersion = "1.0.0"
)

type ChatHandler interface {
	HandleMessage(ctx context.Context, req contractx.ChatRequest) (contractx.ChatReply, error)
}

type IndexBuilder interface {
	Build(ctx context.Context) (string, error)
}

// chatRequest carries no scope: the caller class is decided by the route.
type chatRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Degraded  bool   `json:"degraded,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type rootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Option func(*Server)

// WithStaffToken enables POST /staff/chat for callers presenting the token
// as a bearer credential. Without a token the staff route is not served.
func WithStaffToken(token string) Option {
	return func(s *Server) {
		s.staffToken = strings.TrimSpace(token)
	}
}

// Server exposes the chat pipeline and index rebuild over HTTP. Public chat
// always runs in the general scope.
type Server struct {
	mux        *http.ServeMux
	chat       ChatHandler
	builder    IndexBuilder
	staffToken string
	newID      func() string
}

func NewServer(chat ChatHandler, builder IndexBuilder, opts ...Option) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		chat:    chat,
		builder: builder,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.chatHandler(contractx.ScopeGeneral))
	s.mux.HandleFunc("POST /create_vectorDB", s.handleCreateVectorDB)
	if s.staffToken != "" {
		s.mux.HandleFunc("POST /staff/chat", s.requireStaff(s.chatHandler(contractx.ScopeStaff)))
	}
}

func (s *Server) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.staffToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Message: AppName, Status: "running", Version: AppVersion})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) chatHandler(scope contractx.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.handleChat(w, r, scope)
	}
}

// handleChat keeps status 200 for pipeline failures and reports them through
// the success flag. Only an undecodable body is a client error.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, scope contractx.Scope) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get(HeaderSessionID))
	if sessionID == "" {
		sessionID = strings.TrimSpace(req.SessionID)
	}
	if sessionID == "" {
		sessionID = s.newID()
	}

	logger := log.With().Str("session_id", sessionID).Logger()

	if s.chat == nil {
		writeJSON(w, http.StatusOK, chatResponse{Response: "Error: chat service is not configured", SessionID: sessionID})
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), contractx.ChatRequest{
		SessionID: sessionID,
		Text:      req.UserQuery,
		Provider:  contractx.Provider(req.Provider),
		Scope:     scope,
	})
	if err != nil {
		logger.Error().Err(err).Msg("chat request failed")
		writeJSON(w, http.StatusOK, chatResponse{Response: "Error: " + err.Error(), SessionID: sessionID})
		return
	}

	logger.Info().Str("query", preview(req.UserQuery, 50)).Bool("success", reply.Success).Msg("chat response generated")
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		Success:   reply.Success,
		SessionID: sessionID,
		Degraded:  reply.Degraded,
	})
}

func (s *Server) handleCreateVectorDB(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		writeJSON(w, http.StatusOK, statusResponse{Status: "Error: vector index builder is not configured"})
		return
	}

	status, err := s.builder.Build(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create vector db failed")
		writeJSON(w, http.StatusOK, statusResponse{Status: "Error: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
