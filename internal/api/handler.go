// Package api exposes the assistant over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rkarthik/bloodlink/internal/agent"
	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/history"
	"github.com/rkarthik/bloodlink/internal/llm"
	"github.com/rkarthik/bloodlink/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxMessageLen      = 1000

	sessionDateLayout = "2006-01-02"
	displayTimeLayout = "2006-01-02 03:04:05 PM"
	storeTimeLayout   = "2006-01-02T15:04:05"
)

var welcomeMessages = []string{
	"Hi there! I'm Inhlth, your assistant for blood orders, usage trends and billing. What would you like to know?",
	"Hello! Ask me about your current orders, monthly billing, or blood component usage.",
	"Welcome back! I can help you track orders, review approvals, and analyze your blood supply data.",
}

// Runner executes one conversational turn.
type Runner interface {
	Run(ctx context.Context, id graphql.Identity, question string, hist []llm.Message) agent.Result
}

// HistoryManager is the two-tier history layer the handlers read and
// write through.
type HistoryManager interface {
	Recent(userID, sessionID string) []llm.Message
	Persist(userID, sessionID string, turn history.Turn) error
}

// SessionStore covers the durable session and feedback operations the
// API needs beyond the history manager.
type SessionStore interface {
	SessionExists(userID, sessionID string) (bool, error)
	InitSession(sess storage.Session) error
	ListSessions(userID string) ([]string, error)
	SessionMessages(userID, sessionID string) ([]storage.Message, error)
	UpdateFeedback(userID, sessionID, conversationID string, liked bool) (int64, error)
}

// Deps wires the assistant surface. A non-empty Token puts the
// assistant routes behind bearer auth; the health probe stays open.
type Deps struct {
	Agent   Runner
	History HistoryManager
	Store   SessionStore
	Token   string
	Now     func() time.Time
}

// NewHandler returns the HTTP handler for the assistant API.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Route("/ai_assistant", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/chat", handleChat(deps))
		r.Post("/session_init", handleSessionInit(deps))
		r.Post("/feedback", handleFeedback(deps))
		r.Post("/get_session_messages", handleSessionMessages(deps))
		r.Post("/get_session_list", handleSessionList(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID      string `json:"session_id"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUser(w, req.UserID) {
			return
		}
		message := strings.TrimSpace(req.Message)
		if message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message must not be empty")
			return
		}
		if utf8.RuneCountInString(message) > maxMessageLen {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message exceeds %d characters", maxMessageLen)
			return
		}

		now := deps.Now()
		sessionID := req.SessionID
		if sessionID == "" {
			// One default session per day keeps drop-in clients working.
			sessionID = now.UTC().Format(sessionDateLayout)
		}
		ensureSession(deps, req.UserID, sessionID, now)

		id := graphql.Identity{UserID: req.UserID, CompanyID: req.CompanyID}
		hist := deps.History.Recent(req.UserID, sessionID)
		res := deps.Agent.Run(r.Context(), id, message, hist)

		conversationID := uuid.NewString()
		turn := history.Turn{
			ConversationID: conversationID,
			Messages:       res.State.Messages,
			Nodes:          res.State.Nodes,
			Times:          res.State.Times,
		}
		if err := deps.History.Persist(req.UserID, sessionID, turn); err != nil {
			// The user already has their answer; losing one history
			// record is preferable to failing the request.
			slog.Warn("persisting turn failed", "user_id", req.UserID, "session_id", sessionID, "error", err)
		}

		writeJSON(w, http.StatusOK, chatResponse{
			SessionID:      sessionID,
			Response:       res.Reply,
			ConversationID: conversationID,
			CreatedAt:      now.UTC().Format(displayTimeLayout),
		})
	}
}

func ensureSession(deps Deps, userID, sessionID string, now time.Time) {
	exists, err := deps.Store.SessionExists(userID, sessionID)
	if err != nil {
		slog.Warn("session lookup failed", "user_id", userID, "session_id", sessionID, "error", err)
		return
	}
	if exists {
		return
	}
	err = deps.Store.InitSession(storage.Session{
		SessionID: sessionID,
		UserID:    userID,
		Title:     sessionID,
		CreatedAt: now.UTC().Format(storeTimeLayout),
	})
	if err != nil {
		slog.Warn("session init failed", "user_id", userID, "session_id", sessionID, "error", err)
	}
}

type sessionInitRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func handleSessionInit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionInitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUser(w, req.UserID) {
			return
		}

		now := deps.Now()
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = now.UTC().Format(sessionDateLayout)
		}
		ensureSession(deps, req.UserID, sessionID, now)

		writeJSON(w, http.StatusOK, chatResponse{
			SessionID: sessionID,
			Response:  welcomeMessages[rand.Intn(len(welcomeMessages))],
			CreatedAt: now.UTC().Format(displayTimeLayout),
		})
	}
}

type feedbackRequest struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
	Feedback       string `json:"feedback"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUser(w, req.UserID) {
			return
		}
		if req.SessionID == "" || req.ConversationID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session_id and conversation_id are required")
			return
		}

		var liked bool
		switch req.Feedback {
		case "1", "true":
			liked = true
		case "0", "false":
			liked = false
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "feedback must be 0 or 1")
			return
		}

		n, err := deps.Store.UpdateFeedback(req.UserID, req.SessionID, req.ConversationID, liked)
		if err == storage.ErrNotFound {
			httpError(w, http.StatusNotFound, "not_found_error", "conversation %s not found", req.ConversationID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "updating feedback: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"response":      "Feedback added successfully!",
			"updated_count": n,
		})
	}
}

type sessionMessagesRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type sessionMessage struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	Node           string `json:"node"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
	Feedback       *bool  `json:"feedback"`
}

func handleSessionMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionMessagesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUser(w, req.UserID) {
			return
		}
		if req.SessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session_id is required")
			return
		}

		records, err := deps.Store.SessionMessages(req.UserID, req.SessionID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading messages: %v", err)
			return
		}

		out := make([]sessionMessage, 0, len(records))
		for _, rec := range records {
			out = append(out, sessionMessage{
				Role:           rec.Role,
				Content:        rec.Content,
				Node:           rec.Node,
				ConversationID: rec.ConversationID,
				CreatedAt:      rec.CreatedAt,
				Feedback:       rec.Feedback,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": out})
	}
}

type sessionListRequest struct {
	UserID string `json:"user_id"`
}

func handleSessionList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionListRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUser(w, req.UserID) {
			return
		}

		sessions, err := deps.Store.ListSessions(req.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions_list": sessions})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, userID string) bool {
	if strings.TrimSpace(userID) == "" {
		httpError(w, http.StatusUnauthorized, "authentication_error", "user_id is required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
