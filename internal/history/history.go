// Package history manages per-thread conversation history behind a
// TTL-bound in-memory cache backed by the durable message store.
package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rkarthik/bloodlink/internal/llm"
	"github.com/rkarthik/bloodlink/internal/storage"
)

const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 30 * time.Minute
	DefaultWindow    = 6
)

// Nodes whose output is the reply shown to the user.
var finalNodes = map[string]bool{
	"data_analyser":    true,
	"general_response": true,
	"clarify":          true,
}

// Store is the durable side of the history tier.
type Store interface {
	SaveMessages(messages []storage.Message) error
	RecentMessages(userID, sessionID string, limit int) ([]storage.Message, error)
}

// Turn is the outcome of one pipeline run handed over for persistence.
// Nodes and Times align with the non-tool entries of Messages.
type Turn struct {
	ConversationID string
	Messages       []llm.Message
	Nodes          []string
	Times          []string
}

// Manager serves recent history reads from an expiring LRU cache and
// falls back to the store on a miss. Writes go to the store first and
// refresh the cache on success.
type Manager struct {
	store  Store
	cache  *expirable.LRU[string, []llm.Message]
	window int
}

func NewManager(store Store, cacheSize int, ttl time.Duration, window int) *Manager {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		store:  store,
		cache:  expirable.NewLRU[string, []llm.Message](cacheSize, nil, ttl),
		window: window,
	}
}

// Threads are cached per user and session so one user's history can
// never leak into another's.
func cacheKey(userID, sessionID string) string {
	return userID + "\n" + sessionID
}

// Recent returns the thread's recent exchange in chronological order.
// Failures degrade to an empty history so a broken store never blocks
// a turn.
func (m *Manager) Recent(userID, sessionID string) []llm.Message {
	key := cacheKey(userID, sessionID)
	if cached, ok := m.cache.Get(key); ok {
		return cached
	}

	records, err := m.store.RecentMessages(userID, sessionID, m.window)
	if err != nil {
		slog.Warn("history read failed, continuing without context", "user_id", userID, "session_id", sessionID, "error", err)
		return nil
	}

	// The store hands back newest first; the model wants oldest first.
	messages := make([]llm.Message, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		role := llm.RoleAssistant
		if rec.SenderType == storage.SenderUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: rec.Content})
	}
	m.cache.Add(key, messages)
	return messages
}

// Persist writes every non-tool message of the turn to the store, then
// appends the user message and final reply to the cached thread.
func (m *Manager) Persist(userID, sessionID string, turn Turn) error {
	records, err := buildRecords(userID, sessionID, turn)
	if err != nil {
		return err
	}
	if err := m.store.SaveMessages(records); err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}

	key := cacheKey(userID, sessionID)
	cached, _ := m.cache.Get(key)
	for _, rec := range records {
		if rec.SenderType == storage.SenderAgent {
			continue
		}
		role := llm.RoleAssistant
		if rec.SenderType == storage.SenderUser {
			role = llm.RoleUser
		}
		cached = append(cached, llm.Message{Role: role, Content: rec.Content})
	}
	if len(cached) > m.window {
		cached = cached[len(cached)-m.window:]
	}
	m.cache.Add(key, cached)
	return nil
}

// buildRecords maps turn messages to storage rows. Tool messages are
// transient and never persisted.
func buildRecords(userID, sessionID string, turn Turn) ([]storage.Message, error) {
	var records []storage.Message
	step := 0
	traceIdx := 0
	for _, msg := range turn.Messages {
		if msg.Role == llm.RoleTool {
			continue
		}
		if traceIdx >= len(turn.Nodes) || traceIdx >= len(turn.Times) {
			return nil, fmt.Errorf("node trace shorter than message list (%d nodes, %d times)", len(turn.Nodes), len(turn.Times))
		}
		node := turn.Nodes[traceIdx]
		createdAt := turn.Times[traceIdx]
		traceIdx++

		sender := storage.SenderAgent
		switch {
		case msg.Role == llm.RoleUser:
			sender = storage.SenderUser
		case finalNodes[node]:
			sender = storage.SenderFinal
		}

		records = append(records, storage.Message{
			SessionID:      sessionID,
			UserID:         userID,
			Step:           step,
			Node:           node,
			SenderType:     sender,
			Role:           string(msg.Role),
			Content:        msg.Content,
			ConversationID: turn.ConversationID,
			CreatedAt:      createdAt,
		})
		step++
	}
	return records, nil
}
