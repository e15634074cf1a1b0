package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Sender types stored with every chat message. "agent" marks
// intermediate pipeline output, "final_response" the reply shown to the
// user.
const (
	SenderUser  = "user"
	SenderAgent = "agent"
	SenderFinal = "final_response"
)

// Message is one persisted chat message. CreatedAt keeps the wall-clock
// string recorded when the pipeline produced the message.
type Message struct {
	ID             int64
	SessionID      string
	UserID         string
	Step           int
	Node           string
	SenderType     string
	Role           string
	Content        string
	ConversationID string
	CreatedAt      string
	Feedback       *bool
}

// Session is one conversation thread owned by a user.
type Session struct {
	SessionID string
	UserID    string
	Title     string
	CreatedAt string
}
