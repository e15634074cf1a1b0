package storage

import (
	"errors"
	"fmt"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func turnMessages(sessionID, conversationID string, step int) []Message {
	return []Message{
		{
			SessionID: sessionID, UserID: "user-1", Step: step,
			Node: "human", SenderType: SenderUser, Role: "user",
			Content:        "show my pending orders",
			ConversationID: conversationID,
			CreatedAt:      fmt.Sprintf("2025-06-20T10:0%d:00", step),
		},
		{
			SessionID: sessionID, UserID: "user-1", Step: step + 1,
			Node: "intent_planner", SenderType: SenderAgent, Role: "assistant",
			Content:        `{"intent":"data_query"}`,
			ConversationID: conversationID,
			CreatedAt:      fmt.Sprintf("2025-06-20T10:0%d:01", step),
		},
		{
			SessionID: sessionID, UserID: "user-1", Step: step + 2,
			Node: "data_analyser", SenderType: SenderFinal, Role: "assistant",
			Content:        "You have 2 pending orders.",
			ConversationID: conversationID,
			CreatedAt:      fmt.Sprintf("2025-06-20T10:0%d:02", step),
		},
	}
}

func TestSaveAndRecentMessages(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveMessages(turnMessages("s1", "conv-1", 0)); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	recent, err := s.RecentMessages("user-1", "s1", 6)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	// Intermediate agent messages are excluded from history reads.
	if len(recent) != 2 {
		t.Fatalf("got %d messages, want 2", len(recent))
	}
	if recent[0].SenderType != SenderFinal {
		t.Errorf("first (newest) sender = %s, want final_response", recent[0].SenderType)
	}
	if recent[1].SenderType != SenderUser {
		t.Errorf("second sender = %s, want user", recent[1].SenderType)
	}
}

func TestRecentMessages_Limit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		conv := fmt.Sprintf("conv-%d", i)
		if err := s.SaveMessages(turnMessages("s1", conv, i)); err != nil {
			t.Fatalf("SaveMessages turn %d: %v", i, err)
		}
	}

	recent, err := s.RecentMessages("user-1", "s1", 6)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 6 {
		t.Fatalf("got %d messages, want 6", len(recent))
	}
	if recent[0].ConversationID != "conv-4" {
		t.Errorf("newest message from %s, want conv-4", recent[0].ConversationID)
	}
}

func TestRecentMessages_ThreadIsolation(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveMessages(turnMessages("s1", "conv-1", 0)); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	other, err := s.RecentMessages("user-2", "s1", 6)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("user-2 sees %d messages from user-1's thread", len(other))
	}

	otherSession, err := s.RecentMessages("user-1", "s2", 6)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(otherSession) != 0 {
		t.Errorf("session s2 sees %d messages from s1", len(otherSession))
	}
}

func TestUpdateFeedback(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveMessages(turnMessages("s1", "conv-1", 0)); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	n, err := s.UpdateFeedback("user-1", "s1", "conv-1", true)
	if err != nil {
		t.Fatalf("UpdateFeedback: %v", err)
	}
	if n != 3 {
		t.Errorf("affected rows = %d, want 3", n)
	}

	msgs, err := s.SessionMessages("user-1", "s1")
	if err != nil {
		t.Fatalf("SessionMessages: %v", err)
	}
	for _, m := range msgs {
		if m.ConversationID == "conv-1" && (m.Feedback == nil || !*m.Feedback) {
			t.Errorf("message step %d has feedback %v, want true", m.Step, m.Feedback)
		}
	}
}

func TestUpdateFeedback_UnknownConversation(t *testing.T) {
	s := openTestStore(t)

	_, err := s.UpdateFeedback("user-1", "s1", "no-such-conv", false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSessions(t *testing.T) {
	s := openTestStore(t)

	exists, err := s.SessionExists("user-1", "2025-06-20")
	if err != nil {
		t.Fatalf("SessionExists: %v", err)
	}
	if exists {
		t.Fatal("session should not exist yet")
	}

	sess := Session{SessionID: "2025-06-20", UserID: "user-1", Title: "2025-06-20", CreatedAt: "2025-06-20T09:00:00"}
	if err := s.InitSession(sess); err != nil {
		t.Fatalf("InitSession: %v", err)
	}
	// Second init of the same session is a no-op.
	if err := s.InitSession(sess); err != nil {
		t.Fatalf("InitSession (again): %v", err)
	}

	exists, err = s.SessionExists("user-1", "2025-06-20")
	if err != nil {
		t.Fatalf("SessionExists: %v", err)
	}
	if !exists {
		t.Fatal("session should exist after init")
	}

	if err := s.InitSession(Session{SessionID: "2025-06-21", UserID: "user-1", CreatedAt: "2025-06-21T09:00:00"}); err != nil {
		t.Fatalf("InitSession: %v", err)
	}

	list, err := s.ListSessions("user-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0] != "2025-06-21" {
		t.Errorf("sessions = %v, want newest first", list)
	}
}
