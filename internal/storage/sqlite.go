package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding chat sessions and messages.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bloodlink.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Messages ---

// SaveMessages inserts a batch of messages in one transaction. A turn
// is either fully recorded or not at all.
func (s *Store) SaveMessages(messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO chat_messages (session_id, user_id, step, node, sender_type, role, content, conversation_id, created_at, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if _, err := stmt.Exec(m.SessionID, m.UserID, m.Step, m.Node, m.SenderType, m.Role, m.Content, m.ConversationID, m.CreatedAt, m.Feedback); err != nil {
			return fmt.Errorf("inserting message step %d: %w", m.Step, err)
		}
	}
	return tx.Commit()
}

// RecentMessages returns the newest user and final_response messages of
// a thread, most recent first.
func (s *Store) RecentMessages(userID, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, user_id, step, node, sender_type, role, content, conversation_id, created_at, feedback
		FROM chat_messages
		WHERE user_id = ? AND session_id = ? AND sender_type IN (?, ?)
		ORDER BY created_at DESC, step DESC
		LIMIT ?`,
		userID, sessionID, SenderUser, SenderFinal, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SessionMessages returns the user and final_response messages of a
// thread in chronological order.
func (s *Store) SessionMessages(userID, sessionID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, user_id, step, node, sender_type, role, content, conversation_id, created_at, feedback
		FROM chat_messages
		WHERE user_id = ? AND session_id = ? AND sender_type IN (?, ?)
		ORDER BY created_at ASC, step ASC`,
		userID, sessionID, SenderUser, SenderFinal,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var results []Message
	for rows.Next() {
		var m Message
		var feedback sql.NullBool
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Step, &m.Node, &m.SenderType, &m.Role, &m.Content, &m.ConversationID, &m.CreatedAt, &feedback); err != nil {
			return nil, err
		}
		if feedback.Valid {
			m.Feedback = &feedback.Bool
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// UpdateFeedback flags every message of a conversation turn with the
// user's verdict and returns how many rows changed.
func (s *Store) UpdateFeedback(userID, sessionID, conversationID string, liked bool) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE chat_messages SET feedback = ?
		WHERE user_id = ? AND session_id = ? AND conversation_id = ?`,
		liked, userID, sessionID, conversationID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// --- Sessions ---

func (s *Store) SessionExists(userID, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chat_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InitSession records a new session row. Re-initializing an existing
// session is a no-op.
func (s *Store) InitSession(sess Session) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (session_id, user_id, title, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO NOTHING`,
		sess.SessionID, sess.UserID, sess.Title, sess.CreatedAt,
	)
	return err
}

// ListSessions returns the user's session ids, newest first.
func (s *Store) ListSessions(userID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT session_id FROM chat_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, session_id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
