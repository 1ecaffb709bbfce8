package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateSession inserts a new chat session.
func (s *Store) CreateSession(sess ChatSession) error {
	active := 0
	if sess.IsActive {
		active = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (session_id, video_id, is_active, created_at)
		VALUES (?, ?, ?, ?)`,
		sess.SessionID, sess.VideoID, active, fmtTime(sess.CreatedAt),
	)
	return err
}

// GetSession returns one session by ID.
func (s *Store) GetSession(sessionID string) (ChatSession, error) {
	var sess ChatSession
	var active int
	var createdAt string
	err := s.db.QueryRow(`
		SELECT session_id, video_id, is_active, created_at
		FROM chat_sessions WHERE session_id = ?`, sessionID,
	).Scan(&sess.SessionID, &sess.VideoID, &active, &createdAt)
	if err == sql.ErrNoRows {
		return ChatSession{}, ErrNotFound
	}
	if err != nil {
		return ChatSession{}, err
	}
	sess.IsActive = active == 1
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return ChatSession{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return sess, nil
}

// CloseSession soft-closes a session. History stays readable but no
// further messages are accepted.
func (s *Store) CloseSession(sessionID string) error {
	res, err := s.db.Exec(`UPDATE chat_sessions SET is_active = 0 WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteSession hard-deletes a session and its messages.
func (s *Store) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM chat_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// AppendMessage appends one message to a session and returns its assigned ID.
func (s *Store) AppendMessage(m ChatMessage) (int64, error) {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		m.SessionID, m.Role, m.Content, fmtTime(created),
	)
	if err != nil {
		return 0, fmt.Errorf("appending message: %w", err)
	}
	return res.LastInsertId()
}

// ListMessages returns all messages of a session in insertion order.
func (s *Store) ListMessages(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListRecentMessages returns the newest limit messages of a session,
// newest first. Callers wanting chronological order reverse the slice.
func (s *Store) ListRecentMessages(sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]ChatMessage, error) {
	var results []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}
