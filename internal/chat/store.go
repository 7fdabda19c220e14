package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Message roles. "assistant" is the AI speaking as medical staff; "ai" is the
// automated patient-facing responder.
const (
	RolePatient   = "patient"
	RoleAI        = "ai"
	RoleAssistant = "assistant"
	RoleDoctor    = "doctor"
)

// Message is one turn in the visible conversation. Insertion id order is the
// canonical sequence.
type Message struct {
	ID        int64  `json:"id"`
	PatientID string `json:"patient_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Store persists chat messages.
type Store struct {
	db *sql.DB
}

// NewStore creates a chat message store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("chat: db required")
	}
	return &Store{db: db}
}

// Insert appends a message. Returns 0 without error when the patient has been
// deleted; the conversation is gone and there is nothing to attach to.
func (s *Store) Insert(ctx context.Context, patientID, role, content string) (int64, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM patients WHERE id = ? LIMIT 1`, patientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chat: patient check failed: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (patient_id, role, content) VALUES (?, ?, ?)`,
		patientID, role, content)
	if err != nil {
		return 0, fmt.Errorf("chat: insert failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat: last insert id: %w", err)
	}
	return id, nil
}

// History returns the full conversation in canonical order.
func (s *Store) History(ctx context.Context, patientID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, role, content, created_at
		 FROM chat_messages WHERE patient_id = ? ORDER BY id ASC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("chat: history failed: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Recent returns up to limit of the newest messages, oldest first.
func (s *Store) Recent(ctx context.Context, patientID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, role, content, created_at FROM (
			SELECT id, patient_id, role, content, created_at
			FROM chat_messages WHERE patient_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: recent failed: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Get fetches one message scoped to a patient.
func (s *Store) Get(ctx context.Context, id int64, patientID string) (*Message, error) {
	var m Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, role, content, created_at
		 FROM chat_messages WHERE id = ? AND patient_id = ?`,
		id, patientID).
		Scan(&m.ID, &m.PatientID, &m.Role, &m.Content, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get failed: %w", err)
	}
	return &m, nil
}

// LastPatientMessage returns the newest inbound patient message, or nil.
func (s *Store) LastPatientMessage(ctx context.Context, patientID string) (*Message, error) {
	var m Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, role, content, created_at
		 FROM chat_messages
		 WHERE patient_id = ? AND role = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		patientID, RolePatient).
		Scan(&m.ID, &m.PatientID, &m.Role, &m.Content, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: last patient message failed: %w", err)
	}
	return &m, nil
}

// HasAIMessage reports whether any automated message has been sent yet.
func (s *Store) HasAIMessage(ctx context.Context, patientID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chat_messages WHERE patient_id = ? AND role = ? ORDER BY id ASC LIMIT 1`,
		patientID, RoleAI).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("chat: ai message check failed: %w", err)
	}
	return true, nil
}

// EarlyAIMessages returns the first AI messages in order, for the inquiry
// counter backfill scan.
func (s *Store) EarlyAIMessages(ctx context.Context, patientID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM chat_messages
		 WHERE patient_id = ? AND role = ? ORDER BY id ASC LIMIT ?`,
		patientID, RoleAI, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: early ai messages failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("chat: scan failed: %w", err)
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

func collect(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan failed: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
