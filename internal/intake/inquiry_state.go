package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// maxInquiryBackfill bounds how many early assistant messages the backfill
// heuristic inspects.
const maxInquiryBackfill = 20

// aiMessageReader is the slice of the chat store the counter needs.
type aiMessageReader interface {
	EarlyAIMessages(ctx context.Context, patientID string, limit int) ([]string, error)
}

// InquiryState tracks how many medical inquiry rounds the assistant has
// already run per patient.
type InquiryState struct {
	db       *sql.DB
	messages aiMessageReader
	maxCount int
}

func NewInquiryState(db *sql.DB, messages aiMessageReader, maxCount int) *InquiryState {
	if db == nil {
		panic("intake: db required")
	}
	if messages == nil {
		panic("intake: message reader required")
	}
	if maxCount <= 0 {
		maxCount = 3
	}
	return &InquiryState{db: db, messages: messages, maxCount: maxCount}
}

// MaxCount returns the configured inquiry cap.
func (s *InquiryState) MaxCount() int {
	return s.maxCount
}

func (s *InquiryState) ensureRow(ctx context.Context, patientID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM patients WHERE id = ? LIMIT 1`, patientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("intake: patient check failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO patient_ai_state (patient_id, medical_inquiry_count) VALUES (?, 0)`,
		patientID); err != nil {
		return fmt.Errorf("intake: inquiry state insert failed: %w", err)
	}
	return nil
}

// Count returns the patient's inquiry count, lazily creating the row. A zero
// count on a conversation that already has assistant inquiry messages is
// backfilled from history so existing conversations do not restart the
// question loop.
func (s *InquiryState) Count(ctx context.Context, patientID string) (int, error) {
	if err := s.ensureRow(ctx, patientID); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT medical_inquiry_count FROM patient_ai_state WHERE patient_id = ?`,
		patientID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("intake: inquiry count read failed: %w", err)
	}
	if count > 0 {
		return count, nil
	}

	estimated, err := s.estimateFromHistory(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if estimated > 0 {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE patient_ai_state
			 SET medical_inquiry_count = ?, updated_at = datetime('now', 'localtime')
			 WHERE patient_id = ?`, estimated, patientID); err != nil {
			return 0, fmt.Errorf("intake: inquiry backfill write failed: %w", err)
		}
	}
	return estimated, nil
}

// Increment bumps the counter after an inquiry round.
func (s *InquiryState) Increment(ctx context.Context, patientID string) error {
	if err := s.ensureRow(ctx, patientID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE patient_ai_state
		 SET medical_inquiry_count = medical_inquiry_count + 1, updated_at = datetime('now', 'localtime')
		 WHERE patient_id = ?`, patientID)
	if err != nil {
		return fmt.Errorf("intake: inquiry increment failed: %w", err)
	}
	return nil
}

// Set forces the counter, used when the intro message seeds round one.
func (s *InquiryState) Set(ctx context.Context, patientID string, count int) error {
	if err := s.ensureRow(ctx, patientID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE patient_ai_state
		 SET medical_inquiry_count = ?, updated_at = datetime('now', 'localtime')
		 WHERE patient_id = ?`, count, patientID)
	if err != nil {
		return fmt.Errorf("intake: inquiry state set failed: %w", err)
	}
	return nil
}

// estimateFromHistory counts early assistant messages that read like inquiry
// rounds, capped at the configured maximum. Consultation flow and admin
// replies are not inquiries.
func (s *InquiryState) estimateFromHistory(ctx context.Context, patientID string) (int, error) {
	messages, err := s.messages.EarlyAIMessages(ctx, patientID, maxInquiryBackfill)
	if err != nil {
		return 0, err
	}
	estimated := 0
	for _, content := range messages {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if containsAny(content, "医生会诊", "支付", "确认接入") {
			continue
		}
		if containsAny(content, "上班", "营业", "地址", "挂号", "发票") {
			continue
		}
		if strings.Contains(content, "助理") && containsAny(content, "请", "麻烦", "补充") {
			estimated++
		}
	}
	if estimated > s.maxCount {
		estimated = s.maxCount
	}
	return estimated, nil
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
