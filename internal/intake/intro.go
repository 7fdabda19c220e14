package intake

import (
	"context"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// IntroSeeder makes sure every conversation opens with the assistant
// greeting. The greeting counts as the first inquiry round.
type IntroSeeder struct {
	store     *chat.Store
	generator *Generator
	inquiries *InquiryState
	logger    *logging.Logger
}

func NewIntroSeeder(store *chat.Store, generator *Generator, inquiries *InquiryState, logger *logging.Logger) *IntroSeeder {
	if store == nil {
		panic("intake: chat store required")
	}
	if generator == nil {
		panic("intake: generator required")
	}
	if inquiries == nil {
		panic("intake: inquiry state required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IntroSeeder{store: store, generator: generator, inquiries: inquiries, logger: logger}
}

// EnsureIntro inserts the opener when no automated message exists yet.
func (s *IntroSeeder) EnsureIntro(ctx context.Context, patientID string) error {
	seeded, err := s.store.HasAIMessage(ctx, patientID)
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}
	if _, err := s.store.Insert(ctx, patientID, chat.RoleAI, s.generator.IntroMessage()); err != nil {
		return err
	}
	if err := s.inquiries.Set(ctx, patientID, 1); err != nil {
		s.logger.Warn("intro inquiry seed failed", "patient_id", patientID, "error", err)
	}
	return nil
}
