package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Messages pushed into the patient chat by lifecycle transitions.
const (
	paidMessage = "支付成功，已为您接入医生会诊。"

	endMessage = "本次医生会诊已结束，感谢您的信任。\n" +
		"如需继续咨询或补充材料，可再次发起医生会诊。\n" +
		"\n" +
		"风险提示：本消息为 AI 自动生成，仅供健康科普与沟通参考，不能替代线下面诊与检查。\n" +
		"如出现症状加重、持续高热不退、呼吸困难、胸痛、意识异常、严重过敏等紧急情况，请立即就近就医或拨打 120。"

	paidFact  = "医生会诊已支付"
	endedFact = "医生会诊结束"
)

// messageWriter is the slice of the chat store the lifecycle needs.
type messageWriter interface {
	Insert(ctx context.Context, patientID, role, content string) (int64, error)
}

// factWriter records lifecycle facts about the patient.
type factWriter interface {
	StoreFact(ctx context.Context, patientID, source, content string) error
}

// patientChecker guards against tokens pointing at deleted patients.
type patientChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// PaidNotifier is told when a consultation becomes visible to the doctor.
type PaidNotifier interface {
	ConsultationPaid(ctx context.Context, patientID string, consultationID int64)
}

// Service drives the consultation lifecycle.
type Service struct {
	repo     *Repository
	messages messageWriter
	facts    factWriter
	patients patientChecker
	notifier PaidNotifier
	feeCents int
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewService wires the lifecycle. facts and notifier may be nil.
func NewService(repo *Repository, messages messageWriter, patients patientChecker, facts factWriter, notifier PaidNotifier, feeCents int, logger *logging.Logger) *Service {
	if repo == nil {
		panic("consultation: repo required")
	}
	if messages == nil {
		panic("consultation: message writer required")
	}
	if patients == nil {
		panic("consultation: patient checker required")
	}
	if feeCents <= 0 {
		feeCents = 1999
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		messages: messages,
		facts:    facts,
		patients: patients,
		notifier: notifier,
		feeCents: feeCents,
		logger:   logger,
		tracer:   otel.Tracer("intake.internal.consultation"),
	}
}

// PayLink renders the demo payment path for a token.
func PayLink(token string) string {
	return "/patient/pay/" + token
}

// Request opens a consultation for the patient, reusing any open one so
// repeated asks never mint duplicate tokens.
func (s *Service) Request(ctx context.Context, patientID, trigger string) (*Consultation, error) {
	ctx, span := s.tracer.Start(ctx, "consultation.request")
	defer span.End()

	existing, err := s.repo.Open(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if trigger != TriggerAI && trigger != TriggerManual {
		trigger = TriggerManual
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	created, err := s.repo.Create(ctx, patientID, token, s.feeCents, trigger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("consultation requested", "patient_id", patientID, "consultation_id", created.ID, "trigger", trigger)
	return created, nil
}

// Active returns the patient's doctor-visible consultation, or nil.
func (s *Service) Active(ctx context.Context, patientID string) (*Consultation, error) {
	return s.repo.ActivePaid(ctx, patientID)
}

// Open returns the patient's pending or paid consultation, or nil.
func (s *Service) Open(ctx context.Context, patientID string) (*Consultation, error) {
	return s.repo.Open(ctx, patientID)
}

// Redeem resolves a payment token click. Paying flips the consultation to
// paid, drops a confirmation into the chat, records the fact, and notifies
// the doctor side. Clicking an already-paid link still lands the patient on
// their chat.
func (s *Service) Redeem(ctx context.Context, token string) (RedeemResult, error) {
	ctx, span := s.tracer.Start(ctx, "consultation.redeem")
	defer span.End()

	c, err := s.repo.ByToken(ctx, token)
	if err != nil {
		return RedeemResult{Outcome: RedeemNotFound}, err
	}
	if c == nil {
		return RedeemResult{Outcome: RedeemNotFound}, nil
	}

	exists, err := s.patients.Exists(ctx, c.PatientID)
	if err != nil {
		return RedeemResult{Outcome: RedeemNotFound}, err
	}
	if !exists {
		// Orphan token: the patient was deleted out from under it.
		if delErr := s.repo.Delete(ctx, c.ID); delErr != nil {
			s.logger.Warn("orphan consultation cleanup failed", "consultation_id", c.ID, "error", delErr)
		}
		return RedeemResult{Outcome: RedeemNotFound}, nil
	}

	switch {
	case c.Status == StatusPaid:
		return RedeemResult{Outcome: RedeemAlreadyPaid, PatientID: c.PatientID}, nil
	case c.Status == StatusEnded || c.EndedAt != "":
		return RedeemResult{Outcome: RedeemEnded, PatientID: c.PatientID}, nil
	}

	if err := s.repo.MarkPaid(ctx, c.ID); err != nil {
		return RedeemResult{Outcome: RedeemNotFound, PatientID: c.PatientID}, err
	}
	if _, err := s.messages.Insert(ctx, c.PatientID, chat.RoleAI, paidMessage); err != nil {
		s.logger.Warn("paid confirmation message failed", "patient_id", c.PatientID, "error", err)
	}
	if s.facts != nil {
		if err := s.facts.StoreFact(ctx, c.PatientID, memory.SourceAI, paidFact); err != nil {
			s.logger.Warn("paid fact write failed", "patient_id", c.PatientID, "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.ConsultationPaid(ctx, c.PatientID, c.ID)
	}
	s.logger.Info("consultation paid", "patient_id", c.PatientID, "consultation_id", c.ID)
	return RedeemResult{Outcome: RedeemPaid, PatientID: c.PatientID}, nil
}

// ErrNotFound is returned when a consultation id does not exist.
var ErrNotFound = errors.New("consultation: not found")

// End closes one consultation. Ending an already-ended consultation is a
// no-op; the closing disclaimer only posts on the real transition.
func (s *Service) End(ctx context.Context, consultationID int64) error {
	ctx, span := s.tracer.Start(ctx, "consultation.end")
	defer span.End()

	c, err := s.repo.ByID(ctx, consultationID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if c.Status == StatusEnded {
		return nil
	}
	if err := s.repo.MarkEnded(ctx, consultationID); err != nil {
		return err
	}
	if _, err := s.messages.Insert(ctx, c.PatientID, chat.RoleAI, endMessage); err != nil {
		return fmt.Errorf("consultation: end message failed: %w", err)
	}
	if s.facts != nil {
		if err := s.facts.StoreFact(ctx, c.PatientID, memory.SourceAI, endedFact); err != nil {
			s.logger.Warn("ended fact write failed", "patient_id", c.PatientID, "error", err)
		}
	}
	s.logger.Info("consultation ended", "patient_id", c.PatientID, "consultation_id", consultationID)
	return nil
}

// PaidList returns the doctor worklist.
func (s *Service) PaidList(ctx context.Context) ([]PaidEntry, error) {
	return s.repo.ListPaid(ctx)
}
