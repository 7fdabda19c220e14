package notify

import (
	"context"
	"fmt"

	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Service emails the doctor when a consultation becomes visible. All sends
// are best effort; a mail outage never blocks the payment flow.
type Service struct {
	sender      EmailSender
	patients    *patients.Repository
	doctorEmail string
	doctorName  string
	logger      *logging.Logger
}

// NewService wires the notifier. Returns nil when no sender or recipient is
// configured; callers treat a nil service as notifications disabled.
func NewService(sender EmailSender, patientsRepo *patients.Repository, doctorEmail, doctorName string, logger *logging.Logger) *Service {
	if sender == nil || doctorEmail == "" {
		return nil
	}
	if patientsRepo == nil {
		panic("notify: patients repo required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sender:      sender,
		patients:    patientsRepo,
		doctorEmail: doctorEmail,
		doctorName:  doctorName,
		logger:      logger,
	}
}

// ConsultationPaid tells the doctor a paid consultation is waiting.
func (s *Service) ConsultationPaid(ctx context.Context, patientID string, consultationID int64) {
	if s == nil {
		return
	}
	patientName := patientID
	if p, err := s.patients.GetByID(ctx, patientID); err == nil {
		patientName = p.Name
	}

	msg := EmailMessage{
		To:      s.doctorEmail,
		ToName:  s.doctorName,
		Subject: fmt.Sprintf("患者 %s 已支付医生会诊", patientName),
		Body: fmt.Sprintf("患者 %s 已完成会诊支付（会诊编号 %d），现在可以在医生工作台开始沟通。",
			patientName, consultationID),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Warn("consultation paid notification failed", "patient_id", patientID, "error", err)
	}
}
