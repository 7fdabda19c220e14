package consultation

import "github.com/lumohealth/intake-ai-platform/internal/patients"

// Consultation statuses.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusEnded   = "ended"
)

// Request triggers.
const (
	TriggerAI     = "ai"
	TriggerManual = "manual"
)

// Consultation is one doctor consultation flow for a patient.
type Consultation struct {
	ID        int64  `json:"id"`
	PatientID string `json:"patient_id"`
	Status    string `json:"status"`
	PayToken  string `json:"pay_token"`
	FeeCents  int    `json:"fee_cents"`
	Trigger   string `json:"trigger"`
	CreatedAt string `json:"created_at"`
	PaidAt    string `json:"paid_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
}

// Active reports whether the doctor side should see this consultation.
func (c *Consultation) Active() bool {
	return c != nil && c.Status == StatusPaid && c.EndedAt == ""
}

// PaidEntry pairs a paid consultation with its patient for the doctor
// worklist.
type PaidEntry struct {
	Consultation Consultation     `json:"consultation"`
	Patient      patients.Patient `json:"patient"`
}

// RedeemOutcome classifies a payment link redemption.
type RedeemOutcome string

const (
	RedeemPaid        RedeemOutcome = "paid"
	RedeemAlreadyPaid RedeemOutcome = "already_paid"
	RedeemNotFound    RedeemOutcome = "not_found"
	RedeemEnded       RedeemOutcome = "ended"
)

// RedeemResult is what a payment link click resolves to.
type RedeemResult struct {
	Outcome   RedeemOutcome
	PatientID string
}

// Ok reports whether the patient should land on their chat rather than an
// error page.
func (r RedeemResult) Ok() bool {
	return r.Outcome == RedeemPaid || r.Outcome == RedeemAlreadyPaid
}
