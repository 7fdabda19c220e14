package patients

import "errors"

// ErrPatientNotFound indicates the patient id does not exist.
var ErrPatientNotFound = errors.New("patients: patient not found")

// Patient is a triaged individual with a running free-text profile.
type Patient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Age       *int   `json:"age"`
	Gender    string `json:"gender"`
	Condition string `json:"condition"`
	Persona   string `json:"persona"`
	CreatedAt string `json:"created_at"`
}

// PatientWithConsultStatus decorates a patient with doctor-visibility.
type PatientWithConsultStatus struct {
	Patient
	HasActiveConsultation bool `json:"has_active_consultation"`
}

// ChatSummary is the conversation-list preview for a patient.
type ChatSummary struct {
	Patient       Patient `json:"patient"`
	LastContent   string  `json:"last_content"`
	LastCreatedAt string  `json:"last_created_at"`
}

// CreatePatientRequest is the payload for patient creation.
type CreatePatientRequest struct {
	Name      string `json:"name"`
	Age       *int   `json:"age"`
	Gender    string `json:"gender"`
	Condition string `json:"condition"`
}

// Validate checks required fields.
func (r *CreatePatientRequest) Validate() error {
	if r.Name == "" {
		return errors.New("patients: name is required")
	}
	return nil
}
