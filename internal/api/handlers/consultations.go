package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumohealth/intake-ai-platform/internal/consultation"
	"github.com/lumohealth/intake-ai-platform/internal/observability/metrics"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// ConsultationsHandler drives the consultation lifecycle over HTTP.
type ConsultationsHandler struct {
	service *consultation.Service
	metrics *metrics.IntakeMetrics
	logger  *logging.Logger
}

func NewConsultationsHandler(service *consultation.Service, m *metrics.IntakeMetrics, logger *logging.Logger) *ConsultationsHandler {
	if service == nil {
		panic("handlers: consultation service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConsultationsHandler{service: service, metrics: m, logger: logger}
}

// Pay handles GET /patient/pay/{token} requests. Clicking the demo link is
// the payment; the patient lands back on their chat either way.
func (h *ConsultationsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	result, err := h.service.Redeem(r.Context(), token)
	if err != nil {
		h.logger.Error("failed to redeem pay token", "error", err)
	}
	if result.Outcome == consultation.RedeemPaid {
		h.metrics.ObserveConsultTransition("paid")
	}
	if !result.Ok() {
		http.Redirect(w, r, "/patient?pay=failed", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/patient/"+result.PatientID, http.StatusFound)
}

// Request handles POST /doctor/patients/{patientID}/consultations requests:
// staff-initiated consultation setup.
func (h *ConsultationsHandler) Request(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	c, err := h.service.Request(r.Context(), patientID, consultation.TriggerManual)
	if err != nil {
		h.logger.Error("failed to request consultation", "error", err, "patient_id", patientID)
		http.Error(w, "failed to request consultation", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveConsultTransition("requested")
	writeJSON(w, http.StatusCreated, map[string]any{
		"consultation": c,
		"pay_link":     consultation.PayLink(c.PayToken),
	})
}

// End handles POST /doctor/consultations/{consultationID}/end requests.
func (h *ConsultationsHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "consultationID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid consultation id", http.StatusBadRequest)
		return
	}
	if err := h.service.End(r.Context(), id); err != nil {
		if errors.Is(err, consultation.ErrNotFound) {
			http.Error(w, "consultation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to end consultation", "error", err, "consultation_id", id)
		http.Error(w, "failed to end consultation", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveConsultTransition("ended")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// PaidList handles GET /doctor/consultations requests: the doctor worklist.
func (h *ConsultationsHandler) PaidList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.PaidList(r.Context())
	if err != nil {
		h.logger.Error("failed to list consultations", "error", err)
		http.Error(w, "failed to list consultations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": list, "count": len(list)})
}
