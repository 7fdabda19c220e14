package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumohealth/intake-ai-platform/internal/copilot"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// CopilotHandler serves reply drafts for the doctor console.
type CopilotHandler struct {
	service *copilot.Service
	logger  *logging.Logger
}

func NewCopilotHandler(service *copilot.Service, logger *logging.Logger) *CopilotHandler {
	if service == nil {
		panic("handlers: copilot service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CopilotHandler{service: service, logger: logger}
}

// Suggest handles GET /doctor/patients/{patientID}/copilot requests. The
// speaker query param selects whose voice the draft is written in.
func (h *CopilotHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	speaker := r.URL.Query().Get("speaker")

	draft, err := h.service.Suggest(r.Context(), patientID, speaker)
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to draft suggestion", "error", err, "patient_id", patientID)
		http.Error(w, "failed to draft suggestion", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestion": draft})
}
