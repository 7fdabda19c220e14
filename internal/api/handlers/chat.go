package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/internal/copilot"
	"github.com/lumohealth/intake-ai-platform/internal/intake"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// ChatHandler serves the patient conversation and the staff-side message
// endpoints.
type ChatHandler struct {
	controller *intake.Controller
	store      *chat.Store
	seeder     *intake.IntroSeeder
	patients   *patients.Repository
	memories   *memory.Service
	copilot    *copilot.Service
	logger     *logging.Logger
}

func NewChatHandler(controller *intake.Controller, store *chat.Store, seeder *intake.IntroSeeder, patientsRepo *patients.Repository, memories *memory.Service, copilotSvc *copilot.Service, logger *logging.Logger) *ChatHandler {
	if controller == nil {
		panic("handlers: controller required")
	}
	if store == nil {
		panic("handlers: chat store required")
	}
	if seeder == nil {
		panic("handlers: intro seeder required")
	}
	if patientsRepo == nil {
		panic("handlers: patients repo required")
	}
	if memories == nil {
		panic("handlers: memory service required")
	}
	if copilotSvc == nil {
		panic("handlers: copilot service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{
		controller: controller,
		store:      store,
		seeder:     seeder,
		patients:   patientsRepo,
		memories:   memories,
		copilot:    copilotSvc,
		logger:     logger,
	}
}

// PostMessageRequest is an inbound patient chat message.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// PostMessage handles POST /patient/{patientID}/messages requests.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	result := h.controller.ProcessMessage(r.Context(), patientID, req.Message)
	writeJSON(w, http.StatusOK, result)
}

// History handles GET /patient/{patientID}/messages requests. The opener is
// seeded lazily so a brand-new conversation never renders empty.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	exists, err := h.patients.Exists(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to check patient", "error", err, "patient_id", patientID)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if !exists {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []chat.Message{}, "count": 0})
		return
	}

	if err := h.seeder.EnsureIntro(r.Context(), patientID); err != nil {
		h.logger.Warn("intro seeding failed", "patient_id", patientID, "error", err)
	}

	messages, err := h.store.History(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "patient_id", patientID)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "count": len(messages)})
}

// StaffMessageRequest is a message sent from the doctor console. Speaker
// "doctor" is the physician in a paid consultation; anything else is the
// assistant.
type StaffMessageRequest struct {
	Content string `json:"content"`
	Speaker string `json:"speaker"`
}

// SendStaffMessage handles POST /doctor/patients/{patientID}/messages
// requests. Staff messages feed the fact store like automated ones do.
func (h *ChatHandler) SendStaffMessage(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	var req StaffMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	role := chat.RoleAssistant
	source := memory.SourceAI
	if req.Speaker == copilot.SpeakerDoctor {
		role = chat.RoleDoctor
		source = memory.SourceDoctor
	}

	id, err := h.store.Insert(r.Context(), patientID, role, req.Content)
	if err != nil {
		h.logger.Error("failed to send staff message", "error", err, "patient_id", patientID)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		return
	}
	if id == 0 {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}
	h.memories.ExtractAndStore(r.Context(), patientID, source, req.Content)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// Analysis handles GET /doctor/patients/{patientID}/messages/{messageID}/analysis
// requests: what the retrieval layer associates with one stored message.
func (h *ChatHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}
	analysis, err := h.copilot.AnalyzeMessage(r.Context(), messageID, patientID)
	if err != nil {
		h.logger.Error("failed to analyze message", "error", err, "patient_id", patientID, "message_id", messageID)
		http.Error(w, "failed to analyze message", http.StatusInternalServerError)
		return
	}
	if analysis == nil {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
