// Package handlers exposes the platform over JSON HTTP endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumohealth/intake-ai-platform/internal/intake"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// PatientsHandler handles the doctor console's patient CRUD and import.
type PatientsHandler struct {
	repo      *patients.Repository
	memories  *memory.Service
	generator *intake.Generator
	seeder    *intake.IntroSeeder
	logger    *logging.Logger
}

func NewPatientsHandler(repo *patients.Repository, memories *memory.Service, generator *intake.Generator, seeder *intake.IntroSeeder, logger *logging.Logger) *PatientsHandler {
	if repo == nil {
		panic("handlers: patients repo required")
	}
	if memories == nil {
		panic("handlers: memory service required")
	}
	if generator == nil {
		panic("handlers: generator required")
	}
	if seeder == nil {
		panic("handlers: intro seeder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{repo: repo, memories: memories, generator: generator, seeder: seeder, logger: logger}
}

// List handles GET /doctor/patients requests.
func (h *PatientsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListWithConsultStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		http.Error(w, "failed to list patients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": list, "count": len(list)})
}

// ChatList handles GET /doctor/patients/chats requests.
func (h *PatientsHandler) ChatList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ChatList(r.Context())
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		http.Error(w, "failed to list chats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": list, "count": len(list)})
}

// Get handles GET /doctor/patients/{patientID} requests.
func (h *PatientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	patient, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get patient", "error", err, "patient_id", id)
		http.Error(w, "failed to get patient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// Create handles POST /doctor/patients requests.
func (h *PatientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patients.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	patient, err := h.repo.Create(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to create patient", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.seeder.EnsureIntro(r.Context(), id); err != nil {
		h.logger.Warn("intro seeding failed", "patient_id", id, "error", err)
	}
	h.logger.Info("patient created", "patient_id", id, "name", patient.Name)
	writeJSON(w, http.StatusCreated, patient)
}

// Update handles PUT /doctor/patients/{patientID} requests.
func (h *PatientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	var req patients.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.repo.Update(r.Context(), id, &req); err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update patient", "error", err, "patient_id", id)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /doctor/patients/{patientID} requests.
func (h *PatientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete patient", "error", err, "patient_id", id)
		http.Error(w, "failed to delete patient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ImportRequest is the payload for bulk record import.
type ImportRequest struct {
	Text string `json:"text"`
}

// Import handles POST /doctor/patients/{patientID}/import requests. The raw
// text is mined for facts and folded into the persona.
func (h *PatientsHandler) Import(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	h.memories.ExtractAndStore(r.Context(), id, memory.SourceImport, req.Text)

	persona, err := h.repo.GetPersona(r.Context(), id)
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to read persona", "error", err, "patient_id", id)
		http.Error(w, "failed to import data", http.StatusInternalServerError)
		return
	}
	updated := h.generator.UpdatePersona(r.Context(), persona, req.Text)
	if updated != persona {
		if err := h.repo.UpdatePersona(r.Context(), id, updated); err != nil {
			h.logger.Warn("persona write failed", "patient_id", id, "error", err)
		}
	}
	h.logger.Info("patient data imported", "patient_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "persona": updated})
}

// Memories handles GET /doctor/patients/{patientID}/memories requests.
func (h *PatientsHandler) Memories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	memories, err := h.memories.List(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list memories", "error", err, "patient_id", id)
		http.Error(w, "failed to list memories", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories, "count": len(memories)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
