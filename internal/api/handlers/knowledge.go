package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumohealth/intake-ai-platform/internal/knowledge"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// KnowledgeHandler manages the reference knowledge base.
type KnowledgeHandler struct {
	service *knowledge.Service
	logger  *logging.Logger
}

func NewKnowledgeHandler(service *knowledge.Service, logger *logging.Logger) *KnowledgeHandler {
	if service == nil {
		panic("handlers: knowledge service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &KnowledgeHandler{service: service, logger: logger}
}

// KnowledgeRequest is the payload for entry creation and update.
type KnowledgeRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Create handles POST /doctor/knowledge requests.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req KnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.service.Create(r.Context(), req.Content, req.Category)
	if err != nil {
		h.logger.Error("failed to create knowledge entry", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// List handles GET /doctor/knowledge requests.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list knowledge entries", "error", err)
		http.Error(w, "failed to list knowledge entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// Update handles PUT /doctor/knowledge/{entryID} requests.
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	var req KnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.Update(r.Context(), id, req.Content); err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update knowledge entry", "error", err, "entry_id", id)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /doctor/knowledge/{entryID} requests.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete knowledge entry", "error", err, "entry_id", id)
		http.Error(w, "failed to delete knowledge entry", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Import handles POST /doctor/knowledge/import requests: one admin entry per
// non-empty line.
func (h *KnowledgeHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	imported, err := h.service.Import(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("failed to import knowledge", "error", err, "imported", imported)
		http.Error(w, "failed to import knowledge", http.StatusInternalServerError)
		return
	}
	h.logger.Info("knowledge imported", "count", imported)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imported": imported})
}
