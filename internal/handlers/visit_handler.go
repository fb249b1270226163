package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/middleware"
	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

// VisitHandler handles visit creation and editing.
type VisitHandler struct {
	service *services.VisitService
	log     *logger.Logger
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(service *services.VisitService, log *logger.Logger) *VisitHandler {
	return &VisitHandler{service: service, log: log}
}

// Create handles POST /api/v1/visits requests.
func (h *VisitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var create models.VisitCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	visit, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &create)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, visit)
}

// Update handles PATCH /api/v1/visits/{id} requests.
func (h *VisitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid visit id",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var update models.VisitUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	visit, err := h.service.Update(r.Context(), id, middleware.GetUserID(r.Context()), &update)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, visit)
}
