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

// SocialHandler handles follows and list curation.
type SocialHandler struct {
	service *services.SocialService
	log     *logger.Logger
}

// NewSocialHandler creates a new SocialHandler.
func NewSocialHandler(service *services.SocialService, log *logger.Logger) *SocialHandler {
	return &SocialHandler{service: service, log: log}
}

// Follow handles POST /api/v1/follows requests.
func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	var create models.FollowCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	follow, err := h.service.Follow(r.Context(), middleware.GetUserID(r.Context()), &create)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, follow)
}

// AddListItem handles POST /api/v1/lists/{id}/items requests.
func (h *SocialHandler) AddListItem(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid list id",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var create models.ListItemCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	item, err := h.service.AddListItem(r.Context(), middleware.GetUserID(r.Context()), listID, &create)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}
