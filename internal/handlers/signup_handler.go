package handlers

import (
	"net/http"

	"github.com/vistly/vistly/internal/middleware"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

// SignupCheckResponse tells the signup flow whether to proceed.
type SignupCheckResponse struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// SignupHandler throttles account creation per client IP. It sits in front
// of the actual signup flow, which only proceeds on an allowed answer.
type SignupHandler struct {
	service *services.SocialService
	log     *logger.Logger
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(service *services.SocialService, log *logger.Logger) *SignupHandler {
	return &SignupHandler{service: service, log: log}
}

// Check handles POST /api/v1/signup-check requests.
func (h *SignupHandler) Check(w http.ResponseWriter, r *http.Request) {
	ip := middleware.GetClientIP(r.Context())
	if ip == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "client address unavailable",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	decision, err := h.service.SignupCheck(r.Context(), ip)
	if err != nil {
		h.log.Error("signup check failed", "error", err.Error())
		respondError(w, err)
		return
	}

	if !decision.Allowed {
		ratelimit.WriteDenied(w, decision)
		return
	}

	ratelimit.SetHeaders(w, decision)
	writeJSON(w, http.StatusOK, SignupCheckResponse{
		Allowed:   true,
		Remaining: decision.Remaining(),
	})
}
