// Package handlers contains the HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/security"
)

// Default and maximum page sizes for list endpoints.
const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError shapes a service error into an HTTP response. Quota denials
// carry their own response contract; everything else maps to a status and
// error code.
func respondError(w http.ResponseWriter, err error) {
	var denied *ratelimit.DeniedError
	if errors.As(err, &denied) {
		ratelimit.WriteDenied(w, denied.Decision)
		return
	}

	status, resp := mapErrorToResponse(err)
	writeJSON(w, status, resp)
}

// mapErrorToResponse maps service errors to HTTP status codes and error responses.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrPlaceRequired):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "PLACE_REQUIRED",
		}
	case errors.Is(err, models.ErrListRequired):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_REQUIRED",
		}
	case errors.Is(err, models.ErrUserRequired):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "USER_REQUIRED",
		}
	case errors.Is(err, models.ErrInvalidRating):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_RATING",
		}
	case errors.Is(err, models.ErrCommentTooLong):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "COMMENT_TOO_LONG",
		}
	case errors.Is(err, models.ErrSelfFollow):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "SELF_FOLLOW",
		}
	case errors.Is(err, models.ErrVisitNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, models.ErrNotVisitOwner):
		return http.StatusForbidden, ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		}
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_EXISTS",
		}
	case errors.Is(err, security.ErrTooManyPhotos),
		errors.Is(err, security.ErrPhotoURLTooLong),
		errors.Is(err, security.ErrInvalidPhotoURL),
		errors.Is(err, security.ErrUntrustedOrigin),
		errors.Is(err, security.ErrInvalidExtension),
		errors.Is(err, security.ErrSuspiciousPath),
		errors.Is(err, security.ErrEmptyPhotoURL):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_PHOTO",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}

// parseLimit reads the limit query parameter, clamped to the page size
// bounds. Absent or unparsable values get the default.
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}
