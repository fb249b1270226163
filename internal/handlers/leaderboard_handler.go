package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/cursor"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/middleware"
	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

// LeaderboardResponse is one page of a city leaderboard.
type LeaderboardResponse struct {
	City       string                    `json:"city"`
	Entries    []models.LeaderboardEntry `json:"entries"`
	NextCursor string                    `json:"next_cursor,omitempty"`
	HasMore    bool                      `json:"has_more"`
}

// LeaderboardHandler serves paginated city leaderboards.
type LeaderboardHandler struct {
	service *services.SocialService
	codec   *cursor.Codec
	log     *logger.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler. The codec must
// use the ScoreUUID schema.
func NewLeaderboardHandler(service *services.SocialService, codec *cursor.Codec, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{service: service, codec: codec, log: log}
}

// List handles GET /api/v1/leaderboard requests.
func (h *LeaderboardHandler) List(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "city is required",
			Code:  "CITY_REQUIRED",
		})
		return
	}
	limit := parseLimit(r)

	var after *repository.ScorePosition
	if token := r.URL.Query().Get("cursor"); token != "" {
		pos, ok := h.decodeCursor(r, token)
		if !ok {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "invalid cursor",
				Code:  "INVALID_CURSOR",
			})
			return
		}
		after = pos
	}

	entries, err := h.service.Leaderboard(r.Context(), city, after, limit+1)
	if err != nil {
		h.log.Error("leaderboard query failed", "error", err.Error())
		respondError(w, err)
		return
	}

	resp := LeaderboardResponse{City: city, Entries: entries}
	if len(entries) > limit {
		resp.Entries = entries[:limit]
		resp.HasMore = true

		last := resp.Entries[len(resp.Entries)-1]
		next, err := h.codec.Encode(strconv.FormatInt(last.Points, 10), last.UserID.String())
		if err != nil {
			h.log.Error("leaderboard cursor encode failed", "error", err.Error())
			respondError(w, err)
			return
		}
		resp.NextCursor = next
	}
	if resp.Entries == nil {
		resp.Entries = []models.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeCursor verifies and parses a leaderboard cursor token.
func (h *LeaderboardHandler) decodeCursor(r *http.Request, token string) (*repository.ScorePosition, bool) {
	values, err := h.codec.Decode(token)
	if err != nil {
		h.rejectCursor(r, err)
		return nil, false
	}

	points, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		h.rejectCursor(r, cursor.ErrInvalidField)
		return nil, false
	}
	userID, err := uuid.Parse(values[1])
	if err != nil {
		h.rejectCursor(r, cursor.ErrInvalidField)
		return nil, false
	}

	return &repository.ScorePosition{Points: points, UserID: userID}, true
}

func (h *LeaderboardHandler) rejectCursor(r *http.Request, err error) {
	reason := "format"
	switch {
	case errors.Is(err, cursor.ErrInvalidSignature):
		reason = "signature"
	case errors.Is(err, cursor.ErrInvalidField):
		reason = "field"
	}

	metrics.RecordCursorRejected(reason)
	h.log.Warn("pagination cursor rejected",
		"reason", reason,
		"path", r.URL.Path,
		"client_ip", middleware.GetClientIP(r.Context()),
	)
}
