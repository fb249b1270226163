package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/cursor"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/middleware"
	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

// FeedResponse is one page of the feed.
type FeedResponse struct {
	Items      []models.FeedItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// FeedHandler serves the paginated home feed.
type FeedHandler struct {
	service *services.VisitService
	codec   *cursor.Codec
	log     *logger.Logger
}

// NewFeedHandler creates a new FeedHandler. The codec must use the
// TimeUUID schema.
func NewFeedHandler(service *services.VisitService, codec *cursor.Codec, log *logger.Logger) *FeedHandler {
	return &FeedHandler{service: service, codec: codec, log: log}
}

// List handles GET /api/v1/feed requests.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	limit := parseLimit(r)

	var before *repository.FeedPosition
	if token := r.URL.Query().Get("cursor"); token != "" {
		pos, ok := h.decodeCursor(r, token)
		if !ok {
			// Deliberately vague: a tampered token and a garbled one get
			// the same answer.
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "invalid cursor",
				Code:  "INVALID_CURSOR",
			})
			return
		}
		before = pos
	}

	// Fetch one extra row to learn whether another page exists.
	items, err := h.service.Feed(r.Context(), viewerID, before, limit+1)
	if err != nil {
		h.log.Error("feed query failed", "error", err.Error())
		respondError(w, err)
		return
	}

	resp := FeedResponse{Items: items}
	if len(items) > limit {
		resp.Items = items[:limit]
		resp.HasMore = true

		last := resp.Items[len(resp.Items)-1]
		next, err := h.codec.Encode(cursor.FormatTime(last.CreatedAt), last.ID.String())
		if err != nil {
			h.log.Error("feed cursor encode failed", "error", err.Error())
			respondError(w, err)
			return
		}
		resp.NextCursor = next
	}
	if resp.Items == nil {
		resp.Items = []models.FeedItem{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeCursor verifies and parses a feed cursor token.
func (h *FeedHandler) decodeCursor(r *http.Request, token string) (*repository.FeedPosition, bool) {
	values, err := h.codec.Decode(token)
	if err != nil {
		h.rejectCursor(r, err)
		return nil, false
	}

	createdAt, err := cursor.ParseTime(values[0])
	if err != nil {
		h.rejectCursor(r, cursor.ErrInvalidField)
		return nil, false
	}
	id, err := uuid.Parse(values[1])
	if err != nil {
		h.rejectCursor(r, cursor.ErrInvalidField)
		return nil, false
	}

	return &repository.FeedPosition{CreatedAt: createdAt, ID: id}, true
}

func (h *FeedHandler) rejectCursor(r *http.Request, err error) {
	reason := "format"
	switch {
	case errors.Is(err, cursor.ErrInvalidSignature):
		// The interesting case: a well-formed token that fails
		// verification was altered or signed with a different key.
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
