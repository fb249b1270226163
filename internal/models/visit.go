// Package models defines the domain types shared across layers.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrVisitNotFound indicates the requested visit does not exist.
	ErrVisitNotFound = errors.New("visit not found")
	// ErrNotVisitOwner indicates the caller does not own the visit.
	ErrNotVisitOwner = errors.New("visit belongs to another user")
	// ErrInvalidRating indicates a rating outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrCommentTooLong indicates a comment over the length cap.
	ErrCommentTooLong = errors.New("comment exceeds maximum length")
	// ErrPlaceRequired indicates a missing place reference.
	ErrPlaceRequired = errors.New("place_id is required")
)

// MaxCommentLength caps visit comments.
const MaxCommentLength = 2000

// Visit is a check-in at a place.
type Visit struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PlaceID   uuid.UUID `json:"place_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	PhotoURLs []string  `json:"photo_urls,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VisitCreate is the payload for creating a visit.
type VisitCreate struct {
	PlaceID   uuid.UUID `json:"place_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	PhotoURLs []string  `json:"photo_urls"`
	VisitedAt time.Time `json:"visited_at"`
}

// Validate checks the payload before it reaches the database.
func (v *VisitCreate) Validate() error {
	if v.PlaceID == uuid.Nil {
		return ErrPlaceRequired
	}
	if v.Rating < 1 || v.Rating > 5 {
		return ErrInvalidRating
	}
	if len(v.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// VisitUpdate is the payload for editing a visit. Nil fields are left
// unchanged.
type VisitUpdate struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Validate checks the provided fields.
func (v *VisitUpdate) Validate() error {
	if v.Rating != nil && (*v.Rating < 1 || *v.Rating > 5) {
		return ErrInvalidRating
	}
	if v.Comment != nil && len(*v.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (v *VisitUpdate) Empty() bool {
	return v.Rating == nil && v.Comment == nil
}

// FeedItem is one visit in a user's feed, joined with place details.
type FeedItem struct {
	Visit
	PlaceName string `json:"place_name"`
	PlaceCity string `json:"place_city,omitempty"`
}

// NormalizeComment trims surrounding whitespace.
func NormalizeComment(comment string) string {
	return strings.TrimSpace(comment)
}
