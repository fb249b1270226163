package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSelfFollow indicates a user trying to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrUserRequired indicates a missing user reference.
	ErrUserRequired = errors.New("user_id is required")
	// ErrListRequired indicates a missing list reference.
	ErrListRequired = errors.New("list_id is required")
	// ErrAlreadyExists indicates a duplicate row (follow or list item).
	ErrAlreadyExists = errors.New("already exists")
)

// Follow is an edge in the social graph.
type Follow struct {
	FollowerID uuid.UUID `json:"follower_id"`
	FolloweeID uuid.UUID `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowCreate is the payload for following a user.
type FollowCreate struct {
	FolloweeID uuid.UUID `json:"followee_id"`
}

// Validate checks the payload against the acting user.
func (f *FollowCreate) Validate(followerID uuid.UUID) error {
	if f.FolloweeID == uuid.Nil {
		return ErrUserRequired
	}
	if f.FolloweeID == followerID {
		return ErrSelfFollow
	}
	return nil
}

// ListItem is a place saved to a user list.
type ListItem struct {
	ListID    uuid.UUID `json:"list_id"`
	PlaceID   uuid.UUID `json:"place_id"`
	AddedBy   uuid.UUID `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ListItemCreate is the payload for adding a place to a list.
type ListItemCreate struct {
	PlaceID uuid.UUID `json:"place_id"`
}

// Validate checks the payload.
func (l *ListItemCreate) Validate() error {
	if l.PlaceID == uuid.Nil {
		return ErrPlaceRequired
	}
	return nil
}

// LeaderboardEntry is one row of a city leaderboard, ordered by points
// descending with user_id as the tiebreaker.
type LeaderboardEntry struct {
	UserID uuid.UUID `json:"user_id"`
	Handle string    `json:"handle"`
	City   string    `json:"city"`
	Points int64     `json:"points"`
}
