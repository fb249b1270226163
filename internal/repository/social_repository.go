package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/database"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/models"
)

// ScorePosition is a keyset position in the leaderboard ordering
// (points DESC, user_id ASC).
type ScorePosition struct {
	Points int64
	UserID uuid.UUID
}

// SocialRepository defines the interface for social graph persistence.
type SocialRepository interface {
	// CreateFollow adds an edge to the social graph.
	CreateFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*models.Follow, error)

	// AddListItem saves a place to a list.
	AddListItem(ctx context.Context, listID, placeID, addedBy uuid.UUID) (*models.ListItem, error)

	// RecordSignupAttempt logs a signup attempt for per-IP throttling.
	RecordSignupAttempt(ctx context.Context, ipAddress string) error

	// ListLeaderboard returns a city leaderboard page starting strictly
	// after the given position. A nil position means the top.
	ListLeaderboard(ctx context.Context, city string, after *ScorePosition, limit int) ([]models.LeaderboardEntry, error)

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// PostgresSocialRepository implements SocialRepository using PostgreSQL.
type PostgresSocialRepository struct {
	pool *database.Pool
}

// NewPostgresSocialRepository creates a new PostgreSQL-backed social repository.
func NewPostgresSocialRepository(pool *database.Pool) *PostgresSocialRepository {
	return &PostgresSocialRepository{pool: pool}
}

// CreateFollow adds a follow edge. Duplicate edges return ErrAlreadyExists.
func (r *PostgresSocialRepository) CreateFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*models.Follow, error) {
	query := `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
		RETURNING follower_id, followee_id, created_at
	`

	start := time.Now()
	var follow models.Follow
	err := r.pool.QueryRow(ctx, query, followerID, followeeID).Scan(
		&follow.FollowerID,
		&follow.FolloweeID,
		&follow.CreatedAt,
	)
	metrics.RecordDBQuery("follow_create", time.Since(start))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create follow: %w", err)
	}

	return &follow, nil
}

// AddListItem saves a place to a list. Duplicates return ErrAlreadyExists.
func (r *PostgresSocialRepository) AddListItem(ctx context.Context, listID, placeID, addedBy uuid.UUID) (*models.ListItem, error) {
	query := `
		INSERT INTO list_items (list_id, place_id, added_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (list_id, place_id) DO NOTHING
		RETURNING list_id, place_id, added_by, created_at
	`

	start := time.Now()
	var item models.ListItem
	err := r.pool.QueryRow(ctx, query, listID, placeID, addedBy).Scan(
		&item.ListID,
		&item.PlaceID,
		&item.AddedBy,
		&item.CreatedAt,
	)
	metrics.RecordDBQuery("list_item_add", time.Since(start))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to add list item: %w", err)
	}

	return &item, nil
}

// RecordSignupAttempt logs a signup attempt so the per-IP hourly quota can
// count it.
func (r *PostgresSocialRepository) RecordSignupAttempt(ctx context.Context, ipAddress string) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO signup_throttle (ip_address) VALUES ($1)`, ipAddress)
	metrics.RecordDBQuery("signup_record", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to record signup attempt: %w", err)
	}
	return nil
}

// ListLeaderboard returns a leaderboard page. The explicit two-branch
// comparison keeps the scan on idx_city_scores_rank, whose points column is
// descending; a row comparison would not match that index.
func (r *PostgresSocialRepository) ListLeaderboard(ctx context.Context, city string, after *ScorePosition, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT user_id, handle, city, points
		FROM city_scores
		WHERE city = $1
	`
	args := []interface{}{city}

	if after != nil {
		query += ` AND (points < $2 OR (points = $2 AND user_id > $3))`
		args = append(args, after.Points, after.UserID)
	}

	query += fmt.Sprintf(` ORDER BY points DESC, user_id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.RecordDBQuery("leaderboard_list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Handle, &e.City, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// HealthCheck verifies the repository is healthy.
func (r *PostgresSocialRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
