// Package repository handles data persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vistly/vistly/internal/database"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/models"
)

// FeedPosition is a keyset position in the feed ordering
// (created_at DESC, id DESC).
type FeedPosition struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// VisitRepository defines the interface for visit persistence operations.
type VisitRepository interface {
	// Create stores a new visit and returns the created entity.
	Create(ctx context.Context, userID uuid.UUID, create *models.VisitCreate) (*models.Visit, error)

	// Update edits a visit owned by userID and returns the updated entity.
	Update(ctx context.Context, id, userID uuid.UUID, update *models.VisitUpdate) (*models.Visit, error)

	// GetByID retrieves a visit by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Visit, error)

	// ListFeed returns visits by users the viewer follows, newest first,
	// starting strictly after the given position. A nil position means the
	// top of the feed.
	ListFeed(ctx context.Context, viewerID uuid.UUID, before *FeedPosition, limit int) ([]models.FeedItem, error)

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// PostgresVisitRepository implements VisitRepository using PostgreSQL.
type PostgresVisitRepository struct {
	pool *database.Pool
}

// NewPostgresVisitRepository creates a new PostgreSQL-backed visit repository.
func NewPostgresVisitRepository(pool *database.Pool) *PostgresVisitRepository {
	return &PostgresVisitRepository{pool: pool}
}

// Create stores a new visit.
func (r *PostgresVisitRepository) Create(ctx context.Context, userID uuid.UUID, create *models.VisitCreate) (*models.Visit, error) {
	query := `
		INSERT INTO visits (id, user_id, place_id, rating, comment, photo_urls, visited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, place_id, rating, comment, photo_urls, visited_at, created_at, updated_at
	`

	start := time.Now()
	var visit models.Visit
	err := r.pool.QueryRow(ctx, query,
		uuid.New(), userID, create.PlaceID, create.Rating,
		models.NormalizeComment(create.Comment), create.PhotoURLs, create.VisitedAt,
	).Scan(
		&visit.ID,
		&visit.UserID,
		&visit.PlaceID,
		&visit.Rating,
		&visit.Comment,
		&visit.PhotoURLs,
		&visit.VisitedAt,
		&visit.CreatedAt,
		&visit.UpdatedAt,
	)
	metrics.RecordDBQuery("visit_create", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to create visit: %w", err)
	}

	return &visit, nil
}

// Update edits a visit. Only the owner may update, and only the provided
// fields change; updated_at always advances so the hourly edit quota counts
// this operation.
func (r *PostgresVisitRepository) Update(ctx context.Context, id, userID uuid.UUID, update *models.VisitUpdate) (*models.Visit, error) {
	set, args := buildVisitUpdate(update)
	args = append(args, id, userID)

	query := fmt.Sprintf(`
		UPDATE visits
		SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING id, user_id, place_id, rating, comment, photo_urls, visited_at, created_at, updated_at
	`, set, len(args)-1, len(args))

	start := time.Now()
	var visit models.Visit
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&visit.ID,
		&visit.UserID,
		&visit.PlaceID,
		&visit.Rating,
		&visit.Comment,
		&visit.PhotoURLs,
		&visit.VisitedAt,
		&visit.CreatedAt,
		&visit.UpdatedAt,
	)
	metrics.RecordDBQuery("visit_update", time.Since(start))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing visit from someone else's visit.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, models.ErrNotVisitOwner
		}
		return nil, models.ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update visit: %w", err)
	}

	return &visit, nil
}

// buildVisitUpdate renders the SET clause for the provided fields.
func buildVisitUpdate(update *models.VisitUpdate) (string, []interface{}) {
	clauses := []string{"updated_at = NOW()"}
	var args []interface{}

	if update.Rating != nil {
		args = append(args, *update.Rating)
		clauses = append(clauses, fmt.Sprintf("rating = $%d", len(args)))
	}
	if update.Comment != nil {
		args = append(args, models.NormalizeComment(*update.Comment))
		clauses = append(clauses, fmt.Sprintf("comment = $%d", len(args)))
	}

	return strings.Join(clauses, ", "), args
}

// GetByID retrieves a visit by its ID.
func (r *PostgresVisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	query := `
		SELECT id, user_id, place_id, rating, comment, photo_urls, visited_at, created_at, updated_at
		FROM visits
		WHERE id = $1
	`

	var visit models.Visit
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&visit.ID,
		&visit.UserID,
		&visit.PlaceID,
		&visit.Rating,
		&visit.Comment,
		&visit.PhotoURLs,
		&visit.VisitedAt,
		&visit.CreatedAt,
		&visit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}

	return &visit, nil
}

// ListFeed returns the viewer's feed page. The (created_at, id) row
// comparison pairs with the idx_visits_feed index, so resuming mid-feed
// never rescans earlier pages.
func (r *PostgresVisitRepository) ListFeed(ctx context.Context, viewerID uuid.UUID, before *FeedPosition, limit int) ([]models.FeedItem, error) {
	query := `
		SELECT v.id, v.user_id, v.place_id, v.rating, v.comment, v.photo_urls,
		       v.visited_at, v.created_at, v.updated_at, p.name_en, COALESCE(p.city, '')
		FROM visits v
		JOIN follows f ON f.followee_id = v.user_id AND f.follower_id = $1
		JOIN places p ON p.id = v.place_id
	`
	args := []interface{}{viewerID}

	if before != nil {
		query += ` WHERE (v.created_at, v.id) < ($2, $3)`
		args = append(args, before.CreatedAt, before.ID)
	}

	query += fmt.Sprintf(` ORDER BY v.created_at DESC, v.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	start := time.Now()
	rows, err := r.pool.Query(ctx, query, args...)
	metrics.RecordDBQuery("feed_list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.PlaceID,
			&item.Rating,
			&item.Comment,
			&item.PhotoURLs,
			&item.VisitedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.PlaceName,
			&item.PlaceCity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// HealthCheck verifies the repository is healthy.
func (r *PostgresVisitRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
