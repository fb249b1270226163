// Package services contains the application business logic.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/security"
	"github.com/vistly/vistly/pkg/logger"
)

// VisitService implements visit creation, editing, and the feed.
type VisitService struct {
	repo   repository.VisitRepository
	guard  *ratelimit.Guard
	photos *security.PhotoValidator
	log    *logger.Logger
}

// NewVisitService creates a new visit service.
func NewVisitService(repo repository.VisitRepository, guard *ratelimit.Guard, photos *security.PhotoValidator, log *logger.Logger) *VisitService {
	return &VisitService{
		repo:   repo,
		guard:  guard,
		photos: photos,
		log:    log,
	}
}

// Create records a new visit for userID. The daily quota is checked before
// the insert; the inserted row itself is what future checks count.
func (s *VisitService) Create(ctx context.Context, userID uuid.UUID, create *models.VisitCreate) (*models.Visit, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	if err := s.photos.ValidateAll(create.PhotoURLs); err != nil {
		return nil, err
	}

	decision, err := s.guard.Check(ctx, userID.String(), ratelimit.ActionVisitsPerDay)
	if err != nil {
		return nil, fmt.Errorf("failed to check visit quota: %w", err)
	}
	if !decision.Allowed {
		return nil, &ratelimit.DeniedError{Decision: decision}
	}

	visit, err := s.repo.Create(ctx, userID, create)
	if err != nil {
		return nil, err
	}

	metrics.RecordVisitCreated()
	s.log.Info("visit created",
		"visit_id", visit.ID.String(),
		"user_id", userID.String(),
		"place_id", visit.PlaceID.String(),
	)

	return visit, nil
}

// Update edits a visit owned by userID, subject to the hourly edit quota.
// An update that changes nothing is returned as-is without consuming quota.
func (s *VisitService) Update(ctx context.Context, id, userID uuid.UUID, update *models.VisitUpdate) (*models.Visit, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	if update.Empty() {
		visit, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if visit.UserID != userID {
			return nil, models.ErrNotVisitOwner
		}
		return visit, nil
	}

	decision, err := s.guard.Check(ctx, userID.String(), ratelimit.ActionVisitsUpdatePerHour)
	if err != nil {
		return nil, fmt.Errorf("failed to check edit quota: %w", err)
	}
	if !decision.Allowed {
		return nil, &ratelimit.DeniedError{Decision: decision}
	}

	return s.repo.Update(ctx, id, userID, update)
}

// Feed returns a page of the viewer's feed.
func (s *VisitService) Feed(ctx context.Context, viewerID uuid.UUID, before *repository.FeedPosition, limit int) ([]models.FeedItem, error) {
	return s.repo.ListFeed(ctx, viewerID, before, limit)
}
