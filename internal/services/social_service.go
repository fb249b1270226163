package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/pkg/logger"
)

// SocialService implements follows, list curation, the leaderboard, and
// the signup throttle.
type SocialService struct {
	repo  repository.SocialRepository
	guard *ratelimit.Guard
	log   *logger.Logger
}

// NewSocialService creates a new social service.
func NewSocialService(repo repository.SocialRepository, guard *ratelimit.Guard, log *logger.Logger) *SocialService {
	return &SocialService{
		repo:  repo,
		guard: guard,
		log:   log,
	}
}

// Follow adds a follow edge for followerID, subject to the daily quota.
func (s *SocialService) Follow(ctx context.Context, followerID uuid.UUID, create *models.FollowCreate) (*models.Follow, error) {
	if err := create.Validate(followerID); err != nil {
		return nil, err
	}

	decision, err := s.guard.Check(ctx, followerID.String(), ratelimit.ActionFollowPerDay)
	if err != nil {
		return nil, fmt.Errorf("failed to check follow quota: %w", err)
	}
	if !decision.Allowed {
		return nil, &ratelimit.DeniedError{Decision: decision}
	}

	follow, err := s.repo.CreateFollow(ctx, followerID, create.FolloweeID)
	if err != nil {
		return nil, err
	}

	s.log.Info("follow created",
		"follower_id", followerID.String(),
		"followee_id", create.FolloweeID.String(),
	)

	return follow, nil
}

// AddListItem saves a place to a list for userID, subject to the daily quota.
func (s *SocialService) AddListItem(ctx context.Context, userID, listID uuid.UUID, create *models.ListItemCreate) (*models.ListItem, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	if listID == uuid.Nil {
		return nil, models.ErrListRequired
	}

	decision, err := s.guard.Check(ctx, userID.String(), ratelimit.ActionListAddPerDay)
	if err != nil {
		return nil, fmt.Errorf("failed to check list quota: %w", err)
	}
	if !decision.Allowed {
		return nil, &ratelimit.DeniedError{Decision: decision}
	}

	return s.repo.AddListItem(ctx, listID, create.PlaceID, userID)
}

// SignupCheck decides whether another signup from ipAddress may proceed.
// Allowed checks record an attempt, so they count against the next hour.
// The decision is returned either way so the handler can set quota headers.
func (s *SocialService) SignupCheck(ctx context.Context, ipAddress string) (*ratelimit.Decision, error) {
	decision, err := s.guard.Check(ctx, ipAddress, ratelimit.ActionSignupPerIPPerHour)
	if err != nil {
		return nil, fmt.Errorf("failed to check signup quota: %w", err)
	}

	if decision.Allowed {
		if err := s.repo.RecordSignupAttempt(ctx, ipAddress); err != nil {
			// The signup still proceeds; the attempt just goes uncounted.
			s.log.Warn("failed to record signup attempt",
				"ip", ipAddress,
				"error", err.Error(),
			)
		}
	}

	return decision, nil
}

// Leaderboard returns a page of a city leaderboard.
func (s *SocialService) Leaderboard(ctx context.Context, city string, after *repository.ScorePosition, limit int) ([]models.LeaderboardEntry, error) {
	return s.repo.ListLeaderboard(ctx, city, after, limit)
}
