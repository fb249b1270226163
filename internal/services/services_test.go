package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/security"
	"github.com/vistly/vistly/pkg/logger"
)

// fakeVisitRepo is an in-memory VisitRepository.
type fakeVisitRepo struct {
	visits    map[uuid.UUID]*models.Visit
	createErr error
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: make(map[uuid.UUID]*models.Visit)}
}

func (f *fakeVisitRepo) Create(ctx context.Context, userID uuid.UUID, create *models.VisitCreate) (*models.Visit, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	v := &models.Visit{
		ID:        uuid.New(),
		UserID:    userID,
		PlaceID:   create.PlaceID,
		Rating:    create.Rating,
		Comment:   models.NormalizeComment(create.Comment),
		PhotoURLs: create.PhotoURLs,
		VisitedAt: create.VisitedAt,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.visits[v.ID] = v
	return v, nil
}

func (f *fakeVisitRepo) Update(ctx context.Context, id, userID uuid.UUID, update *models.VisitUpdate) (*models.Visit, error) {
	v, ok := f.visits[id]
	if !ok {
		return nil, models.ErrVisitNotFound
	}
	if v.UserID != userID {
		return nil, models.ErrNotVisitOwner
	}
	if update.Rating != nil {
		v.Rating = *update.Rating
	}
	if update.Comment != nil {
		v.Comment = *update.Comment
	}
	v.UpdatedAt = time.Now()
	return v, nil
}

func (f *fakeVisitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	v, ok := f.visits[id]
	if !ok {
		return nil, models.ErrVisitNotFound
	}
	return v, nil
}

func (f *fakeVisitRepo) ListFeed(ctx context.Context, viewerID uuid.UUID, before *repository.FeedPosition, limit int) ([]models.FeedItem, error) {
	return nil, nil
}

func (f *fakeVisitRepo) HealthCheck(ctx context.Context) error { return nil }

// fakeSocialRepo is an in-memory SocialRepository.
type fakeSocialRepo struct {
	follows   map[string]bool
	listItems map[string]bool
	signups   []string
	signupErr error
}

func newFakeSocialRepo() *fakeSocialRepo {
	return &fakeSocialRepo{
		follows:   make(map[string]bool),
		listItems: make(map[string]bool),
	}
}

func (f *fakeSocialRepo) CreateFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*models.Follow, error) {
	key := followerID.String() + "/" + followeeID.String()
	if f.follows[key] {
		return nil, models.ErrAlreadyExists
	}
	f.follows[key] = true
	return &models.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now()}, nil
}

func (f *fakeSocialRepo) AddListItem(ctx context.Context, listID, placeID, addedBy uuid.UUID) (*models.ListItem, error) {
	key := listID.String() + "/" + placeID.String()
	if f.listItems[key] {
		return nil, models.ErrAlreadyExists
	}
	f.listItems[key] = true
	return &models.ListItem{ListID: listID, PlaceID: placeID, AddedBy: addedBy, CreatedAt: time.Now()}, nil
}

func (f *fakeSocialRepo) RecordSignupAttempt(ctx context.Context, ipAddress string) error {
	if f.signupErr != nil {
		return f.signupErr
	}
	f.signups = append(f.signups, ipAddress)
	return nil
}

func (f *fakeSocialRepo) ListLeaderboard(ctx context.Context, city string, after *repository.ScorePosition, limit int) ([]models.LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeSocialRepo) HealthCheck(ctx context.Context) error { return nil }

// guardWith returns a guard whose store reports a fixed count for every
// subject and action.
func guardWith(count int) *ratelimit.Guard {
	return ratelimit.NewGuard(
		&countingStore{count: count},
		ratelimit.StaticSettings{Value: ratelimit.Settings{Enabled: true}},
		logger.Nop(),
	)
}

type countingStore struct {
	count int
}

func (s *countingStore) CountSince(ctx context.Context, p ratelimit.Policy, subject string, since time.Time) (int, error) {
	return s.count, nil
}

func (s *countingStore) OldestSince(ctx context.Context, p ratelimit.Policy, subject string, since time.Time) (time.Time, bool, error) {
	return time.Now().Add(-time.Hour), true, nil
}

func validVisit() *models.VisitCreate {
	return &models.VisitCreate{
		PlaceID:   uuid.New(),
		Rating:    5,
		Comment:   "worth the queue",
		VisitedAt: time.Now(),
	}
}

func newVisitService(repo repository.VisitRepository, guard *ratelimit.Guard) *VisitService {
	return NewVisitService(repo, guard, security.NewPhotoValidator(security.DefaultPhotoConfig()), logger.Nop())
}

func TestVisitServiceCreate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("creates under quota", func(t *testing.T) {
		guard := guardWith(0)
		svc := newVisitService(newFakeVisitRepo(), guard)

		visit, err := svc.Create(ctx, userID, validVisit())
		require.NoError(t, err)
		assert.Equal(t, userID, visit.UserID)
	})

	t.Run("denies at quota with a typed error", func(t *testing.T) {
		guard := guardWith(30)
		repo := newFakeVisitRepo()
		svc := newVisitService(repo, guard)

		_, err := svc.Create(ctx, userID, validVisit())

		var denied *ratelimit.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, ratelimit.ActionVisitsPerDay, denied.Decision.Action)
		assert.Empty(t, repo.visits, "denied create must not insert")
	})

	t.Run("validation runs before the quota check", func(t *testing.T) {
		guard := guardWith(30)
		svc := newVisitService(newFakeVisitRepo(), guard)

		create := validVisit()
		create.Rating = 9
		_, err := svc.Create(ctx, userID, create)
		assert.ErrorIs(t, err, models.ErrInvalidRating)
	})

	t.Run("rejects untrusted photo URLs", func(t *testing.T) {
		guard := guardWith(0)
		svc := newVisitService(newFakeVisitRepo(), guard)

		create := validVisit()
		create.PhotoURLs = []string{"https://evil.example.com/x.jpg"}
		_, err := svc.Create(ctx, userID, create)
		assert.ErrorIs(t, err, security.ErrUntrustedOrigin)
	})
}

func TestVisitServiceUpdate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	intPtr := func(n int) *int { return &n }

	seed := func(t *testing.T, repo *fakeVisitRepo) *models.Visit {
		t.Helper()
		v, err := repo.Create(ctx, userID, validVisit())
		require.NoError(t, err)
		return v
	}

	t.Run("updates under quota", func(t *testing.T) {
		guard := guardWith(0)
		repo := newFakeVisitRepo()
		svc := newVisitService(repo, guard)
		visit := seed(t, repo)

		updated, err := svc.Update(ctx, visit.ID, userID, &models.VisitUpdate{Rating: intPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Rating)
	})

	t.Run("denies at edit quota", func(t *testing.T) {
		guard := guardWith(60)
		repo := newFakeVisitRepo()
		svc := newVisitService(repo, guard)
		visit := seed(t, repo)

		_, err := svc.Update(ctx, visit.ID, userID, &models.VisitUpdate{Rating: intPtr(2)})

		var denied *ratelimit.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, ratelimit.ActionVisitsUpdatePerHour, denied.Decision.Action)
	})

	t.Run("empty update skips the quota", func(t *testing.T) {
		guard := guardWith(60)
		repo := newFakeVisitRepo()
		svc := newVisitService(repo, guard)
		visit := seed(t, repo)

		got, err := svc.Update(ctx, visit.ID, userID, &models.VisitUpdate{})
		require.NoError(t, err)
		assert.Equal(t, visit.ID, got.ID)
	})

	t.Run("other users cannot edit", func(t *testing.T) {
		guard := guardWith(0)
		repo := newFakeVisitRepo()
		svc := newVisitService(repo, guard)
		visit := seed(t, repo)

		_, err := svc.Update(ctx, visit.ID, uuid.New(), &models.VisitUpdate{Rating: intPtr(2)})
		assert.ErrorIs(t, err, models.ErrNotVisitOwner)
	})
}

func TestSocialServiceFollow(t *testing.T) {
	ctx := context.Background()
	me := uuid.New()

	t.Run("follows under quota", func(t *testing.T) {
		guard := guardWith(0)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		follow, err := svc.Follow(ctx, me, &models.FollowCreate{FolloweeID: uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, me, follow.FollowerID)
	})

	t.Run("self follow is rejected before the quota check", func(t *testing.T) {
		guard := guardWith(200)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		_, err := svc.Follow(ctx, me, &models.FollowCreate{FolloweeID: me})
		assert.ErrorIs(t, err, models.ErrSelfFollow)
	})

	t.Run("denies at quota", func(t *testing.T) {
		guard := guardWith(200)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		_, err := svc.Follow(ctx, me, &models.FollowCreate{FolloweeID: uuid.New()})

		var denied *ratelimit.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, ratelimit.ActionFollowPerDay, denied.Decision.Action)
	})

	t.Run("duplicate follow surfaces ErrAlreadyExists", func(t *testing.T) {
		guard := guardWith(0)
		repo := newFakeSocialRepo()
		svc := NewSocialService(repo, guard, logger.Nop())
		other := uuid.New()

		_, err := svc.Follow(ctx, me, &models.FollowCreate{FolloweeID: other})
		require.NoError(t, err)
		_, err = svc.Follow(ctx, me, &models.FollowCreate{FolloweeID: other})
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})
}

func TestSocialServiceAddListItem(t *testing.T) {
	ctx := context.Background()
	me := uuid.New()
	listID := uuid.New()

	t.Run("adds under quota", func(t *testing.T) {
		guard := guardWith(0)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		item, err := svc.AddListItem(ctx, me, listID, &models.ListItemCreate{PlaceID: uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, me, item.AddedBy)
	})

	t.Run("denies at quota", func(t *testing.T) {
		guard := guardWith(100)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		_, err := svc.AddListItem(ctx, me, listID, &models.ListItemCreate{PlaceID: uuid.New()})

		var denied *ratelimit.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, ratelimit.ActionListAddPerDay, denied.Decision.Action)
	})

	t.Run("missing list", func(t *testing.T) {
		guard := guardWith(0)
		svc := NewSocialService(newFakeSocialRepo(), guard, logger.Nop())

		_, err := svc.AddListItem(ctx, me, uuid.Nil, &models.ListItemCreate{PlaceID: uuid.New()})
		assert.ErrorIs(t, err, models.ErrListRequired)
	})
}

func TestSocialServiceSignupCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed check records an attempt", func(t *testing.T) {
		guard := guardWith(0)
		repo := newFakeSocialRepo()
		svc := NewSocialService(repo, guard, logger.Nop())

		decision, err := svc.SignupCheck(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, []string{"203.0.113.7"}, repo.signups)
	})

	t.Run("denied check records nothing", func(t *testing.T) {
		guard := guardWith(10)
		repo := newFakeSocialRepo()
		svc := NewSocialService(repo, guard, logger.Nop())

		decision, err := svc.SignupCheck(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Empty(t, repo.signups)
	})

	t.Run("record failure does not block the signup", func(t *testing.T) {
		guard := guardWith(0)
		repo := newFakeSocialRepo()
		repo.signupErr = errors.New("insert failed")
		svc := NewSocialService(repo, guard, logger.Nop())

		decision, err := svc.SignupCheck(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}
