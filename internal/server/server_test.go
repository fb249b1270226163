package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly/internal/config"
	"github.com/vistly/vistly/internal/cursor"
	"github.com/vistly/vistly/internal/handlers"
	"github.com/vistly/vistly/internal/models"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/security"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

// nullVisitRepo satisfies repository.VisitRepository with empty results.
type nullVisitRepo struct{}

func (nullVisitRepo) Create(ctx context.Context, userID uuid.UUID, create *models.VisitCreate) (*models.Visit, error) {
	return &models.Visit{ID: uuid.New(), UserID: userID, PlaceID: create.PlaceID, Rating: create.Rating}, nil
}

func (nullVisitRepo) Update(ctx context.Context, id, userID uuid.UUID, update *models.VisitUpdate) (*models.Visit, error) {
	return nil, models.ErrVisitNotFound
}

func (nullVisitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	return nil, models.ErrVisitNotFound
}

func (nullVisitRepo) ListFeed(ctx context.Context, viewerID uuid.UUID, before *repository.FeedPosition, limit int) ([]models.FeedItem, error) {
	return nil, nil
}

func (nullVisitRepo) HealthCheck(ctx context.Context) error { return nil }

// nullSocialRepo satisfies repository.SocialRepository with empty results.
type nullSocialRepo struct{}

func (nullSocialRepo) CreateFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*models.Follow, error) {
	return &models.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now()}, nil
}

func (nullSocialRepo) AddListItem(ctx context.Context, listID, placeID, addedBy uuid.UUID) (*models.ListItem, error) {
	return &models.ListItem{ListID: listID, PlaceID: placeID, AddedBy: addedBy}, nil
}

func (nullSocialRepo) RecordSignupAttempt(ctx context.Context, ipAddress string) error { return nil }

func (nullSocialRepo) ListLeaderboard(ctx context.Context, city string, after *repository.ScorePosition, limit int) ([]models.LeaderboardEntry, error) {
	return nil, nil
}

func (nullSocialRepo) HealthCheck(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	log := logger.Nop()
	guard := ratelimit.NewGuard(
		ratelimit.NewMemoryStore(),
		ratelimit.StaticSettings{Value: ratelimit.Settings{Enabled: true}},
		log,
	)

	feedCodec, err := cursor.New("server-test-secret", cursor.TimeUUID)
	require.NoError(t, err)
	scoreCodec, err := cursor.New("server-test-secret", cursor.ScoreUUID)
	require.NoError(t, err)

	visitSvc := services.NewVisitService(nullVisitRepo{}, guard,
		security.NewPhotoValidator(security.DefaultPhotoConfig()), log)
	socialSvc := services.NewSocialService(nullSocialRepo{}, guard, log)

	return New(cfg, log, Handlers{
		Health:      handlers.NewHealthHandler(),
		Feed:        handlers.NewFeedHandler(visitSvc, feedCodec, log),
		Leaderboard: handlers.NewLeaderboardHandler(socialSvc, scoreCodec, log),
		Visit:       handlers.NewVisitHandler(visitSvc, log),
		Social:      handlers.NewSocialHandler(socialSvc, log),
		Signup:      handlers.NewSignupHandler(socialSvc, log),
	})
}

func TestServerRouting(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("health needs no auth", func(t *testing.T) {
		rec := do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics is exposed", func(t *testing.T) {
		rec := do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("feed requires auth", func(t *testing.T) {
		rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("feed with auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong API version is rejected before auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
		req.Header.Set("X-API-Version", "v2")
		rec := do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_API_VERSION")
	})

	t.Run("signup check needs no auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/signup-check", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("request IDs are assigned", func(t *testing.T) {
		rec := do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("unknown route is 404", func(t *testing.T) {
		rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	srv := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, srv.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.False(t, srv.IsRunning())
}
