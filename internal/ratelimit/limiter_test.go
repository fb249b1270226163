package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly/pkg/logger"
)

// failingStore simulates counting store outages.
type failingStore struct {
	countErr  error
	oldestErr error
	inner     *MemoryStore
}

func (f *failingStore) CountSince(ctx context.Context, p Policy, subject string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.inner.CountSince(ctx, p, subject, since)
}

func (f *failingStore) OldestSince(ctx context.Context, p Policy, subject string, since time.Time) (time.Time, bool, error) {
	if f.oldestErr != nil {
		return time.Time{}, false, f.oldestErr
	}
	return f.inner.OldestSince(ctx, p, subject, since)
}

// failingSettings simulates a broken dynamic config source.
type failingSettings struct{ err error }

func (f failingSettings) Settings(context.Context) (Settings, error) {
	return Settings{}, f.err
}

func enabled(limits map[Action]int) StaticSettings {
	return StaticSettings{Value: Settings{Enabled: true, Limits: limits}}
}

func newTestGuard(store Store, source SettingsSource, now time.Time) *Guard {
	g := NewGuard(store, source, logger.Nop())
	g.now = func() time.Time { return now }
	return g
}

func TestGuard_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pol, ok := PolicyFor(ActionVisitsPerDay)
	require.True(t, ok)

	t.Run("allows when under the limit", func(t *testing.T) {
		store := NewMemoryStore()
		for i := 0; i < 29; i++ {
			store.Record(pol, "user-A", now.Add(-time.Duration(i+1)*time.Minute))
		}

		g := newTestGuard(store, enabled(nil), now)
		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.True(t, d.Allowed)
		assert.Equal(t, 29, d.Current)
		assert.Equal(t, 30, d.Limit)
		assert.Equal(t, 1, d.Remaining())
		assert.Nil(t, d.RetryAfter)
	})

	t.Run("denies at the limit with retry timing", func(t *testing.T) {
		store := NewMemoryStore()
		oldest := now.Add(-23 * time.Hour)
		store.Record(pol, "user-A", oldest)
		for i := 0; i < 29; i++ {
			store.Record(pol, "user-A", now.Add(-time.Duration(i+1)*time.Minute))
		}

		g := newTestGuard(store, enabled(nil), now)
		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.False(t, d.Allowed)
		assert.Equal(t, 30, d.Current)
		assert.Equal(t, 0, d.Remaining())

		// The oldest of the 30 events turns 24h old in exactly one hour.
		require.NotNil(t, d.RetryAfter)
		assert.Equal(t, 3600, *d.RetryAfter)
	})

	t.Run("counts grow by one per recorded event", func(t *testing.T) {
		store := NewMemoryStore()
		g := newTestGuard(store, enabled(nil), now)

		d, err := g.Check(ctx, "user-B", ActionVisitsPerDay)
		require.NoError(t, err)
		k := d.Current

		store.Record(pol, "user-B", now.Add(-time.Second))

		d, err = g.Check(ctx, "user-B", ActionVisitsPerDay)
		require.NoError(t, err)
		assert.Equal(t, k+1, d.Current)
	})

	t.Run("events age out of the window", func(t *testing.T) {
		store := NewMemoryStore()
		t0 := now.Add(-24*time.Hour - time.Second)
		store.Record(pol, "user-C", t0)
		store.Record(pol, "user-C", now.Add(-time.Hour))

		g := newTestGuard(store, enabled(nil), now)
		d, err := g.Check(ctx, "user-C", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.Equal(t, 1, d.Current, "event older than the window must not count")
	})

	t.Run("dynamic limit override wins over the default", func(t *testing.T) {
		store := NewMemoryStore()
		store.Record(pol, "user-D", now.Add(-time.Minute))
		store.Record(pol, "user-D", now.Add(-2*time.Minute))

		g := newTestGuard(store, enabled(map[Action]int{ActionVisitsPerDay: 2}), now)
		d, err := g.Check(ctx, "user-D", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.Equal(t, 2, d.Limit)
		assert.False(t, d.Allowed)
	})

	t.Run("non-positive override falls back to the default", func(t *testing.T) {
		g := newTestGuard(NewMemoryStore(), enabled(map[Action]int{ActionVisitsPerDay: 0}), now)
		d, err := g.Check(ctx, "user-D", ActionVisitsPerDay)
		require.NoError(t, err)
		assert.Equal(t, 30, d.Limit)
	})

	t.Run("disabled limiter always allows", func(t *testing.T) {
		store := NewMemoryStore()
		for i := 0; i < 10000; i++ {
			store.Record(pol, "user-E", now.Add(-time.Duration(i)*time.Second))
		}

		g := newTestGuard(store, StaticSettings{Value: Settings{Enabled: false}}, now)
		d, err := g.Check(ctx, "user-E", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.Current, "disabled checks must not count")
		assert.Equal(t, disabledLimit, d.Limit)
	})

	t.Run("unknown action is an error", func(t *testing.T) {
		g := newTestGuard(NewMemoryStore(), enabled(nil), now)
		_, err := g.Check(ctx, "user-A", Action("bogus"))
		assert.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("hourly action uses its own window", func(t *testing.T) {
		hourly, ok := PolicyFor(ActionVisitsUpdatePerHour)
		require.True(t, ok)

		store := NewMemoryStore()
		store.Record(hourly, "user-F", now.Add(-2*time.Hour)) // outside
		store.Record(hourly, "user-F", now.Add(-30*time.Minute))

		g := newTestGuard(store, enabled(nil), now)
		d, err := g.Check(ctx, "user-F", ActionVisitsUpdatePerHour)
		require.NoError(t, err)

		assert.Equal(t, 1, d.Current)
		assert.Equal(t, now.Add(-time.Hour), d.WindowStart)
	})
}

func TestGuard_FailOpen(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("store failure allows the action", func(t *testing.T) {
		store := &failingStore{countErr: errors.New("connection refused"), inner: NewMemoryStore()}
		g := newTestGuard(store, enabled(nil), now)

		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err, "store trouble must not surface as a check error")
		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.Current)
	})

	t.Run("settings failure uses defaults and still counts", func(t *testing.T) {
		pol, _ := PolicyFor(ActionVisitsPerDay)
		inner := NewMemoryStore()
		for i := 0; i < 30; i++ {
			inner.Record(pol, "user-A", now.Add(-time.Duration(i+1)*time.Minute))
		}

		g := newTestGuard(inner, failingSettings{err: errors.New("config store down")}, now)
		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err)

		// Defaults still enforce: 30 events against the default limit of 30.
		assert.False(t, d.Allowed)
		assert.Equal(t, 30, d.Limit)
	})

	t.Run("oldest lookup failure omits retry-after", func(t *testing.T) {
		pol, _ := PolicyFor(ActionVisitsPerDay)
		inner := NewMemoryStore()
		for i := 0; i < 30; i++ {
			inner.Record(pol, "user-A", now.Add(-time.Duration(i+1)*time.Minute))
		}
		store := &failingStore{oldestErr: errors.New("timeout"), inner: inner}

		g := newTestGuard(store, enabled(nil), now)
		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.False(t, d.Allowed)
		assert.Nil(t, d.RetryAfter)
	})

	t.Run("vanished oldest event omits retry-after", func(t *testing.T) {
		// Count says 30 but the rows are gone by the time the oldest query
		// runs, as with a concurrent delete.
		fixed := &fixedCountStore{count: 30, inner: NewMemoryStore()}

		g := newTestGuard(fixed, enabled(nil), now)
		d, err := g.Check(ctx, "user-A", ActionVisitsPerDay)
		require.NoError(t, err)

		assert.False(t, d.Allowed)
		assert.Nil(t, d.RetryAfter)
	})
}

// fixedCountStore reports a fixed count but has no events behind it.
type fixedCountStore struct {
	count int
	inner *MemoryStore
}

func (f *fixedCountStore) CountSince(ctx context.Context, p Policy, subject string, since time.Time) (int, error) {
	return f.count, nil
}

func (f *fixedCountStore) OldestSince(ctx context.Context, p Policy, subject string, since time.Time) (time.Time, bool, error) {
	return f.inner.OldestSince(ctx, p, subject, since)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	visits, _ := PolicyFor(ActionVisitsPerDay)
	updates, _ := PolicyFor(ActionVisitsUpdatePerHour)

	t.Run("policies with different timestamp columns do not share events", func(t *testing.T) {
		store := NewMemoryStore()
		store.Record(visits, "user-A", now)

		n, err := store.CountSince(ctx, updates, "user-A", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		store := NewMemoryStore()
		store.Record(visits, "user-A", now)

		n, err := store.CountSince(ctx, visits, "user-B", now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("oldest is the minimum in-window timestamp", func(t *testing.T) {
		store := NewMemoryStore()
		store.Record(visits, "user-A", now.Add(-30*time.Hour)) // outside
		store.Record(visits, "user-A", now.Add(-10*time.Hour))
		store.Record(visits, "user-A", now.Add(-2*time.Hour))

		oldest, found, err := store.OldestSince(ctx, visits, "user-A", now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, now.Add(-10*time.Hour), oldest)
	})

	t.Run("clear removes a subject's events", func(t *testing.T) {
		store := NewMemoryStore()
		store.Record(visits, "user-A", now)
		store.Clear(visits, "user-A")

		n, err := store.CountSince(ctx, visits, "user-A", now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		store := NewMemoryStore()
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.CountSince(cancelled, visits, "user-A", now)
		assert.Error(t, err)
	})
}

func TestPolicyTable(t *testing.T) {
	t.Run("every action has a complete policy", func(t *testing.T) {
		for _, action := range Actions() {
			p, ok := PolicyFor(action)
			require.True(t, ok)
			assert.NotEmpty(t, p.Table, "%s table", action)
			assert.NotEmpty(t, p.SubjectColumn, "%s subject column", action)
			assert.NotEmpty(t, p.TimestampColumn, "%s timestamp column", action)
			assert.Greater(t, p.DefaultLimit, 0, "%s default limit", action)
			assert.Greater(t, p.Window, time.Duration(0), "%s window", action)
		}
	})

	t.Run("windows match the action naming", func(t *testing.T) {
		day := []Action{ActionVisitsPerDay, ActionListAddPerDay, ActionFollowPerDay}
		for _, a := range day {
			p, _ := PolicyFor(a)
			assert.Equal(t, 24*time.Hour, p.Window, "%s", a)
		}

		hour := []Action{ActionVisitsUpdatePerHour, ActionSignupPerIPPerHour}
		for _, a := range hour {
			p, _ := PolicyFor(a)
			assert.Equal(t, time.Hour, p.Window, "%s", a)
		}
	})
}
