// Package ratelimit decides whether a subject may perform a throttled action,
// by counting qualifying events in a trailing window. All state lives in an
// external counting store; the limiter itself is stateless and advisory:
// concurrent checks for the same subject may both pass, which is accepted in
// exchange for never blocking on a lock.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/pkg/logger"
)

// Action identifies a throttled action kind. Adding a kind means adding its
// policy to the table in policy.go.
type Action string

const (
	ActionVisitsPerDay        Action = "visits_per_day"
	ActionListAddPerDay       Action = "list_add_per_day"
	ActionFollowPerDay        Action = "follow_per_day"
	ActionVisitsUpdatePerHour Action = "visits_update_per_hour"
	ActionSignupPerIPPerHour  Action = "signup_per_ip_per_hour"
)

// ErrUnknownAction is returned for actions with no policy.
var ErrUnknownAction = errors.New("unknown rate limit action")

// disabledLimit is the nominal limit reported while limiting is switched off.
const disabledLimit = 999999

// Decision is the outcome of one quota check.
type Decision struct {
	Subject     string
	Action      Action
	Limit       int
	Current     int
	WindowStart time.Time
	ResetAt     time.Time
	Allowed     bool
	// RetryAfter is the number of seconds until the oldest counted event
	// exits the window. Nil when the check was allowed or the oldest event
	// vanished between queries.
	RetryAfter *int
}

// Remaining returns how many actions the subject has left, never negative.
func (d *Decision) Remaining() int {
	if r := d.Limit - d.Current; r > 0 {
		return r
	}
	return 0
}

// DeniedError carries a denied decision through the service layer so
// handlers can shape the 429 response.
type DeniedError struct {
	Decision *Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s %d/%d", e.Decision.Action, e.Decision.Current, e.Decision.Limit)
}

// Store counts qualifying events for a subject. Implementations are
// read-only: recording events is the caller's responsibility, on the path
// where the action actually succeeds.
type Store interface {
	// CountSince returns the number of qualifying events at or after since.
	CountSince(ctx context.Context, p Policy, subject string, since time.Time) (int, error)

	// OldestSince returns the timestamp of the oldest qualifying event at or
	// after since. found is false when no such event exists.
	OldestSince(ctx context.Context, p Policy, subject string, since time.Time) (oldest time.Time, found bool, err error)
}

// Settings is the dynamic configuration consulted on every check.
type Settings struct {
	Enabled bool           `json:"enabled"`
	Limits  map[Action]int `json:"limits"`
}

// SettingsSource resolves the current dynamic settings. Sources should be
// cheap: the guard consults them per check.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// Guard performs quota checks against a counting store.
type Guard struct {
	store  Store
	source SettingsSource
	log    *logger.Logger
	now    func() time.Time
}

// NewGuard creates a Guard.
func NewGuard(store Store, source SettingsSource, log *logger.Logger) *Guard {
	return &Guard{store: store, source: source, log: log, now: time.Now}
}

// Check decides whether subject may perform action right now.
//
// Infrastructure failures fail open: the subject is not penalized for
// limiter trouble, but every such decision is logged and counted so
// operators notice degraded enforcement. A denied decision is a normal
// outcome, not an error.
func (g *Guard) Check(ctx context.Context, subject string, action Action) (*Decision, error) {
	pol, ok := policies[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	now := g.now().UTC()

	settings, err := g.source.Settings(ctx)
	if err != nil {
		// Settings trouble degrades to the hardcoded defaults, with
		// limiting left on.
		g.failOpen(subject, action, "settings", err)
		settings = Settings{Enabled: true}
	}

	if !settings.Enabled {
		// Operational escape hatch: no counting at all.
		return &Decision{
			Subject:     subject,
			Action:      action,
			Limit:       disabledLimit,
			Current:     0,
			WindowStart: now.Add(-pol.Window),
			ResetAt:     now.Add(pol.Window),
			Allowed:     true,
		}, nil
	}

	limit := pol.DefaultLimit
	if v, ok := settings.Limits[action]; ok && v > 0 {
		limit = v
	}

	windowStart := now.Add(-pol.Window)

	count, err := g.store.CountSince(ctx, pol, subject, windowStart)
	if err != nil {
		g.failOpen(subject, action, "count", err)
		return &Decision{
			Subject:     subject,
			Action:      action,
			Limit:       limit,
			Current:     0,
			WindowStart: windowStart,
			ResetAt:     now.Add(pol.Window),
			Allowed:     true,
		}, nil
	}

	d := &Decision{
		Subject:     subject,
		Action:      action,
		Limit:       limit,
		Current:     count,
		WindowStart: windowStart,
		ResetAt:     now.Add(pol.Window),
		Allowed:     count < limit,
	}

	if !d.Allowed {
		metrics.RecordRateLimited(string(action))
		oldest, found, err := g.store.OldestSince(ctx, pol, subject, windowStart)
		switch {
		case err != nil:
			// Denial already stands on the count; retry timing is best effort.
			g.log.Warn("rate limit oldest-event lookup failed",
				"action", string(action),
				"subject", subject,
				"error", err.Error(),
			)
		case found:
			secs := int(math.Ceil(oldest.Add(pol.Window).Sub(now).Seconds()))
			if secs < 0 {
				secs = 0
			}
			d.RetryAfter = &secs
		}
	}

	return d, nil
}

func (g *Guard) failOpen(subject string, action Action, stage string, err error) {
	metrics.RecordRateLimitFailOpen(string(action), stage)
	g.log.Warn("rate limit check failed open",
		"action", string(action),
		"subject", subject,
		"stage", stage,
		"error", err.Error(),
	)
}

// StaticSettings is a SettingsSource with fixed values. Used in tests and
// as a fallback when no dynamic source is configured.
type StaticSettings struct {
	Value Settings
}

// Settings returns the fixed settings.
func (s StaticSettings) Settings(context.Context) (Settings, error) {
	return s.Value, nil
}
