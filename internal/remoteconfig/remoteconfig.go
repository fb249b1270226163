// Package remoteconfig reads operator-tunable settings from the
// remote_config table, so limits can change without a redeploy.
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vistly/vistly/internal/database"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/ratelimit"
)

// rateLimitsKey is the remote_config row holding the rate limit document:
// {"enabled": bool, "limits": {"visits_per_day": 30, ...}}.
const rateLimitsKey = "rate_limits_on"

// PostgresProvider resolves rate limit settings from the remote_config
// table. A missing or malformed row degrades to the hardcoded defaults with
// limiting left on; only an unreachable database is an error.
type PostgresProvider struct {
	pool *database.Pool
}

// NewPostgresProvider creates a provider backed by the remote_config table.
func NewPostgresProvider(pool *database.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// rateLimitsDocument is the JSON shape of the rate_limits_on value.
type rateLimitsDocument struct {
	Enabled *bool          `json:"enabled"`
	Limits  map[string]int `json:"limits"`
}

// Settings implements ratelimit.SettingsSource.
func (p *PostgresProvider) Settings(ctx context.Context) (ratelimit.Settings, error) {
	start := time.Now()
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM remote_config WHERE key = $1`, rateLimitsKey,
	).Scan(&raw)
	metrics.RecordDBQuery("remote_config_get", time.Since(start))

	if errors.Is(err, pgx.ErrNoRows) {
		return defaultSettings(), nil
	}
	if err != nil {
		return ratelimit.Settings{}, fmt.Errorf("read remote config: %w", err)
	}

	return ParseDocument(raw), nil
}

// ParseDocument decodes a rate_limits_on value, degrading to defaults on
// malformed input rather than failing the check.
func ParseDocument(raw []byte) ratelimit.Settings {
	var doc rateLimitsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return defaultSettings()
	}

	s := defaultSettings()
	if doc.Enabled != nil {
		s.Enabled = *doc.Enabled
	}
	for k, v := range doc.Limits {
		if v > 0 {
			s.Limits[ratelimit.Action(k)] = v
		}
	}
	return s
}

// defaultSettings leaves limiting on with no overrides; the guard then
// falls back to each policy's hardcoded default limit.
func defaultSettings() ratelimit.Settings {
	return ratelimit.Settings{
		Enabled: true,
		Limits:  make(map[ratelimit.Action]int),
	}
}
