package remoteconfig

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vistly/vistly/internal/cache"
	"github.com/vistly/vistly/internal/ratelimit"
)

// settingsCacheKey is where cached settings live in the cache backend.
const settingsCacheKey = "remoteconfig:rate_limits_on"

// CachedSettings wraps a settings source with a short-TTL cache, so every
// rate limit check does not pay a config round trip. Operators still see
// changes within one TTL; cache trouble silently falls through to the
// inner source.
type CachedSettings struct {
	inner ratelimit.SettingsSource
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedSettings creates the caching decorator.
func NewCachedSettings(inner ratelimit.SettingsSource, c cache.Cache, ttl time.Duration) *CachedSettings {
	return &CachedSettings{inner: inner, cache: c, ttl: ttl}
}

// Settings implements ratelimit.SettingsSource.
func (s *CachedSettings) Settings(ctx context.Context) (ratelimit.Settings, error) {
	if raw, err := s.cache.Get(ctx, settingsCacheKey); err == nil {
		var out ratelimit.Settings
		if json.Unmarshal(raw, &out) == nil {
			return out, nil
		}
	}

	settings, err := s.inner.Settings(ctx)
	if err != nil {
		return settings, err
	}

	if raw, err := json.Marshal(settings); err == nil {
		_ = s.cache.Set(ctx, settingsCacheKey, raw, s.ttl)
	}
	return settings, nil
}
