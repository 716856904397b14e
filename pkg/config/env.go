package config

import (
	"fmt"
	"strconv"
	"time"

	"rapport/pkg/ratelimit"
)

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables. Unset or empty variables keep the
// current value; malformed ones are an error.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("CORS_ORIGINS", &c.CORSOrigins)
	str("JWT_SECRET", &c.JWTSecret)
	str("RATE_LIMIT_BACKEND", &c.RateLimitBackend)
	str("AI_SERVICE_URL", &c.AIServiceURL)
	str("AI_SERVICE_KEY", &c.AIServiceKey)

	if v, ok := lookup("GO_ENV"); ok {
		c.Production = v == "production"
	}

	for key, dst := range map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":    &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":   &c.RefreshTokenTTL,
		"LOGIN_LOCK_DURATION": &c.LoginLockDuration,
		"AI_TIMEOUT":          &c.AITimeout,
		"INSIGHT_CACHE_TTL":   &c.InsightCacheTTL,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	if err := num("LOGIN_MAX_ATTEMPTS", &c.LoginMaxAttempts); err != nil {
		return err
	}

	for key, dst := range map[string]*ratelimit.Quota{
		"RATE_LIMIT_AUTH":    &c.AuthQuota,
		"RATE_LIMIT_AI":      &c.AIQuota,
		"RATE_LIMIT_DEFAULT": &c.DefaultQuota,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		q, err := ParseQuota(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = q
	}
	return nil
}
