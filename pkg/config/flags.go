package config

import (
	"flag"
	"io"
)

// parseFlags overlays command-line flags.
//
//	-port string       listen port
//	-db string         PostgreSQL URL
//	-redis string      Redis URL
//	-secret string     JWT HMAC secret
//	-ratelimit string  rate limit backend (memory|redis)
//	-access-ttl dur    access token lifetime
//	-refresh-ttl dur   refresh token lifetime
//	-log-level string  debug|info|warn|error
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Port, "port", c.Port, "listen port")
	fs.StringVar(&c.DatabaseURL, "db", c.DatabaseURL, "PostgreSQL URL")
	fs.StringVar(&c.RedisURL, "redis", c.RedisURL, "Redis URL")
	fs.StringVar(&c.JWTSecret, "secret", c.JWTSecret, "JWT HMAC secret")
	fs.StringVar(&c.RateLimitBackend, "ratelimit", c.RateLimitBackend, "rate limit backend (memory|redis)")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")

	return fs.Parse(args)
}
