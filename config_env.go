package authkit

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Environment variable names recognized by [FromEnv]. They mirror the .env
// surface of the original deployment.
const (
	EnvSecretKey           = "SECRET_KEY"
	EnvAlgorithm           = "ALGORITHM"
	EnvAccessExpireMinutes = "ACCESS_TOKEN_EXPIRE_MINUTES"
	EnvRefreshExpireDays   = "REFRESH_TOKEN_EXPIRE_DAYS"
	EnvRateLimit           = "RATE_LIMIT"
	EnvRateLimitWindowSecs = "RATE_LIMIT_WINDOW_SECONDS"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
	EnvRedisDB             = "REDIS_DB"
)

// FromEnv loads a [Config] from a .env file (when present) and the process
// environment. SECRET_KEY is required; everything else falls back to the
// defaults the original deployment shipped with: HS256, access tokens good
// for 7 days, refresh tokens for 30 days, and 100 requests per 60-second
// window. The returned config is validated; invalid values fail here, not at
// first use.
func FromEnv() (Config, error) {
	// A missing .env file is not an error; the process environment may carry
	// everything.
	_ = godotenv.Load()

	cfg := defaultConfig()

	secret := os.Getenv(EnvSecretKey)
	if secret == "" {
		return Config{}, fmt.Errorf("%s is required", EnvSecretKey)
	}
	cfg.Token.SecretKey = []byte(secret)

	if alg := os.Getenv(EnvAlgorithm); alg != "" {
		switch alg {
		case "HS256", "hs256":
			cfg.Token.Algorithm = "hs256"
		case "HS384", "hs384":
			cfg.Token.Algorithm = "hs384"
		case "HS512", "hs512":
			cfg.Token.Algorithm = "hs512"
		default:
			return Config{}, fmt.Errorf("%s: unsupported algorithm %q", EnvAlgorithm, alg)
		}
	}

	accessMinutes, err := envInt(EnvAccessExpireMinutes, 60*24*7)
	if err != nil {
		return Config{}, err
	}
	cfg.Token.AccessTTL = time.Duration(accessMinutes) * time.Minute

	refreshDays, err := envInt(EnvRefreshExpireDays, 30)
	if err != nil {
		return Config{}, err
	}
	cfg.Token.RefreshTTL = time.Duration(refreshDays) * 24 * time.Hour

	limit, err := envInt(EnvRateLimit, 100)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit.MaxRequests = limit

	windowSecs, err := envInt(EnvRateLimitWindowSecs, 60)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit.Window = time.Duration(windowSecs) * time.Second

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RedisOptionsFromEnv builds go-redis options from REDIS_ADDR,
// REDIS_PASSWORD, and REDIS_DB. It returns nil when REDIS_ADDR is unset, in
// which case the engine falls back to in-process backends.
func RedisOptionsFromEnv() (*redis.Options, error) {
	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		return nil, nil
	}

	db, err := envInt(EnvRedisDB, 0)
	if err != nil {
		return nil, err
	}

	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv(EnvRedisPassword),
		DB:       db,
	}, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	return v, nil
}
