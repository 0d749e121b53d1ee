package authkit

import (
	"testing"
	"time"
)

func TestFromEnvRequiresSecret(t *testing.T) {
	t.Setenv(EnvSecretKey, "")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected FromEnv to fail without SECRET_KEY")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvSecretKey, "env-test-secret")
	t.Setenv(EnvAlgorithm, "")
	t.Setenv(EnvAccessExpireMinutes, "")
	t.Setenv(EnvRefreshExpireDays, "")
	t.Setenv(EnvRateLimit, "")
	t.Setenv(EnvRateLimitWindowSecs, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if string(cfg.Token.SecretKey) != "env-test-secret" {
		t.Fatal("secret not loaded")
	}
	if cfg.Token.Algorithm != "hs256" {
		t.Fatalf("expected hs256 default, got %q", cfg.Token.Algorithm)
	}
	if cfg.Token.AccessTTL != 7*24*time.Hour {
		t.Fatalf("expected 7-day access default, got %v", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("expected 30-day refresh default, got %v", cfg.Token.RefreshTTL)
	}
	if cfg.RateLimit.MaxRequests != 100 || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("expected 100/60s rate default, got %d/%v",
			cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvSecretKey, "env-test-secret")
	t.Setenv(EnvAlgorithm, "HS512")
	t.Setenv(EnvAccessExpireMinutes, "15")
	t.Setenv(EnvRefreshExpireDays, "7")
	t.Setenv(EnvRateLimit, "10")
	t.Setenv(EnvRateLimitWindowSecs, "30")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Token.Algorithm != "hs512" {
		t.Fatalf("expected hs512, got %q", cfg.Token.Algorithm)
	}
	if cfg.Token.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access, got %v", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh, got %v", cfg.Token.RefreshTTL)
	}
	if cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("expected 10/30s rate, got %d/%v",
			cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad algorithm", key: EnvAlgorithm, value: "none"},
		{name: "non-numeric minutes", key: EnvAccessExpireMinutes, value: "soon"},
		{name: "non-numeric rate", key: EnvRateLimit, value: "lots"},
		{name: "access not shorter than refresh", key: EnvAccessExpireMinutes, value: "100000"},
	}

	for _, targetCase := range tests {
		t.Run(targetCase.name, func(t *testing.T) {
			t.Setenv(EnvSecretKey, "env-test-secret")
			t.Setenv(targetCase.key, targetCase.value)

			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected FromEnv to reject %s=%s", targetCase.key, targetCase.value)
			}
		})
	}
}

func TestRedisOptionsFromEnv(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")

	opts, err := RedisOptionsFromEnv()
	if err != nil {
		t.Fatalf("RedisOptionsFromEnv failed: %v", err)
	}
	if opts != nil {
		t.Fatal("expected nil options when REDIS_ADDR unset")
	}

	t.Setenv(EnvRedisAddr, "localhost:6379")
	t.Setenv(EnvRedisPassword, "hunter2")
	t.Setenv(EnvRedisDB, "3")

	opts, err = RedisOptionsFromEnv()
	if err != nil {
		t.Fatalf("RedisOptionsFromEnv failed: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "hunter2" || opts.DB != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
