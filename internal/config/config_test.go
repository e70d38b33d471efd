package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":            "test",
		"REDIS_URL":          "redis://localhost:6379/0",
		"SESSION_SECRET":     "test-secret",
		"ORDER_API_BASE_URL": "https://orders.example.com/api/",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://orders.example.com/api", cfg.OrderAPIBaseURL)
	require.EqualValues(t, 79, cfg.DeliveryFee)
	require.Equal(t, DefaultPhonePattern, cfg.PhonePattern)
	require.Equal(t, 30*time.Minute, cfg.CartIdleTTL)
	require.Equal(t, 10*time.Second, cfg.OrderAPITimeout)
	require.Equal(t, 3*time.Second, cfg.CartLockWait)
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	require.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["DELIVERY_FEE"] = "150"
	env["CART_IDLE_TTL"] = "5m"
	env["CORS_ALLOWED_ORIGINS"] = "https://shop.example.com, https://m.example.com"
	env["RATE_LIMIT_MAX"] = "not-a-number"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	require.EqualValues(t, 150, cfg.DeliveryFee)
	require.Equal(t, 5*time.Minute, cfg.CartIdleTTL)
	require.Equal(t, []string{"https://shop.example.com", "https://m.example.com"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 10, cfg.RateLimitMax)
}

func TestLoadRequiredKeys(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "SESSION_SECRET", "ORDER_API_BASE_URL"} {
		env := baseEnv()
		env[key] = ""
		_, err := LoadForTests(env)
		require.Error(t, err, key)
		require.Contains(t, err.Error(), key)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	env := baseEnv()
	env["PHONE_PATTERN"] = "([unclosed"
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "PHONE_PATTERN")

	env = baseEnv()
	env["DELIVERY_FEE"] = "-1"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "DELIVERY_FEE")

	env = baseEnv()
	env["APP_ENV"] = "production"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "SESSION_SECRET")
}
