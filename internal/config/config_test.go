package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "giftlink.db", cfg.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.ReservationTTL)
	assert.Equal(t, 30*time.Minute, cfg.MagicLinkTTL)
	assert.Equal(t, 800*time.Millisecond, cfg.MagicLinkMinDuration)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "confirmed", cfg.DirectStatus)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.AdminPasswordHash)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"GIFTLINK_PORT":               "9090",
		"GIFTLINK_BASE_URL":           "https://gifts.example.org/",
		"GIFTLINK_RESERVATION_TTL":    "24h",
		"GIFTLINK_EMAIL_RATE_LIMIT":   "3",
		"GIFTLINK_REDIS_ADDR":         "redis:6379",
		"GIFTLINK_DIRECT_STATUS":      "pending",
		"GIFTLINK_WS_ORIGIN_PATTERNS": "gifts.example.org,*.example.org",
		"GIFTLINK_TRUSTED_PROXIES":    "10.0.0.0/8,2001:db8::/32",
		"PORT":                        "1",
	})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://gifts.example.org", cfg.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.ReservationTTL)
	assert.Equal(t, 3, cfg.EmailRateLimit)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "pending", cfg.DirectStatus)
	assert.Equal(t, []string{"gifts.example.org", "*.example.org"}, cfg.WSOriginPatterns)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, cfg.TrustedProxies)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "bad duration", vars: map[string]string{"GIFTLINK_RESERVATION_TTL": "soon"}},
		{name: "ttl too short", vars: map[string]string{"GIFTLINK_RESERVATION_TTL": "1s"}},
		{name: "bad base url", vars: map[string]string{"GIFTLINK_BASE_URL": "not a url"}},
		{name: "bad trusted proxy", vars: map[string]string{"GIFTLINK_TRUSTED_PROXIES": "10.0.0.0/8,proxy.internal"}},
		{name: "bad log level", vars: map[string]string{"GIFTLINK_LOG_LEVEL": "loud"}},
		{name: "bad direct status", vars: map[string]string{"GIFTLINK_DIRECT_STATUS": "logged"}},
		{name: "bad admin email", vars: map[string]string{"GIFTLINK_ADMIN_EMAIL": "santa"}},
		{name: "plaintext admin password", vars: map[string]string{"GIFTLINK_ADMIN_PASSWORD_HASH": "hunter2"}},
		{name: "zero rate limit", vars: map[string]string{"GIFTLINK_IP_RATE_LIMIT": "0"}},
		{name: "bad redis addr", vars: map[string]string{"GIFTLINK_REDIS_ADDR": "redis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}
