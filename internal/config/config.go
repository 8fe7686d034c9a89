// Package config loads service settings from GIFTLINK_* environment variables.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const envPrefix = "GIFTLINK_"

type Config struct {
	Port     string `env:"PORT" envDefault:"8080" validate:"required,numeric"`
	DBPath   string `env:"DB_PATH" envDefault:"giftlink.db" validate:"required"`
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	ReservationTTL  time.Duration `env:"RESERVATION_TTL" envDefault:"48h" validate:"min=1m"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m" validate:"min=1s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h" validate:"min=1s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"720h" validate:"min=1m"`

	MagicLinkTTL         time.Duration `env:"MAGIC_LINK_TTL" envDefault:"30m" validate:"min=1m"`
	MagicLinkMinDuration time.Duration `env:"MAGIC_LINK_MIN_DURATION" envDefault:"800ms" validate:"min=0s,max=10s"`

	// Sign-in link request limits, applied per email and per client address.
	EmailRateLimit  int           `env:"EMAIL_RATE_LIMIT" envDefault:"5" validate:"min=1"`
	IPRateLimit     int           `env:"IP_RATE_LIMIT" envDefault:"20" validate:"min=1"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h" validate:"min=1s"`

	// Coarse per-address throttle on public write routes.
	HTTPRateLimit  int           `env:"HTTP_RATE_LIMIT" envDefault:"30" validate:"min=1"`
	HTTPRateWindow time.Duration `env:"HTTP_RATE_WINDOW" envDefault:"1m" validate:"min=1s"`

	// TrustedProxies lists the peers whose CF-Connecting-IP and X-Forwarded-For
	// headers are believed, as comma-separated CIDRs. Empty trusts none.
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","`

	// RedisAddr selects the shared limiter backend. Empty keeps counters in memory.
	RedisAddr string `env:"REDIS_ADDR" validate:"omitempty,hostname_port"`

	PostmarkToken string `env:"POSTMARK_SERVER_TOKEN"`
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"sponsors@giftlink.local" validate:"required,email"`
	AdminEmail    string `env:"ADMIN_EMAIL" validate:"omitempty,email"`

	AdminUsername     string `env:"ADMIN_USERNAME" envDefault:"admin" validate:"required"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH" validate:"omitempty,startswith=$2"`

	// DirectStatus is the status a single-child request starts in.
	DirectStatus string `env:"DIRECT_STATUS" envDefault:"confirmed" validate:"oneof=pending confirmed"`

	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`
}

var validate = validator.New()

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(environ())
}

// LoadFrom reads configuration from the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      envPrefix,
		Environment: vars,
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
