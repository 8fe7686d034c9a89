package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/giftlink/internal/metrics"
)

// Decision is the outcome of a Guard check. Dimension names the first limit
// that blocked the request.
type Decision struct {
	Allowed   bool
	Dimension string
}

// Guard throttles an action by requester email and by network address
// independently. Either dimension exceeding its limit blocks the action.
type Guard struct {
	limiter    Limiter
	emailLimit int
	ipLimit    int
	window     time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewGuard(limiter Limiter, emailLimit, ipLimit int, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Guard {
	return &Guard{
		limiter:    limiter,
		emailLimit: emailLimit,
		ipLimit:    ipLimit,
		window:     window,
		logger:     logger.With("component", "ratelimit"),
		metrics:    m,
	}
}

// Check counts one attempt against both dimensions. Limiter errors block the
// attempt.
func (g *Guard) Check(ctx context.Context, email, ip string) Decision {
	// Both counters advance on every attempt, whichever dimension blocks.
	emailOK := g.allow(ctx, "email:"+strings.ToLower(strings.TrimSpace(email)), g.emailLimit)
	ipOK := g.allow(ctx, "ip:"+ip, g.ipLimit)

	var d Decision
	switch {
	case !emailOK:
		d.Dimension = "email"
	case !ipOK:
		d.Dimension = "ip"
	default:
		d.Allowed = true
		return d
	}

	g.logger.Warn("security: rate limit exceeded", "dimension", d.Dimension, "email", email, "ip", ip)
	g.metrics.RateLimited(d.Dimension)
	return d
}

func (g *Guard) allow(ctx context.Context, key string, limit int) bool {
	ok, err := g.limiter.Allow(ctx, key, limit, g.window)
	if err != nil {
		g.logger.Error("rate limiter unavailable", "key", key, "error", err)
		return false
	}
	return ok
}
