package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/dukerupert/giftlink/internal/ratelimit"
)

type clientIPKey struct{}

// ClientIP returns middleware that resolves the address a request is
// attributed to. CF-Connecting-IP and X-Forwarded-For are honoured only when
// the connecting peer falls inside trusted; otherwise the peer address is used.
func ClientIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
		})
	}
}

// RealIP returns the address resolved by ClientIP, or the peer address when the
// request did not pass through it.
func RealIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return remoteHost(r)
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r)
	peer, err := netip.ParseAddr(remote)
	if err != nil || !inPrefixes(peer, trusted) {
		return remote
	}

	if cf, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("CF-Connecting-IP"))); err == nil {
		return cf.Unmap().String()
	}

	// Walk the chain from the nearest hop; the first untrusted hop is the client.
	// Anything to its left was supplied by the client and is ignored.
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if !inPrefixes(hop, trusted) {
			return hop.Unmap().String()
		}
	}
	return remote
}

func inPrefixes(addr netip.Addr, prefixes []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit returns middleware that rate-limits requests by a key function.
// Limiter errors are treated as a block.
func RateLimit(limiter ratelimit.Limiter, keyFunc func(*http.Request) string, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			ok, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				logger.Error("rate limiter unavailable", "key", key, "error", err)
			}
			if err != nil || !ok {
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey keys rate limits by client address and matched route pattern, so every
// id under one route shares a bucket.
func IPKey(r *http.Request) string {
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	return "http:" + route + ":" + RealIP(r)
}
