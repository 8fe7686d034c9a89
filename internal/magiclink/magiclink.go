// Package magiclink issues and redeems single-use sign-in links for the
// sponsor portal.
//
// Every link request returns the same generic response after at least
// MinDuration, whether or not the email belongs to a sponsor, whether or not
// the request was rate limited. Only the SHA-256 hash of a link secret is
// stored; the plaintext exists only in the delivered URL.
package magiclink

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/metrics"
	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/notify"
	"github.com/dukerupert/giftlink/internal/ratelimit"
	"github.com/dukerupert/giftlink/internal/store"
)

const (
	DefaultTTL         = 30 * time.Minute
	DefaultMinDuration = 800 * time.Millisecond

	// GenericMessage is the only response a link request ever produces.
	GenericMessage = "If that email address belongs to a registered sponsor, a sign-in link is on its way."

	secretBytes = 32
	verifyPath  = "/auth/magic-link/verify"
)

var (
	// ErrInvalidEmail is returned for malformed input, before any other work.
	ErrInvalidEmail = errors.New("a valid email address is required")

	// ErrTokenInvalid covers unknown, expired and already used links alike.
	ErrTokenInvalid = errors.New("this sign-in link is invalid or has expired")

	// ErrUnableToProcess hides storage failures from the caller.
	ErrUnableToProcess = errors.New("unable to process request")
)

var messageTemplate = template.Must(template.New("magic-link").Parse(
	`Hello,

Use the link below to sign in to your sponsor portal:

{{.URL}}

This link expires in {{.Minutes}} minutes and can be used once.
If you did not request it, you can ignore this email.
`))

// Registry reports whether an email belongs to a registered sponsor.
type Registry interface {
	EmailRegistered(ctx context.Context, email string) (bool, error)
}

// LinkRequest is an incoming request for a sign-in link.
type LinkRequest struct {
	Email     string
	IP        string
	UserAgent string
}

// Response is returned for every accepted link request.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Config struct {
	BaseURL     string
	TTL         time.Duration
	MinDuration time.Duration
}

type Authority struct {
	links    *store.MagicLinkStore
	registry Registry
	guard    *ratelimit.Guard
	notifier *notify.Dispatcher
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewAuthority(links *store.MagicLinkStore, registry Registry, guard *ratelimit.Guard, notifier *notify.Dispatcher, clk clock.Clock, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Authority {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MinDuration < 0 {
		cfg.MinDuration = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Authority{
		links:    links,
		registry: registry,
		guard:    guard,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With("component", "magiclink"),
		metrics:  m,
	}
}

// RequestLink issues a sign-in link if req.Email belongs to a registered
// sponsor. The response and its latency do not depend on that.
func (a *Authority) RequestLink(ctx context.Context, req LinkRequest) (*Response, error) {
	email := strings.TrimSpace(req.Email)
	if !model.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	start := time.Now()
	defer a.pad(ctx, start)

	if err := a.issue(ctx, email, req); err != nil {
		a.logger.Error("issue magic link", "error", err)
		a.metrics.MagicLink("error")
		return nil, ErrUnableToProcess
	}
	return &Response{Success: true, Message: GenericMessage}, nil
}

func (a *Authority) issue(ctx context.Context, email string, req LinkRequest) error {
	if d := a.guard.Check(ctx, email, req.IP); !d.Allowed {
		a.metrics.MagicLink("rate_limited")
		return nil
	}

	secret, hash, err := newSecret()
	if err != nil {
		return err
	}

	registered, err := a.registry.EmailRegistered(ctx, email)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}

	msg, err := a.render(secret)
	if err != nil {
		return err
	}

	if !registered {
		a.logger.Debug("magic link requested for unregistered email")
		a.metrics.MagicLink("unregistered")
		return nil
	}

	now := a.clock.Now()
	if _, err := a.links.Create(ctx, store.NewMagicLink{
		TokenHash: hash,
		Email:     email,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.TTL),
	}); err != nil {
		return fmt.Errorf("store magic link: %w", err)
	}

	a.notifier.Dispatch(email, msg)
	a.metrics.MagicLink("sent")
	a.logger.Info("magic link issued", "ip", req.IP)
	return nil
}

// ValidateToken redeems a link secret and returns the sponsor email it was
// issued for. Every kind of rejection returns ErrTokenInvalid; the cause is
// only logged.
func (a *Authority) ValidateToken(ctx context.Context, secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", a.reject("empty")
	}

	ml, err := a.links.GetByHash(ctx, hashSecret(secret))
	if err != nil {
		a.logger.Error("look up magic link", "error", err)
		return "", ErrUnableToProcess
	}

	now := a.clock.Now()
	switch {
	case ml == nil:
		return "", a.reject("unknown")
	case ml.ConsumedAt != nil:
		return "", a.reject("consumed")
	case !now.Before(ml.ExpiresAt):
		return "", a.reject("expired")
	}

	ok, err := a.links.Consume(ctx, ml.ID, now)
	if err != nil {
		a.logger.Error("consume magic link", "error", err)
		return "", ErrUnableToProcess
	}
	if !ok {
		return "", a.reject("consumed")
	}

	a.metrics.MagicLink("validated")
	a.logger.Info("magic link validated", "magic_link_id", ml.ID)
	return ml.Email, nil
}

// Cleanup deletes links that have expired.
func (a *Authority) Cleanup(ctx context.Context) (int64, error) {
	return a.links.DeleteExpired(ctx, a.clock.Now())
}

func (a *Authority) reject(cause string) error {
	a.logger.Info("magic link rejected", "cause", cause)
	a.metrics.MagicLink("rejected")
	return ErrTokenInvalid
}

func (a *Authority) render(secret string) (notify.Message, error) {
	link := a.cfg.BaseURL + verifyPath + "?token=" + url.QueryEscape(secret)
	var buf bytes.Buffer
	err := messageTemplate.Execute(&buf, struct {
		URL     string
		Minutes int
	}{link, int(a.cfg.TTL / time.Minute)})
	if err != nil {
		return notify.Message{}, fmt.Errorf("render magic link: %w", err)
	}
	return notify.Message{Subject: "Your sponsor portal sign-in link", Text: buf.String()}, nil
}

// pad sleeps until at least MinDuration has passed since start.
func (a *Authority) pad(ctx context.Context, start time.Time) {
	remaining := a.cfg.MinDuration - time.Since(start)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func newSecret() (secret, hash string, err error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}
	secret = hex.EncodeToString(b)
	return secret, hashSecret(secret), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
