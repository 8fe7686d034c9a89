// Package reservation holds children for a prospective sponsor for a bounded
// time and returns abandoned holds to the available pool.
package reservation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/metrics"
	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/store"
	"github.com/dukerupert/giftlink/internal/websocket"
)

const (
	// DefaultTTL is how long a reservation holds its children.
	DefaultTTL = 48 * time.Hour

	// MaxChildren bounds the number of children in one reservation.
	MaxChildren = 25

	tokenBytes = 32
)

// Result is the outcome of a reservation operation. Expected failures are
// reported through Reason rather than an error.
type Result struct {
	Success             bool               `json:"success"`
	Message             string             `json:"message,omitempty"`
	Reason              model.Reason       `json:"reason,omitempty"`
	Token               string             `json:"token,omitempty"`
	ExpiresAt           *time.Time         `json:"expires_at,omitempty"`
	UnavailableChildren []string           `json:"unavailable_children,omitempty"`
	Reservation         *model.Reservation `json:"reservation,omitempty"`
	Children            []model.Child      `json:"children,omitempty"`
}

func failure(reason model.Reason, message string) *Result {
	return &Result{Reason: reason, Message: message}
}

type Manager struct {
	reservations *store.ReservationStore
	children     *store.ChildStore
	clock        clock.Clock
	ttl          time.Duration
	events       websocket.Broadcaster
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewManager creates a reservation manager. events may be nil.
func NewManager(reservations *store.ReservationStore, children *store.ChildStore, clk clock.Clock, ttl time.Duration, events websocket.Broadcaster, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		reservations: reservations,
		children:     children,
		clock:        clk,
		ttl:          ttl,
		events:       events,
		logger:       logger.With("component", "reservation"),
		metrics:      m,
	}
}

// CreateReservation claims every listed child for sponsor, or none of them.
// Duplicate ids are collapsed. When any child is missing or already claimed the
// result lists their display codes and nothing changes.
func (m *Manager) CreateReservation(ctx context.Context, sponsor model.Sponsor, childIDs []int64) (*Result, error) {
	sponsor = sponsor.Normalize()
	if err := model.Validate(sponsor); err != nil {
		return failure(model.ReasonValidation, err.Error()), nil
	}

	ids := dedupe(childIDs)
	if len(ids) == 0 {
		return failure(model.ReasonValidation, "at least one child is required"), nil
	}
	if len(ids) > MaxChildren {
		return failure(model.ReasonValidation, fmt.Sprintf("at most %d children may be reserved at once", MaxChildren)), nil
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	r, unavailable, err := m.reservations.Create(ctx, store.NewReservation{
		Token:     token,
		Sponsor:   sponsor,
		ChildIDs:  ids,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	})
	if err != nil {
		m.metrics.Reservation("error")
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if len(unavailable) > 0 {
		codes, err := m.displayCodes(ctx, unavailable)
		if err != nil {
			return nil, err
		}
		m.metrics.Reservation("unavailable")
		m.logger.Info("reservation rejected", "unavailable", codes)
		res := failure(model.ReasonChildUnavailable, "Some of the selected children are no longer available.")
		res.UnavailableChildren = codes
		return res, nil
	}

	m.metrics.Reservation("created")
	m.logger.Info("reservation created", "reservation_id", r.ID, "children", len(ids), "expires_at", r.ExpiresAt)
	m.broadcast("reserved", ids, model.ChildPending)

	return &Result{
		Success:     true,
		Token:       token,
		ExpiresAt:   &r.ExpiresAt,
		Reservation: r,
	}, nil
}

// GetReservation looks up a reservation by token. An active reservation past its
// expiry is expired first and then reads as not found, as do cancelled ones.
// Confirmed reservations are returned with their status.
func (m *Manager) GetReservation(ctx context.Context, token string) (*Result, error) {
	r, err := m.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if r == nil || (r.Status != model.ReservationActive && r.Status != model.ReservationConfirmed) {
		return failure(model.ReasonNotFound, "Reservation not found or expired."), nil
	}

	children, err := m.children.GetByIDs(ctx, r.ChildIDs)
	if err != nil {
		return nil, err
	}
	res := &Result{Success: true, Reservation: r, ExpiresAt: &r.ExpiresAt}
	for _, id := range r.ChildIDs {
		if c, ok := children[id]; ok {
			res.Children = append(res.Children, c)
		}
	}
	return res, nil
}

// Lookup returns the reservation for token with lazy expiry applied, or nil if
// none exists.
func (m *Manager) Lookup(ctx context.Context, token string) (*model.Reservation, error) {
	if token == "" {
		return nil, nil
	}
	r, err := m.reservations.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	if _, err := m.ExpireIfDue(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// LookupByID is Lookup keyed by reservation id.
func (m *Manager) LookupByID(ctx context.Context, id int64) (*model.Reservation, error) {
	r, err := m.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	if _, err := m.ExpireIfDue(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ExpireIfDue applies the expiry transition to r if it is active and past its
// expiry. r is updated in place. It reports whether this call expired it.
func (m *Manager) ExpireIfDue(ctx context.Context, r *model.Reservation) (bool, error) {
	now := m.clock.Now()
	if !r.ExpiredAt(now) {
		return false, nil
	}
	released, changed, err := m.reservations.Close(ctx, r.ID, model.ReservationExpired, now)
	if err != nil {
		return false, fmt.Errorf("expire reservation %d: %w", r.ID, err)
	}
	r.Status = model.ReservationExpired
	if !changed {
		// Already closed by someone else; reload the real terminal status.
		current, err := m.reservations.GetByID(ctx, r.ID)
		if err != nil {
			return false, err
		}
		if current != nil {
			*r = *current
		}
		return false, nil
	}
	r.ClosedAt = &now
	m.metrics.Expired(1)
	m.logger.Info("reservation expired", "reservation_id", r.ID, "released", len(released))
	m.broadcast("released", released, model.ChildAvailable)
	return true, nil
}

// CancelReservation releases an active reservation early.
func (m *Manager) CancelReservation(ctx context.Context, token string) (*Result, error) {
	r, err := m.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return failure(model.ReasonNotFound, "Reservation not found."), nil
	}
	if r.Status.Terminal() {
		return failure(model.ReasonInvalidTransition, fmt.Sprintf("Reservation is already %s.", r.Status)), nil
	}

	released, changed, err := m.reservations.Close(ctx, r.ID, model.ReservationCancelled, m.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	if !changed {
		return failure(model.ReasonInvalidTransition, "Reservation is no longer active."), nil
	}

	m.metrics.Reservation("cancelled")
	m.logger.Info("reservation cancelled", "reservation_id", r.ID, "released", len(released))
	m.broadcast("released", released, model.ChildAvailable)
	return &Result{Success: true, Message: "Reservation cancelled."}, nil
}

// ExpireStale expires every active reservation past its expiry and returns how
// many this call expired. Running it again is a no-op.
func (m *Manager) ExpireStale(ctx context.Context) (int, error) {
	now := m.clock.Now()
	stale, err := m.reservations.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	var expired int
	for i := range stale {
		r := &stale[i]
		// ListExpired compares in SQL; recheck with the same rule the read path uses.
		if !r.ExpiredAt(now) {
			continue
		}
		released, changed, err := m.reservations.Close(ctx, r.ID, model.ReservationExpired, now)
		if err != nil {
			return expired, fmt.Errorf("expire reservation %d: %w", r.ID, err)
		}
		if !changed {
			continue
		}
		expired++
		m.broadcast("released", released, model.ChildAvailable)
	}

	if expired > 0 {
		m.metrics.Expired(expired)
		m.logger.Info("expired stale reservations", "count", expired)
	}
	return expired, nil
}

func (m *Manager) displayCodes(ctx context.Context, ids []int64) ([]string, error) {
	children, err := m.children.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := children[id]; ok {
			codes = append(codes, c.DisplayCode)
		} else {
			codes = append(codes, strconv.FormatInt(id, 10))
		}
	}
	return codes, nil
}

func (m *Manager) broadcast(action string, childIDs []int64, status model.ChildStatus) {
	if m.events == nil {
		return
	}
	for _, id := range childIDs {
		m.events.Broadcast(websocket.NewChildEvent(action, id, string(status)))
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
