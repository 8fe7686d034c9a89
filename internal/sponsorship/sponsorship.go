// Package sponsorship turns reservations and direct requests into durable
// sponsorships and drives their admin lifecycle.
package sponsorship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/metrics"
	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/notify"
	"github.com/dukerupert/giftlink/internal/reservation"
	"github.com/dukerupert/giftlink/internal/store"
	"github.com/dukerupert/giftlink/internal/websocket"
)

// AvailabilityReason explains why a child cannot be sponsored.
type AvailabilityReason string

const (
	AlreadySponsored   AvailabilityReason = "already_sponsored"
	ReservationPending AvailabilityReason = "reservation_pending"
	ChildNotFound      AvailabilityReason = "not_found"
)

// Availability is a point-in-time read of one child.
type Availability struct {
	Available bool               `json:"available"`
	Reason    AvailabilityReason `json:"reason,omitempty"`
	Child     *model.Child       `json:"child,omitempty"`
}

// Form is what a sponsor submits alongside a request.
type Form struct {
	Sponsor        model.Sponsor        `json:"sponsor"`
	GiftPreference model.GiftPreference `json:"gift_preference" validate:"required,oneof=shop gift_card cash_donation"`
	Message        string               `json:"message" validate:"max=2000"`
}

// Result is the outcome of a sponsorship operation. Expected failures are
// reported through Reason rather than an error.
type Result struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message,omitempty"`
	Reason       model.Reason        `json:"reason,omitempty"`
	Availability AvailabilityReason  `json:"availability,omitempty"`
	Sponsorships []model.Sponsorship `json:"sponsorships,omitempty"`
}

func failure(reason model.Reason, message string) *Result {
	return &Result{Reason: reason, Message: message}
}

// Config controls workflow options.
type Config struct {
	// DirectStatus is the status a direct single-child request starts in.
	DirectStatus model.SponsorshipStatus
	// AdminEmail receives an alert for every new sponsorship. Empty disables it.
	AdminEmail string
}

type Manager struct {
	sponsorships *store.SponsorshipStore
	children     *store.ChildStore
	reservations *reservation.Manager
	clock        clock.Clock
	cfg          Config
	notifier     *notify.Dispatcher
	events       websocket.Broadcaster
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewManager creates a sponsorship manager. events may be nil.
func NewManager(
	sponsorships *store.SponsorshipStore,
	children *store.ChildStore,
	reservations *reservation.Manager,
	clk clock.Clock,
	cfg Config,
	notifier *notify.Dispatcher,
	events websocket.Broadcaster,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Manager {
	if cfg.DirectStatus != model.SponsorshipPending {
		cfg.DirectStatus = model.SponsorshipConfirmed
	}
	return &Manager{
		sponsorships: sponsorships,
		children:     children,
		reservations: reservations,
		clock:        clk,
		cfg:          cfg,
		notifier:     notifier,
		events:       events,
		logger:       logger.With("component", "sponsorship"),
		metrics:      m,
	}
}

// IsChildAvailable reports whether a child can be sponsored right now. A child
// held by a reservation that has run out is released first.
func (m *Manager) IsChildAvailable(ctx context.Context, childID int64) (*Availability, error) {
	c, err := m.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &Availability{Reason: ChildNotFound}, nil
	}

	if c.Status == model.ChildPending && c.ReservationID != nil {
		r, err := m.reservations.LookupByID(ctx, *c.ReservationID)
		if err != nil {
			return nil, err
		}
		if r != nil && r.Status == model.ReservationExpired {
			if c, err = m.children.GetByID(ctx, childID); err != nil {
				return nil, err
			}
		}
	}

	switch c.Status {
	case model.ChildAvailable:
		return &Availability{Available: true, Child: c}, nil
	case model.ChildPending:
		if c.ReservationID != nil {
			return &Availability{Reason: ReservationPending, Child: c}, nil
		}
		return &Availability{Reason: AlreadySponsored, Child: c}, nil
	case model.ChildConfirmed, model.ChildCompleted:
		return &Availability{Reason: AlreadySponsored, Child: c}, nil
	default:
		return &Availability{Reason: ChildNotFound}, nil
	}
}

// CreateSponsorshipRequest sponsors a single child directly. Availability is
// checked again at write time, so a stale earlier read cannot cause a double
// commitment.
func (m *Manager) CreateSponsorshipRequest(ctx context.Context, childID int64, form Form) (*Result, error) {
	form.Sponsor = form.Sponsor.Normalize()
	if err := model.Validate(form); err != nil {
		return failure(model.ReasonValidation, err.Error()), nil
	}

	avail, err := m.IsChildAvailable(ctx, childID)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return unavailable(avail.Reason), nil
	}

	sp, err := m.sponsorships.CreateForChild(ctx, childID, toRequest(form), m.cfg.DirectStatus, m.clock.Now())
	if errors.Is(err, store.ErrConflict) {
		// Lost the race; report why.
		if avail, err = m.IsChildAvailable(ctx, childID); err != nil {
			return nil, err
		}
		return unavailable(avail.Reason), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create sponsorship: %w", err)
	}

	m.metrics.Sponsorship(string(sp.Status))
	m.logger.Info("sponsorship created", "sponsorship_id", sp.ID, "child_id", childID, "status", sp.Status)
	m.broadcast("sponsored", childID, sp.Status.ChildStatus())

	code := ""
	if avail.Child != nil {
		code = avail.Child.DisplayCode
	}
	m.notifyCreated(*sp, []string{code})

	return &Result{
		Success:      true,
		Message:      "Thank you! Your sponsorship has been recorded.",
		Sponsorships: []model.Sponsorship{*sp},
	}, nil
}

// ConfirmReservation finalizes an active reservation into one confirmed
// sponsorship per reserved child. Contact details come from the reservation.
func (m *Manager) ConfirmReservation(ctx context.Context, token string, form Form) (*Result, error) {
	r, err := m.reservations.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Status.Terminal() {
		return failure(model.ReasonNotFound, "Reservation not found or expired."), nil
	}

	form.Sponsor = r.Sponsor
	if err := model.Validate(form); err != nil {
		return failure(model.ReasonValidation, err.Error()), nil
	}

	sps, err := m.sponsorships.CreateFromReservation(ctx, r.ID, toRequest(form), m.clock.Now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := m.reservations.ExpireIfDue(ctx, r); err != nil {
			return nil, err
		}
		return failure(model.ReasonNotFound, "Reservation not found or expired."), nil
	case errors.Is(err, store.ErrConflict):
		return failure(model.ReasonChildUnavailable, "Some reserved children are no longer held by this reservation."), nil
	case err != nil:
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}

	children, err := m.children.GetByIDs(ctx, r.ChildIDs)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(sps))
	for _, sp := range sps {
		m.metrics.Sponsorship(string(sp.Status))
		m.broadcast("sponsored", sp.ChildID, model.ChildConfirmed)
		codes = append(codes, children[sp.ChildID].DisplayCode)
	}
	m.logger.Info("reservation confirmed", "reservation_id", r.ID, "sponsorships", len(sps))
	if len(sps) > 0 {
		m.notifyCreated(sps[0], codes)
	}

	return &Result{
		Success:      true,
		Message:      "Thank you! Your sponsorships are confirmed.",
		Sponsorships: sps,
	}, nil
}

// ChildOutcome is the result for one child of AddChildrenToSponsorship.
type ChildOutcome struct {
	ChildID      int64              `json:"child_id"`
	Success      bool               `json:"success"`
	Reason       model.Reason       `json:"reason,omitempty"`
	Availability AvailabilityReason `json:"availability,omitempty"`
	Message      string             `json:"message,omitempty"`
	Sponsorship  *model.Sponsorship `json:"sponsorship,omitempty"`
}

// AddChildrenToSponsorship sponsors further children for an already verified
// sponsor. Each child succeeds or fails on its own.
func (m *Manager) AddChildrenToSponsorship(ctx context.Context, childIDs []int64, form Form, existingEmail string) ([]ChildOutcome, error) {
	form.Sponsor.Email = existingEmail
	if form.Sponsor.Name == "" {
		// Fill missing contact details from the sponsor's most recent record.
		existing, err := m.sponsorships.ListByEmail(ctx, existingEmail)
		if err != nil {
			return nil, err
		}
		if n := len(existing); n > 0 {
			prev := existing[n-1].Sponsor
			form.Sponsor = model.Sponsor{Name: prev.Name, Email: existingEmail, Phone: prev.Phone, Address: prev.Address}
		}
	}

	seen := make(map[int64]bool, len(childIDs))
	var outcomes []ChildOutcome
	for _, id := range childIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		out := ChildOutcome{ChildID: id}
		res, err := m.CreateSponsorshipRequest(ctx, id, form)
		if err != nil {
			m.logger.Error("add child to sponsorship", "child_id", id, "error", err)
			out.Message = "Unable to process this child right now."
			outcomes = append(outcomes, out)
			continue
		}
		out.Success = res.Success
		out.Reason = res.Reason
		out.Availability = res.Availability
		out.Message = res.Message
		if len(res.Sponsorships) > 0 {
			out.Sponsorship = &res.Sponsorships[0]
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// ListForSponsor returns every sponsorship recorded under email.
func (m *Manager) ListForSponsor(ctx context.Context, email string) ([]model.Sponsorship, error) {
	return m.sponsorships.ListByEmail(ctx, email)
}

// ListSponsorships returns sponsorships in the given status, or all of them when
// status is empty.
func (m *Manager) ListSponsorships(ctx context.Context, status model.SponsorshipStatus) ([]model.Sponsorship, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown sponsorship status %q", status)
	}
	return m.sponsorships.List(ctx, status)
}

func unavailable(reason AvailabilityReason) *Result {
	res := failure(model.ReasonChildUnavailable, "This child is no longer available.")
	if reason == ChildNotFound {
		res = failure(model.ReasonNotFound, "Child not found.")
	}
	res.Availability = reason
	return res
}

func toRequest(f Form) store.Request {
	return store.Request{Sponsor: f.Sponsor, GiftPreference: f.GiftPreference, Message: f.Message}
}

func (m *Manager) broadcast(action string, childID int64, status model.ChildStatus) {
	if m.events == nil {
		return
	}
	m.events.Broadcast(websocket.NewChildEvent(action, childID, string(status)))
}
