package sponsorship

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/store"
)

// ConfirmSponsorship accepts a pending direct request.
func (m *Manager) ConfirmSponsorship(ctx context.Context, id int64) (*Result, error) {
	return m.transition(ctx, id, model.SponsorshipPending, model.SponsorshipConfirmed, "")
}

// LogSponsorship records that the gift has been logged by staff.
func (m *Manager) LogSponsorship(ctx context.Context, id int64) (*Result, error) {
	return m.transition(ctx, id, model.SponsorshipConfirmed, model.SponsorshipLogged, "")
}

// UnlogSponsorship reverts a logged sponsorship to confirmed.
func (m *Manager) UnlogSponsorship(ctx context.Context, id int64) (*Result, error) {
	return m.transition(ctx, id, model.SponsorshipLogged, model.SponsorshipConfirmed, "")
}

// CompleteSponsorship marks the gift as delivered.
func (m *Manager) CompleteSponsorship(ctx context.Context, id int64) (*Result, error) {
	return m.transition(ctx, id, model.SponsorshipLogged, model.SponsorshipCompleted, "")
}

// CancelSponsorship ends a sponsorship and releases its child for
// re-sponsorship.
func (m *Manager) CancelSponsorship(ctx context.Context, id int64, reason string) (*Result, error) {
	return m.transition(ctx, id, "", model.SponsorshipCancelled, reason)
}

func (m *Manager) transition(ctx context.Context, id int64, from, to model.SponsorshipStatus, reason string) (*Result, error) {
	sp, err := m.sponsorships.Transition(ctx, id, from, to, reason, m.clock.Now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return failure(model.ReasonNotFound, "Sponsorship not found."), nil
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrConflict):
		current, gerr := m.sponsorships.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		msg := fmt.Sprintf("Cannot move sponsorship to %s.", to)
		if current != nil {
			msg = fmt.Sprintf("Cannot move sponsorship from %s to %s.", current.Status, to)
		}
		return failure(model.ReasonInvalidTransition, msg), nil
	case err != nil:
		return nil, fmt.Errorf("transition sponsorship %d: %w", id, err)
	}

	m.metrics.Sponsorship(string(to))
	m.logger.Info("sponsorship transitioned", "sponsorship_id", id, "status", to)

	action := string(to)
	if !to.Active() {
		action = "released"
	}
	m.broadcast(action, sp.ChildID, to.ChildStatus())

	if from == model.SponsorshipPending && to == model.SponsorshipConfirmed {
		m.notifyConfirmed(*sp)
	}

	return &Result{Success: true, Sponsorships: []model.Sponsorship{*sp}}, nil
}
