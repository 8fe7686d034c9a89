package model

import "time"

type SponsorshipStatus string

const (
	SponsorshipPending   SponsorshipStatus = "pending"
	SponsorshipConfirmed SponsorshipStatus = "confirmed"
	SponsorshipLogged    SponsorshipStatus = "logged"
	SponsorshipCompleted SponsorshipStatus = "completed"
	SponsorshipCancelled SponsorshipStatus = "cancelled"
)

// sponsorshipTransitions lists every allowed status change. Anything absent is rejected.
var sponsorshipTransitions = map[SponsorshipStatus][]SponsorshipStatus{
	SponsorshipPending:   {SponsorshipConfirmed, SponsorshipCancelled},
	SponsorshipConfirmed: {SponsorshipLogged, SponsorshipCancelled},
	SponsorshipLogged:    {SponsorshipConfirmed, SponsorshipCompleted, SponsorshipCancelled},
	SponsorshipCompleted: nil,
	SponsorshipCancelled: nil,
}

// CanTransition reports whether a sponsorship may move from s to next.
func (s SponsorshipStatus) CanTransition(next SponsorshipStatus) bool {
	for _, allowed := range sponsorshipTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known sponsorship statuses.
func (s SponsorshipStatus) Valid() bool {
	_, ok := sponsorshipTransitions[s]
	return ok
}

// Active reports whether the sponsorship still holds its child.
func (s SponsorshipStatus) Active() bool {
	return s != SponsorshipCancelled
}

// ChildStatus is the child allocation status that mirrors a sponsorship in status s.
func (s SponsorshipStatus) ChildStatus() ChildStatus {
	switch s {
	case SponsorshipPending:
		return ChildPending
	case SponsorshipConfirmed, SponsorshipLogged:
		return ChildConfirmed
	case SponsorshipCompleted:
		return ChildCompleted
	default:
		return ChildAvailable
	}
}

type GiftPreference string

const (
	GiftShop         GiftPreference = "shop"
	GiftCard         GiftPreference = "gift_card"
	GiftCashDonation GiftPreference = "cash_donation"
)

type Sponsorship struct {
	ID                 int64             `json:"id"`
	ChildID            int64             `json:"child_id"`
	ReservationID      *int64            `json:"reservation_id,omitempty"`
	Sponsor            Sponsor           `json:"sponsor"`
	GiftPreference     GiftPreference    `json:"gift_preference"`
	Message            string            `json:"message"`
	Status             SponsorshipStatus `json:"status"`
	RequestedAt        time.Time         `json:"requested_at"`
	ConfirmedAt        *time.Time        `json:"confirmed_at,omitempty"`
	LoggedAt           *time.Time        `json:"logged_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
}
