package model

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s ReservationStatus) Terminal() bool {
	return s != ReservationActive
}

// Sponsor is the contact snapshot captured when a reservation or request is made.
type Sponsor struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
}

type Reservation struct {
	ID        int64             `json:"id"`
	Token     string            `json:"-"`
	Sponsor   Sponsor           `json:"sponsor"`
	ChildIDs  []int64           `json:"child_ids"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
}

// ExpiredAt reports whether an active reservation has passed its expiry at now.
// Expiry is strict: a reservation observed exactly at expires_at is still live.
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}
