package model

import "time"

type ChildStatus string

const (
	ChildAvailable ChildStatus = "available"
	ChildPending   ChildStatus = "pending"
	ChildConfirmed ChildStatus = "confirmed"
	ChildCompleted ChildStatus = "completed"
	ChildCancelled ChildStatus = "cancelled"
)

// Valid reports whether s is one of the known child statuses.
func (s ChildStatus) Valid() bool {
	switch s {
	case ChildAvailable, ChildPending, ChildConfirmed, ChildCompleted, ChildCancelled:
		return true
	}
	return false
}

type Family struct {
	ID            int64     `json:"id"`
	DisplayNumber string    `json:"display_number"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type Child struct {
	ID            int64       `json:"id"`
	FamilyID      int64       `json:"family_id"`
	DisplayCode   string      `json:"display_code"`
	Age           int         `json:"age"`
	Gender        string      `json:"gender"`
	Wishes        string      `json:"wishes"`
	Status        ChildStatus `json:"status"`
	ReservationID *int64      `json:"reservation_id,omitempty"`
	Version       int64       `json:"version"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
