package model

import (
	"testing"
	"time"
)

func TestReservationStatusTerminal(t *testing.T) {
	for _, s := range []ReservationStatus{ReservationConfirmed, ReservationExpired, ReservationCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if ReservationActive.Terminal() {
		t.Error("active should not be terminal")
	}
}

func TestReservationExpiredAt(t *testing.T) {
	expires := time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)
	r := Reservation{Status: ReservationActive, ExpiresAt: expires}

	if r.ExpiredAt(expires) {
		t.Error("reservation at exactly expires_at should still be live")
	}
	if !r.ExpiredAt(expires.Add(time.Nanosecond)) {
		t.Error("reservation past expires_at should be expired")
	}

	r.Status = ReservationConfirmed
	if r.ExpiredAt(expires.Add(time.Hour)) {
		t.Error("confirmed reservation never expires")
	}
}
