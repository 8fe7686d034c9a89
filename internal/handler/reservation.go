package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/reservation"
	"github.com/dukerupert/giftlink/internal/sponsorship"
)

type ReservationHandler struct {
	reservations *reservation.Manager
	sponsorships *sponsorship.Manager
	logger       *slog.Logger
}

func NewReservationHandler(rm *reservation.Manager, sm *sponsorship.Manager, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{reservations: rm, sponsorships: sm, logger: logger}
}

type reservationRequest struct {
	Sponsor  model.Sponsor `json:"sponsor"`
	ChildIDs []int64       `json:"child_ids"`
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.reservations.CreateReservation(r.Context(), req.Sponsor, req.ChildIDs)
	if err != nil {
		serverError(w, r, h.logger, "create reservation", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	})
}

// Get handles GET /reservations/{token}.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.GetReservation(r.Context(), r.PathValue("token"))
	if err != nil {
		serverError(w, r, h.logger, "get reservation", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles DELETE /reservations/{token}.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.CancelReservation(r.Context(), r.PathValue("token"))
	if err != nil {
		serverError(w, r, h.logger, "cancel reservation", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Confirm handles POST /reservations/{token}/confirm.
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var form sponsorship.Form
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.sponsorships.ConfirmReservation(r.Context(), r.PathValue("token"), form)
	if err != nil {
		serverError(w, r, h.logger, "confirm reservation", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
