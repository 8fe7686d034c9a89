package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlink/internal/sponsorship"
)

type ChildHandler struct {
	sponsorships *sponsorship.Manager
	logger       *slog.Logger
}

func NewChildHandler(sm *sponsorship.Manager, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{sponsorships: sm, logger: logger}
}

// Availability handles GET /children/{id}/availability.
func (h *ChildHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	avail, err := h.sponsorships.IsChildAvailable(r.Context(), id)
	if err != nil {
		serverError(w, r, h.logger, "check availability", err)
		return
	}
	if avail.Reason == sponsorship.ChildNotFound {
		writeJSON(w, http.StatusNotFound, avail)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// Sponsor handles POST /children/{id}/sponsor.
func (h *ChildHandler) Sponsor(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	var form sponsorship.Form
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.sponsorships.CreateSponsorshipRequest(r.Context(), id, form)
	if err != nil {
		serverError(w, r, h.logger, "create sponsorship", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
