package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/giftlink/internal/auth"
	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/reservation"
	"github.com/dukerupert/giftlink/internal/sponsorship"
	"github.com/dukerupert/giftlink/internal/store"
)

// AdminHandler serves staff operations. Routes are wrapped in
// middleware.RequireAdmin.
type AdminHandler struct {
	sponsorships *sponsorship.Manager
	reservations *reservation.Manager
	children     *store.ChildStore
	logger       *slog.Logger
}

func NewAdminHandler(sm *sponsorship.Manager, rm *reservation.Manager, cs *store.ChildStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{sponsorships: sm, reservations: rm, children: cs, logger: logger}
}

// ListSponsorships handles GET /admin/sponsorships?status=.
func (h *AdminHandler) ListSponsorships(w http.ResponseWriter, r *http.Request) {
	status := model.SponsorshipStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	sps, err := h.sponsorships.ListSponsorships(r.Context(), status)
	if err != nil {
		serverError(w, r, h.logger, "list sponsorships", err)
		return
	}
	if sps == nil {
		sps = []model.Sponsorship{}
	}
	writeJSON(w, http.StatusOK, sps)
}

// Transition handles POST /admin/sponsorships/{id}/{action}.
func (h *AdminHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sponsorship id")
		return
	}

	var apply func(context.Context, int64) (*sponsorship.Result, error)
	switch r.PathValue("action") {
	case "confirm":
		apply = h.sponsorships.ConfirmSponsorship
	case "log":
		apply = h.sponsorships.LogSponsorship
	case "unlog":
		apply = h.sponsorships.UnlogSponsorship
	case "complete":
		apply = h.sponsorships.CompleteSponsorship
	case "cancel":
		var body struct {
			Reason string `json:"reason"`
		}
		// The reason is optional; an absent body is not an error.
		if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, errEmptyBody) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		apply = func(ctx context.Context, id int64) (*sponsorship.Result, error) {
			return h.sponsorships.CancelSponsorship(ctx, id, strings.TrimSpace(body.Reason))
		}
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	res, err := apply(r.Context(), id)
	if err != nil {
		serverError(w, r, h.logger, "sponsorship transition", err)
		return
	}
	if !res.Success {
		writeJSON(w, statusFor(res.Reason), res)
		return
	}
	h.logger.Info("admin action", "admin", auth.Admin(r.Context()), "sponsorship_id", id, "action", r.PathValue("action"))
	writeJSON(w, http.StatusOK, res)
}

type familyRequest struct {
	DisplayNumber string           `json:"display_number" validate:"required,max=20"`
	Notes         string           `json:"notes" validate:"max=2000"`
	Children      []store.NewChild `json:"children" validate:"required,min=1,max=25,dive"`
}

// CreateFamily handles POST /admin/families.
func (h *AdminHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.DisplayNumber = strings.TrimSpace(req.DisplayNumber)
	for i := range req.Children {
		req.Children[i].DisplayCode = strings.TrimSpace(req.Children[i].DisplayCode)
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	family, children, err := h.children.CreateFamily(r.Context(), req.DisplayNumber, req.Notes, req.Children)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "family number or child code already exists")
		return
	}
	if err != nil {
		serverError(w, r, h.logger, "create family", err)
		return
	}
	h.logger.Info("family created", "family_id", family.ID, "children", len(children))
	writeJSON(w, http.StatusCreated, map[string]any{
		"family":   family,
		"children": children,
	})
}

// Sweep handles POST /admin/reservations/sweep.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.reservations.ExpireStale(r.Context())
	if err != nil {
		serverError(w, r, h.logger, "sweep reservations", err)
		return
	}
	h.logger.Info("admin swept reservations", "admin", auth.Admin(r.Context()), "expired", n)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "expired": n})
}
