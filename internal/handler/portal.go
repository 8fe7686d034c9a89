package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlink/internal/auth"
	"github.com/dukerupert/giftlink/internal/sponsorship"
)

// PortalHandler serves signed-in sponsors. Routes are wrapped in
// middleware.RequireSponsor.
type PortalHandler struct {
	sponsorships *sponsorship.Manager
	logger       *slog.Logger
}

func NewPortalHandler(sm *sponsorship.Manager, logger *slog.Logger) *PortalHandler {
	return &PortalHandler{sponsorships: sm, logger: logger}
}

// Sponsorships handles GET /portal/sponsorships.
func (h *PortalHandler) Sponsorships(w http.ResponseWriter, r *http.Request) {
	email := auth.SponsorEmail(r.Context())
	sps, err := h.sponsorships.ListForSponsor(r.Context(), email)
	if err != nil {
		serverError(w, r, h.logger, "list sponsor sponsorships", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":        email,
		"sponsorships": sps,
	})
}

type addChildrenRequest struct {
	ChildIDs []int64 `json:"child_ids"`
	sponsorship.Form
}

// AddChildren handles POST /portal/children.
func (h *PortalHandler) AddChildren(w http.ResponseWriter, r *http.Request) {
	var req addChildrenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.ChildIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one child is required")
		return
	}

	outcomes, err := h.sponsorships.AddChildrenToSponsorship(r.Context(), req.ChildIDs, req.Form, auth.SponsorEmail(r.Context()))
	if err != nil {
		serverError(w, r, h.logger, "add children", err)
		return
	}

	added := 0
	for _, o := range outcomes {
		if o.Success {
			added++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": added > 0,
		"added":   added,
		"results": outcomes,
	})
}
