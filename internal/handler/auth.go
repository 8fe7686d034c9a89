package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/magiclink"
	"github.com/dukerupert/giftlink/internal/middleware"
	"github.com/dukerupert/giftlink/internal/store"
)

const invalidLinkRedirect = "/login?error=invalid_link"

type AuthHandler struct {
	links      *magiclink.Authority
	sessions   *store.SessionStore
	sessionTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

func NewAuthHandler(links *magiclink.Authority, sessions *store.SessionStore, sessionTTL time.Duration, clk clock.Clock, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		links:      links,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		clock:      clk,
		logger:     logger,
	}
}

// RequestLink handles POST /auth/magic-link. The response is the same whether or
// not the address is registered.
func (h *AuthHandler) RequestLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.links.RequestLink(r.Context(), magiclink.LinkRequest{
		Email:     req.Email,
		IP:        middleware.RealIP(r),
		UserAgent: r.UserAgent(),
	})
	switch {
	case errors.Is(err, magiclink.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Unable to process your request. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifyPage handles GET /auth/magic-link/verify. It does not redeem the link, so
// mail scanners that prefetch URLs cannot burn it.
func (h *AuthHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, invalidLinkRedirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Confirm sign-in to continue to your sponsor portal.",
		"action":  "/auth/magic-link/verify",
		"method":  http.MethodPost,
		"token":   token,
	})
}

// Verify handles POST /auth/magic-link/verify. A redeemed link always starts a
// fresh session; any session presented with the request is discarded.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token, err := verifyToken(w, r)
	if err != nil {
		http.Redirect(w, r, invalidLinkRedirect, http.StatusSeeOther)
		return
	}

	email, err := h.links.ValidateToken(r.Context(), token)
	switch {
	case errors.Is(err, magiclink.ErrTokenInvalid):
		http.Redirect(w, r, invalidLinkRedirect, http.StatusSeeOther)
		return
	case err != nil:
		serverError(w, r, h.logger, "validate magic link", err)
		return
	}

	h.endSession(r)

	sess, err := h.sessions.Create(r.Context(), email, h.clock.Now())
	if err != nil {
		serverError(w, r, h.logger, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	h.logger.Info("sponsor signed in", "session_id", sess.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": "/portal",
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(r)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// endSession deletes the session named by the request cookie, if any.
func (h *AuthHandler) endSession(r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	sess, err := h.sessions.GetByToken(r.Context(), cookie.Value, h.clock.Now())
	if err != nil || sess == nil {
		return
	}
	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Error("delete session", "session_id", sess.ID, "error", err)
	}
}

// verifyToken reads the link secret from a JSON or form body.
func verifyToken(w http.ResponseWriter, r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Token string `json:"token"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			return "", err
		}
		return body.Token, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return r.FormValue("token"), nil
}
