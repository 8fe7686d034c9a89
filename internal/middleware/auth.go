package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/giftlink/internal/auth"
	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/store"
)

// SessionCookieName is the portal session cookie.
const SessionCookieName = "giftlink_session"

// RequireSponsor validates the session cookie and populates SponsorContext.
// JSON clients get 401; browsers are redirected to the login page.
func RequireSponsor(sessions *store.SessionStore, clk clock.Clock, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w, r)
				return
			}

			sess, err := sessions.GetByToken(r.Context(), cookie.Value, clk.Now())
			if err != nil {
				logger.Error("load session", "error", err)
			}
			if err != nil || sess == nil {
				unauthorized(w, r)
				return
			}

			ctx := auth.WithSponsor(r.Context(), auth.SponsorContext{
				Email:     sess.Email,
				SessionID: sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks HTTP basic credentials against the configured username
// and bcrypt hash. An empty hash disables the admin surface.
func RequireAdmin(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || passwordHash == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="giftlink admin", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeError(w, http.StatusUnauthorized, "Sign in required")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
