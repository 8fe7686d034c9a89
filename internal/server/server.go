package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/config"
	"github.com/dukerupert/giftlink/internal/handler"
	"github.com/dukerupert/giftlink/internal/magiclink"
	"github.com/dukerupert/giftlink/internal/metrics"
	"github.com/dukerupert/giftlink/internal/middleware"
	"github.com/dukerupert/giftlink/internal/model"
	"github.com/dukerupert/giftlink/internal/notify"
	"github.com/dukerupert/giftlink/internal/ratelimit"
	"github.com/dukerupert/giftlink/internal/reservation"
	"github.com/dukerupert/giftlink/internal/sponsorship"
	"github.com/dukerupert/giftlink/internal/store"
	ws "github.com/dukerupert/giftlink/internal/websocket"
)

type Server struct {
	db           *sql.DB
	cfg          *config.Config
	clock        clock.Clock
	hub          *ws.Hub
	metrics      *metrics.Metrics
	dispatcher   *notify.Dispatcher
	limiter      ratelimit.Limiter
	sessionStore *store.SessionStore
	reservations *reservation.Manager
	authority    *magiclink.Authority
	sweeper      *reservation.Sweeper
	reservationH *handler.ReservationHandler
	childH       *handler.ChildHandler
	authH        *handler.AuthHandler
	portalH      *handler.PortalHandler
	adminH       *handler.AdminHandler
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, limiter ratelimit.Limiter, gateway notify.Gateway, clk clock.Clock, logger *slog.Logger) *Server {
	m := metrics.New()
	hub := ws.NewHub(logger)
	dispatcher := notify.NewDispatcher(gateway, logger, m)

	childStore := store.NewChildStore(db)
	sponsorshipStore := store.NewSponsorshipStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)

	reservations := reservation.NewManager(store.NewReservationStore(db), childStore, clk, cfg.ReservationTTL, hub, logger, m)
	sponsorships := sponsorship.NewManager(sponsorshipStore, childStore, reservations, clk, sponsorship.Config{
		DirectStatus: model.SponsorshipStatus(cfg.DirectStatus),
		AdminEmail:   cfg.AdminEmail,
	}, dispatcher, hub, logger, m)

	guard := ratelimit.NewGuard(limiter, cfg.EmailRateLimit, cfg.IPRateLimit, cfg.RateLimitWindow, logger, m)
	authority := magiclink.NewAuthority(store.NewMagicLinkStore(db), sponsorshipStore, guard, dispatcher, clk, magiclink.Config{
		BaseURL:     cfg.BaseURL,
		TTL:         cfg.MagicLinkTTL,
		MinDuration: cfg.MagicLinkMinDuration,
	}, logger, m)

	return &Server{
		db:           db,
		cfg:          cfg,
		clock:        clk,
		hub:          hub,
		metrics:      m,
		dispatcher:   dispatcher,
		limiter:      limiter,
		sessionStore: sessionStore,
		reservations: reservations,
		authority:    authority,
		sweeper:      reservation.NewSweeper(reservations, cfg.SweepInterval),
		reservationH: handler.NewReservationHandler(reservations, sponsorships, logger.With("component", "reservation_handler")),
		childH:       handler.NewChildHandler(sponsorships, logger.With("component", "child_handler")),
		authH:        handler.NewAuthHandler(authority, sessionStore, cfg.SessionTTL, clk, logger.With("component", "auth")),
		portalH:      handler.NewPortalHandler(sponsorships, logger.With("component", "portal")),
		adminH:       handler.NewAdminHandler(sponsorships, reservations, childStore, logger.With("component", "admin")),
		logger:       logger,
	}
}

// Sweeper returns the reservation expiry sweeper.
func (s *Server) Sweeper() *reservation.Sweeper {
	return s.sweeper
}

// Dispatcher returns the notification dispatcher so shutdown can wait for
// outstanding sends.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

// Hub returns the live availability hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Cleanup deletes expired sessions and sign-in links and drops stale rate
// limit windows.
func (s *Server) Cleanup(ctx context.Context) {
	if n, err := s.sessionStore.DeleteExpired(ctx, s.clock.Now()); err != nil {
		s.logger.Error("session cleanup", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}

	if n, err := s.authority.Cleanup(ctx); err != nil {
		s.logger.Error("magic link cleanup", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired magic links", "count", n)
	}

	if c, ok := s.limiter.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.cfg.WSOriginPatterns))

	// Reservations and direct sponsorship
	outerMux.HandleFunc("POST /reservations", s.rateLimitedHandler(s.reservationH.Create))
	outerMux.HandleFunc("GET /reservations/{token}", s.reservationH.Get)
	outerMux.HandleFunc("DELETE /reservations/{token}", s.reservationH.Cancel)
	outerMux.HandleFunc("POST /reservations/{token}/confirm", s.rateLimitedHandler(s.reservationH.Confirm))
	outerMux.HandleFunc("GET /children/{id}/availability", s.childH.Availability)
	outerMux.HandleFunc("POST /children/{id}/sponsor", s.rateLimitedHandler(s.childH.Sponsor))

	// Sign-in. Link requests are throttled silently inside the authority.
	outerMux.HandleFunc("POST /auth/magic-link", s.authH.RequestLink)
	outerMux.HandleFunc("GET /auth/magic-link/verify", s.authH.VerifyPage)
	outerMux.HandleFunc("POST /auth/magic-link/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /auth/logout", s.authH.Logout)

	portalMux := http.NewServeMux()
	portalMux.HandleFunc("GET /portal/sponsorships", s.portalH.Sponsorships)
	portalMux.HandleFunc("POST /portal/children", s.portalH.AddChildren)
	outerMux.Handle("/portal/", middleware.RequireSponsor(s.sessionStore, s.clock, s.logger)(portalMux))

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /admin/sponsorships", s.adminH.ListSponsorships)
	adminMux.HandleFunc("POST /admin/sponsorships/{id}/{action}", s.adminH.Transition)
	adminMux.HandleFunc("POST /admin/families", s.adminH.CreateFamily)
	adminMux.HandleFunc("POST /admin/reservations/sweep", s.adminH.Sweep)
	outerMux.Handle("/admin/", middleware.RequireAdmin(s.cfg.AdminUsername, s.cfg.AdminPasswordHash)(adminMux))

	// Cross-origin state-changing requests never reach a handler.
	cop := http.NewCrossOriginProtection()
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("security: cross-origin request rejected", "path", r.URL.Path, "origin", r.Header.Get("Origin"), "ip", middleware.RealIP(r))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"message":"Request could not be verified."}` + "\n"))
	}))

	handler := middleware.RequestLogger(s.logger.With("component", "http"))(cop.Handler(outerMux))
	return middleware.ClientIP(s.cfg.TrustedProxies)(handler)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.limiter, middleware.IPKey, s.cfg.HTTPRateLimit, s.cfg.HTTPRateWindow, s.logger.With("component", "ratelimit"))
	return rl(h).ServeHTTP
}
