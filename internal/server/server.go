package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bethesda/readingplan/internal/handler"
	"github.com/bethesda/readingplan/internal/middleware"
	"github.com/bethesda/readingplan/internal/plan"
	"github.com/bethesda/readingplan/internal/progress"
	"github.com/bethesda/readingplan/internal/push"
	"github.com/bethesda/readingplan/internal/store"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

// Config carries the plan and HTTP settings the server needs beyond the
// database.
type Config struct {
	Catalog        *plan.Catalog
	Calendar       handler.CalendarFunc
	OriginPatterns []string
	// Mailer, when set, sends welcome and approval emails.
	Mailer handler.Mailer
	// Push, when configured, enables the reminder subscription routes.
	Push *push.Service
	// LoginLimit requests per LoginWindow are allowed per client IP on
	// the login and register endpoints.
	LoginLimit  int
	LoginWindow time.Duration
	Now         func() time.Time
}

type Server struct {
	db           *sql.DB
	cfg          Config
	hub          *ws.Hub
	registry     *progress.Registry
	authH        *handler.AuthHandler
	progressH    *handler.ProgressHandler
	recordsH     *handler.RecordsHandler
	adminH       *handler.AdminHandler
	pushH        *handler.PushHandler
	pushStore    *store.PushStore
	sessionStore *store.SessionStore
	resetStore   *store.PasswordResetStore
	roleStore    *store.RoleStore
	profileStore *store.ProfileStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	if cfg.Catalog == nil {
		cfg.Catalog = plan.Default()
	}
	if cfg.Calendar == nil {
		cfg.Calendar = func(now time.Time) plan.Calendar { return plan.YearCalendar(now, time.UTC) }
	}
	if cfg.LoginLimit == 0 {
		cfg.LoginLimit = 10
	}
	if cfg.LoginWindow == 0 {
		cfg.LoginWindow = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	registry := progress.NewRegistry()

	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	roleStore := store.NewRoleStore(db)
	sessionStore := store.NewSessionStore(db)
	resetStore := store.NewPasswordResetStore(db)
	progressStore := store.NewProgressStore(db)
	pushStore := store.NewPushStore(db)

	var pushH *handler.PushHandler
	if cfg.Push != nil && cfg.Push.Configured() {
		pushH = handler.NewPushHandler(pushStore, cfg.Push, cfg.Push.VAPIDPublicKey(), logger.With("component", "push"))
	}

	return &Server{
		db:           db,
		cfg:          cfg,
		hub:          hub,
		registry:     registry,
		authH:        handler.NewAuthHandler(userStore, profileStore, roleStore, sessionStore, resetStore, hub, cfg.Mailer, logger.With("component", "auth")),
		progressH:    handler.NewProgressHandler(progressStore, registry, cfg.Catalog, cfg.Calendar, hub, cfg.Now, logger.With("component", "progress")),
		recordsH:     handler.NewRecordsHandler(progressStore, registry, hub, cfg.Now, logger.With("component", "records")),
		adminH:       handler.NewAdminHandler(profileStore, progressStore, roleStore, registry, hub, cfg.Mailer, cfg.Now, logger.With("component", "admin")),
		pushH:        pushH,
		pushStore:    pushStore,
		sessionStore: sessionStore,
		resetStore:   resetStore,
		roleStore:    roleStore,
		profileStore: profileStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// PushStore returns the subscription store for the reminder job.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// ResetStore returns the password reset store for cleanup tasks.
func (s *Server) ResetStore() *store.PasswordResetStore {
	return s.resetStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Registry returns the per-user progress engines for eviction and rollover.
func (s *Server) Registry() *progress.Registry {
	return s.registry
}

// Hub returns the websocket hub for scheduled broadcasts.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/forgot", s.rateLimitedHandler(s.authH.ForgotPassword))
	outerMux.HandleFunc("POST /api/auth/reset", s.rateLimitedHandler(s.authH.ResetPassword))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.roleStore, s.profileStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, s.cfg.LoginLimit, s.cfg.LoginWindow)
	return rl(h).ServeHTTP
}

func approved(h http.HandlerFunc) http.Handler {
	return middleware.RequireApproved(h)
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PUT /api/me/phone", s.authH.UpdatePhone)

	// Plan and progress, approved members only
	mux.Handle("GET /api/plan", approved(s.progressH.Plan))
	mux.Handle("GET /api/progress", approved(s.progressH.Stats))
	mux.Handle("POST /api/progress/refresh", approved(s.progressH.Refresh))
	mux.Handle("PUT /api/progress/{day}", approved(s.progressH.Mark))
	mux.Handle("DELETE /api/progress/{day}", approved(s.progressH.Unmark))

	// Raw completion records
	mux.Handle("GET /api/records/progress", approved(s.recordsH.List))
	mux.Handle("PUT /api/records/progress/{day}", approved(s.recordsH.Upsert))
	mux.Handle("DELETE /api/records/progress/{day}", approved(s.recordsH.Delete))

	// Admin
	mux.Handle("GET /api/admin/profiles", admin(s.adminH.ListProfiles))
	mux.Handle("PUT /api/admin/profiles/{user_id}/status", admin(s.adminH.UpdateStatus))
	mux.Handle("DELETE /api/admin/users/{user_id}", admin(s.adminH.RemoveUser))
	mux.Handle("GET /api/admin/summary", admin(s.adminH.Summary))
	mux.Handle("GET /api/admin/export", admin(s.adminH.Export))

	// Reading reminders
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.Handle("GET /api/push/subscriptions", approved(s.pushH.List))
		mux.Handle("POST /api/push/subscriptions", approved(s.pushH.Subscribe))
		mux.Handle("DELETE /api/push/subscriptions/{id}", approved(s.pushH.Unsubscribe))
		mux.Handle("POST /api/push/test", approved(s.pushH.Test))
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns, s.logger.With("component", "websocket")))
}
