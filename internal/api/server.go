package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/workdeck/workdeck-server/internal/audit"
	"github.com/workdeck/workdeck-server/internal/auth"
	"github.com/workdeck/workdeck-server/internal/cache"
	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/errcapture"
	"github.com/workdeck/workdeck-server/internal/guard"
	"github.com/workdeck/workdeck-server/internal/models"
	"github.com/workdeck/workdeck-server/internal/orphan"
	"github.com/workdeck/workdeck-server/internal/parity"
	"github.com/workdeck/workdeck-server/internal/storage"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config         *config.Config
	store          storage.Store
	auth           *auth.JWTManager
	statusGuard    *guard.TenantStatusGuard
	agreementGuard *guard.AgreementGuard
	capturer       *errcapture.Capturer
	fixer          *orphan.Fixer
	parity         *parity.Checker
	router         chi.Router
	server         *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, publisher *audit.Publisher) *RESTServer {
	logger := log.Logger

	capturer := errcapture.New(store, logger)

	s := &RESTServer{
		config: cfg,
		store:  store,
		auth:   auth.NewJWTManager(&cfg.JWT),
		statusGuard: guard.NewTenantStatusGuard(
			store,
			cache.New[*models.Tenant](cfg.Enforcement.TenantCacheTTL),
			cfg.Enforcement.Mode,
			capturer,
			logger,
		),
		agreementGuard: guard.NewAgreementGuard(
			store,
			cache.New[*models.Agreement](cfg.Enforcement.AgreementCacheTTL),
			cache.New[bool](cfg.Enforcement.AgreementCacheTTL),
			capturer,
			logger,
		),
		capturer: capturer,
		fixer:    orphan.NewFixer(store, publisher, logger),
		parity:   parity.NewChecker(store, logger),
		router:   chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware; the guards run on every request, after the principal is
	// attached and before any business handler
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", guard.TenantOverrideHeader},
		ExposedHeaders:   []string{guard.WarningHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// The capturer sits inside the principal middleware so persisted
	// failures carry tenant/user context, and outside the guards so guard
	// panics are still caught
	s.router.Use(s.principalMiddleware)
	s.router.Use(s.capturer.Middleware)
	s.router.Use(s.statusGuard.Middleware)
	s.router.Use(s.agreementGuard.Middleware)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})

	s.router.Handle("/metrics", metricsHandler())
}

// RunStartupChecks runs the schema parity check. Drift is logged and
// recorded, never fatal.
func (s *RESTServer) RunStartupChecks(ctx context.Context) {
	s.parity.Run(ctx)
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// principalMiddleware attaches the authenticated principal to the request
// context. A missing header passes through unauthenticated; rejecting those
// requests is the business routes' concern, not the guards'.
func (s *RESTServer) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), auth.PrincipalFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth rejects unauthenticated requests
func (s *RESTServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireOperator rejects everyone but platform operators
func (s *RESTServer) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !principal.IsOperator() {
			s.respondError(w, http.StatusForbidden, "operator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
