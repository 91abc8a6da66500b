package http

import (
	"context"
	"net/http"
	"time"

	"github.com/funnelhq/oauth-service/internal/application"
	"github.com/funnelhq/oauth-service/internal/domain"
	"github.com/funnelhq/oauth-service/internal/infrastructure/config"
	"github.com/funnelhq/oauth-service/internal/infrastructure/database"
	"github.com/funnelhq/oauth-service/internal/infrastructure/repository"
	"github.com/funnelhq/oauth-service/internal/interfaces/http/handlers"
	"github.com/funnelhq/oauth-service/internal/interfaces/http/middleware/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Router wires the OAuth2 provider behind chi
type Router struct {
	router *chi.Mux
	db     *database.Postgres
}

// NewRouter builds the provider over Postgres storage and mounts the
// OAuth2 surface
func NewRouter(
	db *database.Postgres,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	oauthRepo := repository.NewOAuth2Repository(db, logger)
	consentRepo := repository.NewConsentRepository(db, logger)
	provider := application.NewProvider(oauthRepo, consentRepo, cfg, logger)
	oauth2Handler := handlers.NewOAuth2Handler(provider, logger)

	// Housekeeping sweep; expiry is always also checked at access time
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := provider.CleanupExpired(context.Background()); err != nil {
				logger.Error("Expired token cleanup failed", zap.Error(err))
			}
		}
	}()

	router := createRouter()

	rateLimiter := ratelimit.NewRateLimiter(100, 200, 3*time.Minute, logger)
	router.Use(rateLimiter.Middleware)
	router.Use(subjectFromHeader)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			// Check database connection
			if err := db.Ping(); err != nil {
				logger.Error("Database health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database connection failed"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	router.Get("/.well-known/oauth-authorization-server", oauth2Handler.MetadataHandler)

	router.Route("/oauth2", func(r chi.Router) {
		r.Get("/authorize", oauth2Handler.AuthorizeHandler)
		r.Post("/token", oauth2Handler.TokenHandler)
		r.Post("/revoke", oauth2Handler.RevokeHandler)
		r.Post("/introspect", oauth2Handler.IntrospectHandler)
		r.Post("/clients", oauth2Handler.RegisterClientHandler)
	})

	return &Router{router: router, db: db}
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

// subjectFromHeader lifts the authenticated user set by the upstream
// session layer into the request context. End-user authentication
// itself happens outside this service.
func subjectFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subject := r.Header.Get("X-Authenticated-User"); subject != "" {
			r = r.WithContext(domain.WithSubject(r.Context(), subject))
		}
		next.ServeHTTP(w, r)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
