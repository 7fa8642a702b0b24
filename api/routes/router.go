package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate-backend/api/controllers"
	"github.com/keygate/keygate-backend/api/middleware"
	"github.com/keygate/keygate-backend/internal/activations"
	"github.com/keygate/keygate-backend/internal/auth"
	"github.com/keygate/keygate-backend/internal/keys"
	"github.com/keygate/keygate-backend/pkg/auth/session"
	"github.com/keygate/keygate-backend/pkg/config"
	"github.com/keygate/keygate-backend/pkg/db"
	"github.com/keygate/keygate-backend/pkg/logger"
	"github.com/keygate/keygate-backend/pkg/metrics"
	"github.com/keygate/keygate-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	activationService activations.Service,
	keysService keys.Service,
	licensingMetrics *metrics.LicensingMetrics,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	activatePolicy := middleware.NewRateLimitPolicy(
		"activate",
		cfg.AuthRateLimit.ActivateWindow,
		cfg.AuthRateLimit.ActivateIPLimit,
		cfg.AuthRateLimit.ActivateKeyLimit,
		"key",
	)
	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
		"email",
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Activation protocol. These are the only endpoints installed clients
	// talk to; their success bodies are flat, not enveloped.
	r.With(middleware.RateLimit(activatePolicy, redisClient, logg)).
		Post("/activate", controllers.Activate(activationService, licensingMetrics, logg))
	r.Post("/heartbeat", controllers.Heartbeat(activationService, licensingMetrics, logg))

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, sessionManager, logg))

		r.Route("/keys", func(r chi.Router) {
			r.Post("/", controllers.KeysCreate(keysService, logg))
			r.Get("/", controllers.KeysList(keysService, logg))
			r.Get("/{keyId}", controllers.KeysGet(keysService, logg))
			r.Patch("/{keyId}", controllers.KeysUpdate(keysService, logg))
			r.Post("/{keyId}/enable", controllers.KeyEnable(keysService, logg))
			r.Post("/{keyId}/disable", controllers.KeyDisable(keysService, logg))
			r.Delete("/{keyId}", controllers.KeyDelete(keysService, logg))
			r.Post("/{keyId}/unlock", controllers.KeyUnlock(keysService, logg))
		})

		r.Post("/activations/{activationId}/force-unbind", controllers.ActivationForceUnbind(keysService, logg))
	})

	return r
}
