package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidstreamlabs/vidstream-backend/api/controllers"
	"github.com/vidstreamlabs/vidstream-backend/api/middleware"
	"github.com/vidstreamlabs/vidstream-backend/internal/auth"
	"github.com/vidstreamlabs/vidstream-backend/pkg/auth/session"
	"github.com/vidstreamlabs/vidstream-backend/pkg/config"
	"github.com/vidstreamlabs/vidstream-backend/pkg/db"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
	"github.com/vidstreamlabs/vidstream-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	authService auth.Service,
	registerService auth.RegisterService,
	videoService controllers.VideoService,
	meters *metrics.VideoMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	var redisP controllers.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Playback is public: possession of the id grants access.
	r.Get("/videos/{videoId}/stream", controllers.VideoStream(videoService, meters, cfg.Media.StreamChunkSize, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
			r.Get("/me", controllers.AuthMe(authService, logg))
			r.Post("/logout", controllers.AuthLogout(authService, logg))
		})
	})

	r.Route("/api/v1/videos", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Post("/", controllers.VideoUpload(videoService, logg))
		r.Get("/", controllers.VideoList(videoService, logg))
		r.Get("/{videoId}", controllers.VideoDetail(videoService, logg))
		r.Delete("/{videoId}", controllers.VideoDelete(videoService, logg))
	})

	return r
}
