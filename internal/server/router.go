package server

import (
	"log/slog"
	"net/http"
	"time"

	"staffbook-backend/internal/config"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP surface the router mounts.
type Handlers struct {
	Health        handler.HealthHandler
	Docs          handler.DocsHandler
	Auth          handler.AuthHandler
	Users         handler.UserHandler
	Handbook      handler.HandbookHandler
	Reports       handler.ReportHandler
	SOPs          handler.SOPHandler
	Tasks         handler.TaskHandler
	Incidents     handler.IncidentHandler
	Notifications handler.NotificationHandler
	FCM           handler.FCMHandler
	Uploads       handler.UploadHandler
	Dashboard     handler.DashboardHandler
	Activity      handler.ActivityLogHandler
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config, logger *slog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))

	h.Health.RegisterRoutes(r)
	h.Docs.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	// credential endpoints get a tighter budget
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(authRateLimit(cfg.RateLimitPerMinute), time.Minute))
		h.Auth.RegisterRoutes(ar)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret))
		// every role; gates and ownership are enforced per operation
		pr.Group(func(sr chi.Router) {
			sr.Use(RequireRole(domain.RoleEmployee, domain.RoleManager, domain.RoleOwner))
			h.Users.RegisterRoutes(sr)
			h.Handbook.RegisterRoutes(sr)
			h.SOPs.RegisterRoutes(sr)
			h.Tasks.RegisterRoutes(sr)
			h.Incidents.RegisterRoutes(sr)
			h.Notifications.RegisterRoutes(sr)
			h.FCM.RegisterRoutes(sr)
			h.Uploads.RegisterRoutes(sr)
		})
		// management only
		pr.Group(func(mr chi.Router) {
			mr.Use(RequireRole(domain.RoleManager, domain.RoleOwner))
			h.Reports.RegisterRoutes(mr)
			h.Dashboard.RegisterRoutes(mr)
			h.Activity.RegisterRoutes(mr)
		})
	})

	return r
}

func authRateLimit(perMinute int) int {
	if n := perMinute / 10; n >= 10 {
		return n
	}
	return 10
}
