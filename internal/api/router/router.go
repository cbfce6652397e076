package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/consultdesk/booking-engine/internal/http/handlers"
	httpmiddleware "github.com/consultdesk/booking-engine/internal/http/middleware"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Reservations       *handlers.ReservationHandler
	AdminSchedule      *handlers.AdminScheduleHandler
	AdminAppointments  *handlers.AdminAppointmentsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitPerSec    float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: booking flow, health, metrics.
	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.Availability != nil {
			public.Get("/availability", cfg.Availability.List)
		}
		if cfg.Reservations != nil {
			public.Route("/reservations", func(r chi.Router) {
				r.Post("/", cfg.Reservations.Reserve)
				r.Delete("/{holdID}", cfg.Reservations.Release)
				r.Post("/{holdID}/confirm", cfg.Reservations.Confirm)
			})
		}
	})

	// Admin routes, protected by an HMAC-signed JWT.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.AdminSchedule != nil {
				admin.Get("/schedule", cfg.AdminSchedule.Get)
				admin.Put("/schedule", cfg.AdminSchedule.Put)
			}
			if cfg.AdminAppointments != nil {
				admin.Route("/appointments", func(r chi.Router) {
					r.Get("/", cfg.AdminAppointments.List)
					r.Post("/", cfg.AdminAppointments.Create)
					r.Get("/{id}", cfg.AdminAppointments.Get)
					r.Post("/{id}/cancel", cfg.AdminAppointments.Cancel)
					r.Post("/{id}/complete", cfg.AdminAppointments.Complete)
					r.Post("/{id}/no-show", cfg.AdminAppointments.NoShow)
					r.Post("/{id}/reschedule", cfg.AdminAppointments.Reschedule)
				})
				admin.Get("/days/{date}/summary", cfg.AdminAppointments.DaySummary)
			}
		})
	}

	return r
}
