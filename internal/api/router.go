package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/metrics"
)

type RouterConfig struct {
	Service        BookingService
	Auth           *Authenticator
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	Postgres       Pinger
	Redis          Pinger
	RateLimitRPS   float64
	RateLimitBurst int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	h := NewHandlers(cfg.Service, cfg.Logger)

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// public directory and availability reads
	r.Get("/doctors", h.ListDoctors)
	r.Get("/doctors/specializations", h.ListSpecializations)
	r.Get("/clinics/{id}/doctors", h.ListClinicDoctors)
	r.Get("/doctors/{id}", h.GetDoctor)
	r.Get("/doctors/{id}/availability", h.GetAvailability)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.RequireActor)

		r.Get("/doctors/{id}/schedule", h.DoctorSchedule)
		r.Get("/doctors/{id}/appointments", h.ListDoctorAppointments)
		r.Get("/patients/{id}/appointments", h.ListPatientAppointments)
		r.Get("/appointments/{id}", h.GetAppointment)

		r.Group(func(r chi.Router) {
			if cfg.RateLimitRPS > 0 {
				r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			r.Post("/appointments", h.CreateAppointment)
			r.Patch("/appointments/{id}", h.UpdateAppointment)
			r.Delete("/appointments/{id}", h.DeleteAppointment)
		})
	})

	return r
}
