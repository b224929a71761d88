package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

type RouterConfig struct {
	Slots        *slot.Service
	Appointments *appointment.Service
	Waitlist     *waitlist.Service
	Checks       []DependencyCheck
	CORSOrigins  []string
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	slots := NewSlotHandler(cfg.Slots, cfg.Logger)
	appts := NewAppointmentHandler(cfg.Appointments, cfg.Logger)
	wl := NewWaitlistHandler(cfg.Waitlist, cfg.Logger)

	r.Route("/slots", slots.Routes)
	r.Route("/appointments", appts.Routes)
	r.Route("/patients/{patientId}", appts.PatientRoutes)
	r.Route("/waitlist", wl.Routes)

	return r
}
