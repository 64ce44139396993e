package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/scheduling-engine/internal/appointment"
	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
	"github.com/clinicdesk/scheduling-engine/internal/waitlist"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability availability.Repository
	Waitlist     *waitlist.Service
	Bus          *eventbus.Bus
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *zap.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", getAvailabilityHandler(cfg.Appointments))

	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/transition", transitionAppointmentHandler(cfg.Appointments))

	r.Get("/schedule/{doctorID}", getScheduleHandler(cfg.Availability))
	r.Put("/schedule/{doctorID}", putScheduleHandler(cfg.Availability))

	r.Post("/blocks", createBlockHandler(cfg.Availability))
	r.Get("/blocks", listBlocksHandler(cfg.Availability))
	r.Delete("/blocks/{id}", deleteBlockHandler(cfg.Availability))

	r.Post("/waitlist", addWaitlistHandler(cfg.Waitlist))
	r.Get("/waitlist", listWaitlistHandler(cfg.Waitlist))
	r.Post("/waitlist/{id}/advance", advanceWaitlistHandler(cfg.Waitlist))

	r.Get("/events", listEventsHandler(cfg.Bus))

	return r
}
