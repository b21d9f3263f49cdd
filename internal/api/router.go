package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service Scheduler
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Practitioner availability
	r.Get("/practitioners/{id}/availability", availabilityHandler(cfg.Service))
	r.Get("/practitioners/{id}/appointments", practitionerDayHandler(cfg.Service))
	r.Put("/practitioners/{id}/recurring-rules", recurringRuleHandler(cfg.Service))
	r.Post("/practitioners/{id}/blocks", blockRangeHandler(cfg.Service))
	r.Post("/practitioners/{id}/slots", blockSlotHandler(cfg.Service))

	return r
}
