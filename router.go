package main

import (
	"github.com/go-chi/chi/v5"

	"relaywatch/handlers"
	"relaywatch/pkg/metrics"
)

// Router agrupa los handlers HTTP periféricos sobre la cola de jobs.
type Router struct {
	jobs   *handlers.JobsHandler
	health *handlers.HealthHandler
}

// NewRouter crea un nuevo router con todos los handlers periféricos.
func NewRouter(jobs *handlers.JobsHandler, health *handlers.HealthHandler) *Router {
	return &Router{jobs: jobs, health: health}
}

// SetupRoutes monta todas las rutas sobre un chi.Router.
func (ro *Router) SetupRoutes(r chi.Router) {
	r.Get("/api/health", ro.health.Health)
	r.Get("/api/ready", ro.health.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", ro.jobs.List)
		r.Post("/", ro.jobs.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", ro.jobs.Get)
			r.Delete("/", ro.jobs.Cancel)
			r.Get("/result", ro.jobs.Result)
			r.Post("/answers", ro.jobs.Answers)
			r.Get("/ws", ro.jobs.Stream)
		})
	})

	r.Get("/api/history/{project}", ro.jobs.ProjectHistory)
}
