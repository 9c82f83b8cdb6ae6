package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-tracker/internal/manager"
)

// Pinger проверяет доступность хранилища для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter собирает HTTP API. Маршруты /tasks доступны только с bearer-токеном.
func NewRouter(tm *manager.TaskManager, um *manager.UserManager, health Pinger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	// Режим разработки: API должно быть доступно с любого origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead,
		},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler(health))
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/register", registerHandler(um))
	r.Post("/token", tokenHandler(um))

	// /tasks и /tasks/ обслуживаются одинаково
	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireAuth(um))

		r.Post("/", createTaskHandler(tm))
		r.Get("/", listTasksHandler(tm))
		r.Get("/{id}", getTaskHandler(tm))
		r.Put("/{id}", updateTaskHandler(tm))
		r.Delete("/{id}", deleteTaskHandler(tm))
	})

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
