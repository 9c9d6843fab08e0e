package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wzin/datawipe/internal/api/middleware"
)

// NewRouter wires the HTTP routes over the given handler.
func NewRouter(handler *DeletionHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/batches", handler.SubmitBatch)
		r.Get("/batches/{id}", handler.GetBatch)

		r.Get("/tasks", handler.ListTasks)
		r.Get("/tasks/{id}", handler.GetTask)
		r.Post("/tasks/{id}/retry", handler.ManualRetry)
		r.Post("/tasks/{id}/undo", handler.Undo)

		r.Post("/engine/pause", handler.Pause)
		r.Post("/engine/resume", handler.Resume)
		r.Get("/engine/stats", handler.Stats)

		r.Get("/events", handler.Events)

		r.Post("/credentials/reveal", handler.RevealCredential)
	})

	return r
}
