package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router for the whole API surface: assets,
// jobs+SSE, rules, config, and the guardrail recording toggle.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/assets", func(r chi.Router) {
		r.Get("/", h.ListAssets)
		r.Get("/{id}", h.GetAsset)
		r.Get("/{id}/timeline", h.AssetTimeline)
		r.Post("/{id}/reindex", h.ReindexAsset)
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Get("/stream", h.JobStream)
		r.Get("/{id}", h.GetJob)
		r.Delete("/{id}", h.CancelJob)
	})

	r.Route("/api/queue", func(r chi.Router) {
		r.Post("/pause", h.PauseQueue)
		r.Post("/resume", h.ResumeQueue)
		r.Post("/resize", h.ResizeQueue)
	})

	r.Route("/api/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.UpsertRule)
		r.Get("/{id}", h.GetRule)
		r.Put("/{id}", h.UpsertRule)
		r.Delete("/{id}", h.DeleteRule)
	})

	r.Route("/api/config", func(r chi.Router) {
		r.Get("/", h.GetConfig)
		r.Put("/{key}", h.SetConfig)
	})

	r.Route("/api/guardrail", func(r chi.Router) {
		r.Get("/", h.GuardrailSnapshot)
		r.Post("/recording", h.SetRecording)
	})

	return r
}
