package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/axes", func(r chi.Router) {
			r.Get("/", s.handleListAxes)
			r.Route("/{axis}", func(r chi.Router) {
				r.Get("/", s.handleGetAxis)
				r.Put("/", s.handleSetAxis)
				r.Delete("/transition", s.handleCancelTransition)
			})
		})

		r.Get("/drivers", s.handleListDrivers)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Put("/max-brightness/{family}", s.handleSetMaxBrightness)
			r.Delete("/max-brightness/{family}", s.handleClearMaxBrightness)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Put("/", s.handlePublishDevices)
		})

		r.Get("/audit", s.handleListAudit)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
