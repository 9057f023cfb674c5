package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/reid-eval/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config, s.deps)
	evaluateHandler := handlers.NewEvaluateHandler(s.config, s.deps)
	reportsHandler := handlers.NewReportsHandler(s.deps)
	galleryHandler := handlers.NewGalleryHandler(s.deps)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Evaluation
		r.Post("/evaluate", evaluateHandler.Evaluate)

		// Reports
		r.Get("/reports", reportsHandler.List)
		r.Get("/reports/{id}", reportsHandler.Get)

		// Gallery
		r.Post("/gallery/search", galleryHandler.Search)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
