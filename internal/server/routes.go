package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Health check
	r.Get("/health", s.health)

	// Pattern store management
	r.Route("/patterns", func(r chi.Router) {
		r.Get("/", s.listPatterns)
		r.Post("/", s.addPattern)
		r.Delete("/", s.clearPatterns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPattern)
			r.Delete("/", s.removePattern)
		})
	})

	// Pending approval requests
	r.Route("/approvals", func(r chi.Router) {
		r.Get("/", s.listApprovals)
		r.Post("/{id}", s.respondApproval)
	})

	// Gated prompt execution
	r.Post("/run", s.runPrompt)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)
}
