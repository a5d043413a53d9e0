package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Agreements
	r.Route("/agreements", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/current", s.HandleCurrentAgreement)
			r.Post("/accept", s.HandleAcceptAgreement)
		})

		// Administration: creating and activating agreements
		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Post("/", s.HandleCreateAgreement)
			r.Post("/{id}/activate", s.HandleActivateAgreement)
		})
	})

	// Tenants: self-service onboarding is public (and exempt from both
	// guards); everything else is operator administration
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/onboard", s.HandleOnboardTenant)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Get("/", s.HandleListTenants)
			r.Put("/{id}/status", s.HandleUpdateTenantStatus)
		})
	})

	// Ops endpoints (operator-only, out of the request hot path)
	r.Route("/ops", func(r chi.Router) {
		r.Use(s.requireOperator)
		r.Get("/orphans", s.HandleOrphanReport)
		r.Post("/orphans/fix", s.HandleOrphanFix)
		r.Post("/parity", s.HandleParityCheck)
		r.Get("/errors", s.HandleListErrorLogs)
	})
}
