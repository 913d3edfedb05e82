package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers harvesting routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/harvesting", func(r chi.Router) {
		r.Get("/proposals", h.HandleGetProposals)
		r.Post("/promote", h.HandlePromote)
		r.Get("/restrictions", h.HandleGetRestrictions)
	})
}
