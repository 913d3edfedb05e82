package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocation/models", func(r chi.Router) {
		r.Get("/", h.HandleListModels)
		r.Post("/", h.HandleCreateModel)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetModel)
			r.Put("/", h.HandleUpdateModel)
			r.Delete("/", h.HandleDeleteModel)
			r.Get("/drift", h.HandleGetDrift)         // Drift of an account against the model
			r.Get("/rebalance", h.HandleGetRebalance) // Whole-portfolio rebalance suggestions
		})
	})
}
