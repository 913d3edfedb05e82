package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/holdings", h.HandleGetHoldings) // All accounts

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.HandleListAccounts)
			r.Post("/", h.HandleCreateAccount)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/holdings", h.HandleGetHoldings)
				r.Put("/positions/{ticker}", h.HandleUpsertPosition)
				r.Delete("/positions/{ticker}", h.HandleDeletePosition)
			})
		})

		r.Get("/securities/{ticker}", h.HandleGetSecurity)
		r.Put("/securities/{ticker}", h.HandleUpsertSecurity)
		r.Put("/quotes/{ticker}", h.HandleSetQuote)
	})
}
