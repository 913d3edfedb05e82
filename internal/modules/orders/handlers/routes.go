package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all order routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.HandleList)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/preview", h.HandlePreview)
			r.Post("/submit", h.HandleSubmit)
			r.Post("/status", h.HandleUpdateStatus)
			r.Post("/fills", h.HandleRecordFill)
		})
	})
}
