package calculator

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all calculator endpoints onto the given router
// under the /calculator prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/calculator", func(r chi.Router) {
		r.Post("/evaluate", h.Evaluate)

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.CreateTemplate)
			r.Get("/", h.ListTemplates)
			r.Get("/{templateID}", h.GetTemplate)
			r.Post("/{templateID}/evaluate", h.EvaluateTemplate)
		})

		r.Route("/line-items/{lineItemID}/calculations", func(r chi.Router) {
			r.Post("/", h.SaveCalculation)
			r.Get("/", h.ListCalculations)
		})

		r.Get("/calculations/{calculationID}", h.GetCalculation)
	})
}
