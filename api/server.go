/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/costs/*        Cost ledger operations
  /api/pricing/*      Quote and reverse pricing
  /api/statements/*   Statement import and period locks
  /api/reports/*      Category and revenue reports
  /api/products/*     Catalog admin
  /api/orders/*       Order admin
  /api/reset          Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Cost ledger routes
		r.Route("/costs", func(r chi.Router) {
			r.Route("/{subject}", func(r chi.Router) {
				r.Post("/", h.SetCost)
				r.Get("/", h.GetCurrentCost)
				r.Get("/history", h.GetCostHistory)
				r.Get("/as-of", h.GetCostAsOf)
				r.Get("/average", h.GetAverageCost)
				r.Get("/change", h.GetCostChange)
			})
		})
		r.Get("/resolve", h.ResolveCost)

		// Pricing routes
		r.Route("/pricing", func(r chi.Router) {
			r.Post("/quote", h.Quote)
			r.Post("/reverse", h.ReversePrice)
			r.Get("/fee-model", h.GetFeeModel)
		})

		// Statement routes
		r.Route("/statements", func(r chi.Router) {
			r.Post("/import", h.ImportStatement)
			r.Post("/import/csv", h.ImportStatementCSV)
			r.Post("/unlock", h.UnlockPeriod)
		})
		r.Get("/fees", h.ListFees)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/categories", h.GetCategoryTotals)
			r.Get("/net-revenue", h.GetNetRevenue)
		})

		// Admin routes
		r.Route("/products", func(r chi.Router) {
			r.Put("/{sku}", h.PutProduct)
			r.Get("/{sku}", h.GetProduct)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Put("/{id}", h.PutOrder)
			r.Get("/{id}", h.GetOrder)
		})
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
