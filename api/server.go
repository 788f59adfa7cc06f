/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/commitments/*   Commitment, term, and payment history management
  /api/terms/*         Term lookup and lifecycle
  /api/payments/*      Payment records
  /api/grid            Multi-month resolution grid
  /api/months/*        Single-month totals
  /api/anomalies       Orphan payments
  /api/export/*        CSV export

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		// Commitment routes
		r.Route("/commitments", func(r chi.Router) {
			r.Get("/", h.ListCommitments)
			r.Post("/", h.CreateCommitment)
			r.Get("/{id}", h.GetCommitment)
			r.Put("/{id}", h.UpdateCommitment)
			r.Post("/{id}/archive", h.ArchiveCommitment)
			r.Post("/{id}/restore", h.RestoreCommitment)
			r.Get("/{id}/terms", h.ListTerms)
			r.Post("/{id}/terms", h.CreateTerm)
			r.Get("/{id}/payments", h.ListPayments)
		})

		// Term routes
		r.Route("/terms", func(r chi.Router) {
			r.Get("/{id}", h.GetTerm)
			r.Post("/{id}/close", h.CloseTerm)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// View routes
		r.Get("/grid", h.GetGrid)
		r.Get("/months/{year}/{month}", h.GetMonth)
		r.Get("/anomalies", h.GetAnomalies)
		r.Get("/export/csv", h.ExportCSV)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
