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
  4. CORS:       Cross-origin requests for front-office clients

ROUTE GROUPS:
  /api/business-date/*         Operating-day authority
  /api/room-types, /inventory  Room types and the inventory ledger
  /api/rate-plans, /rates/*    Pricing
  /api/availability, /stays/*  Booking surface
  /api/blocks, /overbooking-policies
  /api/audit/*                 Night audit
  /api/scenarios/*             Demo scenarios

SECURITY NOTE:
  No authentication middleware. The business-date override checks a role
  field; everything else is open. Front with a gateway in production.

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
		// Business date authority
		r.Route("/business-date", func(r chi.Router) {
			r.Get("/", h.GetBusinessDate)
			r.Put("/", h.SetBusinessDate)
			r.Post("/advance", h.AdvanceBusinessDate)
		})

		// Room types and inventory
		r.Route("/room-types", func(r chi.Router) {
			r.Get("/", h.ListRoomTypes)
			r.Post("/", h.CreateRoomType)
		})
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.GetInventory)
			r.Post("/seed", h.SeedInventory)
		})

		// Pricing
		r.Route("/rate-plans", func(r chi.Router) {
			r.Get("/", h.ListRatePlans)
			r.Post("/", h.CreateRatePlan)
		})
		r.Route("/rates", func(r chi.Router) {
			r.Post("/", h.CreateRate)
			r.Get("/effective", h.GetEffectiveRate)
			r.Get("/derived", h.GetDerivedRate)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Put("/base", h.UpdateBaseRate)
		})

		// Booking surface
		r.Get("/availability", h.CheckAvailability)
		r.Route("/stays", func(r chi.Router) {
			r.Post("/", h.BookStay)
			r.Get("/{id}", h.GetStay)
			r.Post("/{id}/cancel", h.CancelStay)
			r.Post("/{id}/check-in", h.CheckInStay)
			r.Post("/{id}/check-out", h.CheckOutStay)
		})

		// Blocks and overbooking policies
		r.Route("/blocks", func(r chi.Router) {
			r.Post("/", h.CreateBlock)
			r.Post("/{id}/release", h.ReleaseBlock)
		})
		r.Post("/overbooking-policies", h.CreateOverbookingPolicy)

		// Night audit
		r.Route("/audit", func(r chi.Router) {
			r.Post("/run", h.RunAudit)
			r.Get("/runs/{date}", h.GetAuditRun)
			r.Get("/revenue/{date}", h.GetRevenue)
			r.Get("/discrepancies", h.GetDiscrepancies)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
