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
  4. CORS:       Cross-origin requests for the mobile/web client
  5. RequireSession: Bearer-token auth on user routes

ROUTE GROUPS:
  /api/auth/*          Guest sign-in and sign-out (public)
  /api/partner/*       Voucher validate/use for partner terminals (public)
  /api/*               Everything else behind RequireSession
  /healthz             Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Session middleware
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

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public: session bootstrap
		r.Route("/auth", func(r chi.Router) {
			r.Post("/guest", h.GuestSignIn)
			r.Post("/signout", h.SignOut)
		})

		// Public: partner terminals authenticate out of band, not with
		// user sessions
		r.Route("/partner/vouchers/{code}", func(r chi.Router) {
			r.Get("/validate", h.ValidateVoucher)
			r.Post("/use", h.UseVoucher)
		})

		// User routes
		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.Sessions))

			r.Post("/steps", h.SubmitSteps)

			r.Route("/credits", func(r chi.Router) {
				r.Get("/balance", h.GetBalance)
				r.Get("/transactions", h.GetTransactions)
			})

			r.Route("/rewards", func(r chi.Router) {
				r.Get("/", h.ListRewards)
				r.Get("/{id}", h.GetReward)
				r.Get("/{id}/eligibility", h.CheckEligibility)
				r.Post("/{id}/redeem", h.Redeem)
			})

			r.Route("/redemptions", func(r chi.Router) {
				r.Get("/", h.GetHistory)
				r.Post("/{id}/cancel", h.CancelRedemption)
			})

			r.Get("/vouchers/active", h.GetActiveVouchers)
			r.Get("/stats", h.GetStats)
			r.Get("/achievements", h.GetAchievements)
		})
	})

	return r
}
