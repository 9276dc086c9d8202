/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     logrus request logging (requestLogger)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a frontend
  5. Identity:   Caller address from token or header (auth.go)

ROUTE GROUPS:
  /api/cars/*           Registry, pricing, booking
  /api/reservations/*   Returns, cancellations, overdue sweep
  /api/accounts/*       Per-address view
  /api/earnings/*       Owner withdrawals
  /api/platform/*       Version, settings, fees
  /api/events           Event log
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// DefaultAllowedOrigins are the local frontend origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. With no
// origins the local defaults are allowed.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CallerHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Identity.Middleware)

		// Car routes
		r.Route("/cars", func(r chi.Router) {
			r.Get("/", h.ListCars)
			r.Post("/", h.CreateCar)
			r.Get("/{id}", h.GetCar)
			r.Put("/{id}", h.UpdateCar)
			r.Get("/{id}/availability", h.GetAvailability)
			r.Get("/{id}/price", h.GetPrice)
			r.Get("/{id}/reservations", h.GetCarReservations)
			r.Get("/{id}/deposit", h.GetDeposit)
			r.Put("/{id}/deposit", h.SetDeposit)
			r.Post("/{id}/rentals", h.RentCar)
		})

		// Reservation routes
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/overdue", h.ListOverdue)
			r.Get("/{id}", h.GetReservation)
			r.Post("/{id}/return", h.ReturnReservation)
			r.Post("/{id}/cancel", h.CancelReservation)
		})

		r.Get("/fleet", h.ExportFleet)

		r.Get("/accounts/{address}", h.GetAccount)
		r.Post("/earnings/withdraw", h.WithdrawEarnings)

		// Platform routes
		r.Route("/platform", func(r chi.Router) {
			r.Get("/", h.GetPlatform)
			r.Post("/migrate", h.MigrateToV2)
			r.Put("/settings", h.UpdatePlatformSettings)
			r.Post("/fees/withdraw", h.WithdrawPlatformFees)
		})

		r.Get("/events", h.ListEvents)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request")
				} else {
					entry.Debug("request")
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
