/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     zap request log (method, route, status, latency)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters, when a Recorder is configured
  5. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/calendar/*        Calendar resolution
  /api/quotes            Stay pricing
  /api/fees/*            Fee definitions and allocation
  /api/distance/*        Store distances
  /api/vehicles/*        Vehicles and price suggestions
  /api/suggestions/*     Batch suggestions
  /api/rules/*           Holiday and custom rule authoring
  /api/stores            Store locations
  /api/market/*          Market snapshots
  /api/condition-grades  Grade multiplier table
  /api/scenarios/*       Demo scenarios
  /metrics               Prometheus

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/calendar/resolve", h.ResolveCalendar)
		r.Post("/quotes", h.CreateQuote)

		// Fee routes
		r.Route("/fees", func(r chi.Router) {
			r.Get("/", h.ListFees)
			r.Post("/", h.CreateFee)
			r.Get("/{id}", h.GetFee)
			r.Post("/allocate", h.AllocateFees)
		})

		// Distance routes
		r.Route("/distance", func(r chi.Router) {
			r.Post("/stores", h.StoreDistance)
			r.Post("/matrix", h.DistanceMatrix)
		})

		// Vehicle and suggestion routes
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
			r.Get("/{id}/suggestions", h.VehicleSuggestions)
		})
		r.Post("/suggestions/batch", h.BatchSuggestions)

		// Rule authoring routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/holidays", h.ListHolidayRules)
			r.Post("/holidays", h.CreateHolidayRule)
			r.Get("/custom", h.ListCustomRules)
			r.Post("/custom", h.CreateCustomRule)
		})

		r.Get("/stores", h.ListStores)
		r.Post("/stores", h.CreateStore)
		r.Post("/market/snapshots", h.SaveMarketSnapshot)
		r.Get("/condition-grades", h.ListConditionGrades)
		r.Put("/condition-grades/{grade}", h.SaveConditionGrade)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
