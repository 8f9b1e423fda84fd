/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, carried into the logger
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/items, /api/sizes, /api/customers   Reference catalog
  /api/catalog/defaults                    First-run seeding
  /api/movements/*                         Ledger appends and listing
  /api/stock/*, /api/dashboard             Aggregates
  /api/integrity, /api/integrity/last      Running balance check
  /api/reports/export                      CSV / XLSX download
  /api/scenarios                           Demo data
  /healthz                                 Liveness

SECURITY NOTE:
  No authentication middleware. The ledger is a shared workspace.

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

	"github.com/warp/stock-ledger/logging"
	"github.com/warp/stock-ledger/stock"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         *logging.Logger
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Catalog routes
		for _, kind := range stock.CatalogKinds {
			r.Route("/"+string(kind), func(r chi.Router) {
				r.Get("/", h.ListCatalog(kind))
				r.Post("/", h.CreateCatalogEntry(kind))
				r.Get("/{id}", h.GetCatalogEntry(kind))
				r.Delete("/{id}", h.DeleteCatalogEntry(kind))
			})
		}
		r.Post("/catalog/defaults", h.SeedDefaults)

		// Movement routes
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Get("/facets", h.GetFacets)
			r.Post("/received", h.ReceiveStock)
			r.Post("/issued", h.IssueStock)
		})

		// Stock routes
		r.Route("/stock", func(r chi.Router) {
			r.Get("/", h.GetStock)
			r.Get("/low", h.GetLowStock)
		})
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/integrity", h.CheckIntegrity)
		if h.Scheduler != nil {
			r.Get("/integrity/last", h.Scheduler.LastIntegrity)
		}

		// Report routes
		r.Get("/reports/export", h.ExportReport)

		// Demo data
		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	return r
}

// RequestLogger logs one line per request and stores a request-scoped
// logger (tagged with the request id) in the context for handlers.
func RequestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With("request_id", middleware.GetReqID(r.Context()))
			r = r.WithContext(logging.WithLogger(r.Context(), reqLog))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLog.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
