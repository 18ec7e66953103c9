package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/order-desk/app"
	"github.com/upb/order-desk/handlers"
)

// SetupRoutes configures all application routes and middleware. Every
// route, including unknown ones, passes through the request gate.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(deps.Metrics.Middleware)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(deps.Gate.Handle)

	logger := deps.Logger
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Audit, logger)
	healthHandler := handlers.NewHealthHandler(deps.DB, logger)
	devHandler := handlers.NewDevHandler(deps.Seeder, deps.Config.IsDevelopment(), logger)
	orderHandler := handlers.NewOrderHandler(deps.OrderSvc, logger)
	assistantHandler := handlers.NewAssistantHandler(deps.Assistant, logger)
	auditHandler := handlers.NewAuditHandler(deps.Audit, logger)

	r.Route("/api", func(r chi.Router) {
		// Public (listed in the gate's public path set)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/dev/health", healthHandler.HandleHealth)
		r.Post("/dev/seed", devHandler.HandleSeed)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.HandleList)
			r.Post("/", orderHandler.HandleCreate)
			r.Get("/summary", orderHandler.HandleSummary)
			r.Get("/{id}", orderHandler.HandleGet)
			r.Put("/{id}", orderHandler.HandleUpdate)
			r.Delete("/{id}", orderHandler.HandleDelete)
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Use(deps.RateLimiter.Handler)
			r.Post("/chat", assistantHandler.HandleChat)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/logs", auditHandler.HandleList)
			r.Get("/stats", auditHandler.HandleStats)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
