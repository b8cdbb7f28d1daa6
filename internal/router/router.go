package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/cache"
	"github.com/kopibar/pos/internal/config"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/handler"
	mw "github.com/kopibar/pos/internal/middleware"
	"github.com/kopibar/pos/internal/service"
	"github.com/kopibar/pos/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, state *appstate.Store, c cache.Cache, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// The websocket authenticates itself from the header or ?token=.
	r.Get("/ws", ws.Handler(hub, cfg.JWTSecret, cfg.CORSOrigins))

	orderSvc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, state)
	sessionSvc := service.NewSessionService(pool, func(db database.DBTX) service.SessionStore {
		return database.New(db)
	}, cfg.SessionRetention)
	analyticsSvc := service.NewAnalyticsService(queries, c, cfg.AnalyticsCacheTTL)

	adminHandler := handler.NewAdminHandler(sessionSvc, state, analyticsSvc, hub)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(orderSvc, hub, analyticsSvc, cfg.ActiveOrderWindow)
		r.Route("/orders", orderHandler.RegisterRoutes)

		ticketHandler := handler.NewTicketHandler(queries, hub)
		r.Route("/drink-tickets", ticketHandler.RegisterRoutes)

		menuHandler := handler.NewMenuHandler(queries, hub)
		menuHandler.RegisterRoutes(r)

		settingsHandler := handler.NewSettingsHandler(queries, hub)
		settingsHandler.RegisterRoutes(r)

		// Every role reads the store status
		adminHandler.RegisterStatusRoute(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			r.Route("/admin", adminHandler.RegisterRoutes)
		})
	})

	return r
}
