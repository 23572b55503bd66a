package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/handler"
	"github.com/cuckooeats/backoffice/internal/metrics"
	mw "github.com/cuckooeats/backoffice/internal/middleware"
)

const healthTimeout = 2 * time.Second

// Pinger reports database reachability. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter is satisfied by *ws.Registry.
type SessionCounter interface {
	Count() int
}

type Params struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Orders   *handler.OrderHandler
	WS       http.Handler
	DB       Pinger
	Sessions SessionCounter
	Tracing  bool
}

// New creates a Chi router with all application routes wired up.
func New(p Params) http.Handler {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(p.Logger))
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   p.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", health(p.DB, p.Sessions))
	r.Method(http.MethodGet, p.Config.Observability.MetricsPath, p.Metrics.Handler())

	// Protected routes (staff only)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(p.Config.JWTSecret))

		// WebSocket route; browsers pass the token as ?token=
		r.Method(http.MethodGet, "/ws/orders", p.WS)

		r.Route("/orders", func(r chi.Router) {
			p.Orders.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdministrador))
				p.Orders.RegisterAdminRoutes(r)
			})
		})
	})

	if p.Tracing {
		return otelhttp.NewHandler(r, p.Config.Observability.ServiceName)
	}
	return r
}

func health(db Pinger, sessions SessionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		body := map[string]any{"status": status}
		if sessions != nil {
			body["sessions"] = sessions.Count()
		}
		handler.WriteJSON(w, code, body)
	}
}
