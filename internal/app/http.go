package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/handler"
	"github.com/cuckooeats/backoffice/internal/kanban"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/observability"
	"github.com/cuckooeats/backoffice/internal/realtime"
	"github.com/cuckooeats/backoffice/internal/repository"
	"github.com/cuckooeats/backoffice/internal/router"
	"github.com/cuckooeats/backoffice/internal/service"
	"github.com/cuckooeats/backoffice/internal/store"
	"github.com/cuckooeats/backoffice/internal/ws"
)

var HTTPModule = fx.Module("http",
	fx.Provide(newOrderHandler, newRegistry, newWSHandler, newRouter),
	fx.Invoke(runServer),
)

func newOrderHandler(cfg *config.Config, board *store.Store, repo *repository.Repository, svc *service.OrderService, log *zap.Logger) *handler.OrderHandler {
	return handler.NewOrderHandler(board, repo, svc, cfg.Location(), log.Named("orders"))
}

func newRegistry(lc fx.Lifecycle) *ws.Registry {
	reg := ws.NewRegistry()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			reg.Shutdown()
			return nil
		},
	})
	return reg
}

func newWSHandler(cfg *config.Config, repo *repository.Repository, hub *realtime.Hub, reg *ws.Registry, log *zap.Logger, m *metrics.Metrics) *ws.Handler {
	deps := ws.Deps{
		Repo: repo,
		Feed: hub,
		Thresholds: kanban.Thresholds{
			MouseDistance:  cfg.Gesture.MouseDistance,
			MouseDelay:     cfg.Gesture.MouseDelay,
			TouchDelay:     cfg.Gesture.TouchDelay,
			TouchTolerance: cfg.Gesture.TouchTolerance,
		},
		Location: cfg.Location(),
		Logger:   log.Named("ws"),
		Metrics:  m,
	}
	return ws.NewHandler(deps, reg, cfg.AllowedOrigins)
}

func newRouter(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, t *observability.Tracing, orders *handler.OrderHandler, wsh *ws.Handler, pool *pgxpool.Pool, reg *ws.Registry) http.Handler {
	return router.New(router.Params{
		Config:   cfg,
		Logger:   log.Named("http"),
		Metrics:  m,
		Orders:   orders,
		WS:       wsh,
		DB:       pool,
		Sessions: reg,
		Tracing:  t.Enabled(),
	})
}

func runServer(lc fx.Lifecycle, cfg *config.Config, h http.Handler, log *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server started", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}
