package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/realtime"
	"github.com/cuckooeats/backoffice/internal/repository"
	"github.com/cuckooeats/backoffice/internal/store"
)

var RealtimeModule = fx.Module("realtime",
	fx.Provide(newHub, newSource),
	fx.Invoke(runFeed),
)

var BoardModule = fx.Module("board",
	fx.Provide(newBoard),
)

// newHub runs the fan-out hub for the lifetime of the app.
func newHub(lc fx.Lifecycle, log *zap.Logger) *realtime.Hub {
	hub := realtime.NewHub(log.Named("hub"))
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return hub
}

func newSource(cfg *config.Config, pool *pgxpool.Pool, log *zap.Logger) (realtime.Source, error) {
	return realtime.NewSource(cfg.Realtime, pool, log.Named("feed"))
}

// runFeed pumps the configured source into the hub until shutdown.
func runFeed(lc fx.Lifecycle, cfg *config.Config, src realtime.Source, hub *realtime.Hub, log *zap.Logger, m *metrics.Metrics) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("order change feed starting", zap.String("driver", src.Name()))
			go func() {
				defer close(done)
				realtime.Pump(ctx, src, hub, log.Named("feed"), m, cfg.Realtime.ReconnectMax)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// newBoard builds the process-level order store behind the REST endpoints.
// It has no browser to notify, so alerts are dropped.
func newBoard(lc fx.Lifecycle, repo *repository.Repository, hub *realtime.Hub, log *zap.Logger, m *metrics.Metrics) *store.Store {
	log = log.Named("board")
	s := store.New(repo, log)
	s.SetSubscriber(realtime.NewListener(hub, s.FetchOrders, realtime.NopNotifier{}, realtime.NopSound{}, log, m))

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.Start(ctx); err != nil {
					log.Warn("initial order fetch failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			s.Close()
			return nil
		},
	})
	return s
}
