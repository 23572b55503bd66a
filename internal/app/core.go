package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/logger"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/observability"
	"github.com/cuckooeats/backoffice/internal/repository"
	"github.com/cuckooeats/backoffice/internal/service"
)

const connectTimeout = 10 * time.Second

var ConfigModule = fx.Module("config",
	fx.Provide(config.Load),
)

var LoggerModule = fx.Module("logger",
	fx.Provide(newLogger),
)

var ObservabilityModule = fx.Module("observability",
	fx.Provide(metrics.New, newTracing),
)

var DatabaseModule = fx.Module("database",
	fx.Provide(newPool, newQueries),
)

var OrdersModule = fx.Module("orders",
	fx.Provide(newRepository, newOrderService),
)

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Observability)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*observability.Tracing, error) {
	t, err := observability.NewTracing(cfg.Observability, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			t.Install()
			return nil
		},
		OnStop: t.Shutdown,
	})
	return t, nil
}

func newPool(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}
			log.Info("database connected")
			return nil
		},
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newQueries(pool *pgxpool.Pool) *database.Queries {
	return database.New(pool)
}

func newRepository(pool *pgxpool.Pool, q *database.Queries, m *metrics.Metrics) *repository.Repository {
	return repository.New(q, pool, func(db database.DBTX) repository.Store {
		return database.New(db)
	}, m)
}

func newOrderService(pool *pgxpool.Pool, log *zap.Logger) *service.OrderService {
	return service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, service.WithLogger(log))
}
