package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/order"
)

const initialBackoff = 500 * time.Millisecond

// Source is an upstream change feed. Listen blocks, handing every event to
// deliver, until ctx is cancelled or the upstream connection fails.
type Source interface {
	Name() string
	Listen(ctx context.Context, deliver func(ChangeEvent)) error
}

// Publisher forwards change events to a broker.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt ChangeEvent) error
	Close() error
}

// NewSource builds the configured change feed.
func NewSource(cfg config.Realtime, pool *pgxpool.Pool, logger *zap.Logger) (Source, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresSource(pool, cfg.Channel, logger), nil
	case "redis":
		return NewRedisSource(cfg.RedisURL, cfg.Channel, logger)
	case "rabbitmq":
		return NewAMQPSource(cfg.AMQPURL, cfg.AMQPExchange, logger), nil
	case "kafka":
		return NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, logger), nil
	case "none":
		return NoneSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported realtime driver: %s", cfg.Driver)
	}
}

// NewPublisher builds the broker publisher used to relay database
// notifications. Only broker drivers can be relayed to.
func NewPublisher(cfg config.Realtime, logger *zap.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisPublisher(cfg.RedisURL, cfg.Channel)
	case "rabbitmq":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	default:
		return nil, fmt.Errorf("driver %q has no broker to relay to", cfg.Driver)
	}
}

// Pump keeps src connected and feeds its events into hub, reconnecting with
// exponential back-off. It returns when ctx is cancelled.
func Pump(ctx context.Context, src Source, hub *Hub, logger *zap.Logger, m *metrics.Metrics, maxBackoff time.Duration) {
	Run(ctx, src, hub.Publish, logger, m, maxBackoff)
}

// Run is Pump with an arbitrary sink.
func Run(ctx context.Context, src Source, deliver func(ChangeEvent), logger *zap.Logger, m *metrics.Metrics, maxBackoff time.Duration) {
	backoff := initialBackoff
	for {
		started := time.Now()
		err := src.Listen(ctx, deliver)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > maxBackoff {
			backoff = initialBackoff
		}

		subErr := &order.Error{Kind: order.KindSubscription, Op: "listen " + src.Name(), Err: err}
		logger.Warn("change feed disconnected",
			zap.String("driver", src.Name()),
			zap.Duration("retry_in", backoff),
			zap.Error(subErr),
		)
		m.ObserveFeedError(src.Name())

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Relay forwards every event from src to pub until ctx is cancelled.
func Relay(ctx context.Context, src Source, pub Publisher, logger *zap.Logger, m *metrics.Metrics, maxBackoff time.Duration) {
	Run(ctx, src, func(evt ChangeEvent) {
		if err := pub.Publish(ctx, evt); err != nil {
			logger.Error("relay publish failed",
				zap.String("publisher", pub.Name()),
				zap.Int64("order_id", evt.OrderID),
				zap.Error(err),
			)
			return
		}
		logger.Debug("relayed change", zap.String("type", evt.Type), zap.Int64("order_id", evt.OrderID))
	}, logger, m, maxBackoff)
}

// NoneSource never produces events; clients fall back to manual refresh.
type NoneSource struct{}

func (NoneSource) Name() string { return "none" }

func (NoneSource) Listen(ctx context.Context, _ func(ChangeEvent)) error {
	<-ctx.Done()
	return ctx.Err()
}
