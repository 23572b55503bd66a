package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSource listens for the notifications raised by the orders trigger.
type PostgresSource struct {
	pool    *pgxpool.Pool
	channel string
	logger  *zap.Logger
}

func NewPostgresSource(pool *pgxpool.Pool, channel string, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{pool: pool, channel: channel, logger: logger}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Listen(ctx context.Context, deliver func(ChangeEvent)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer func() {
		// LISTEN state must not leak back into the pool.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
			conn.Conn().Close(unlistenCtx)
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}
	s.logger.Info("listening for order changes", zap.String("channel", s.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, err := ParseChangeEvent([]byte(n.Payload))
		if err != nil {
			s.logger.Warn("ignoring malformed notification", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		deliver(evt)
	}
}
