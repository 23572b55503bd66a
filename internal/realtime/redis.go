package realtime

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisSource struct {
	client  *goredis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisSource(url, channel string, logger *zap.Logger) (*RedisSource, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSource{client: goredis.NewClient(opts), channel: channel, logger: logger}, nil
}

func (s *RedisSource) Name() string { return "redis" }

func (s *RedisSource) Listen(ctx context.Context, deliver func(ChangeEvent)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("redis change feed connected", zap.String("channel", s.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			evt, err := ParseChangeEvent([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("ignoring malformed redis message", zap.Error(err))
				continue
			}
			deliver(evt)
		}
	}
}

type RedisPublisher struct {
	client  *goredis.Client
	channel string
}

func NewRedisPublisher(url, channel string) (*RedisPublisher, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPublisher{client: goredis.NewClient(opts), channel: channel}, nil
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	payload, err := evt.Marshal()
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
