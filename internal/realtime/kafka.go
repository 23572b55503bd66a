package realtime

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaSource struct {
	brokers []string
	topic   string
	group   string
	logger  *zap.Logger
}

func NewKafkaSource(brokers []string, topic, group string, logger *zap.Logger) *KafkaSource {
	return &KafkaSource{brokers: brokers, topic: topic, group: group, logger: logger}
}

func (s *KafkaSource) Name() string { return "kafka" }

func (s *KafkaSource) Listen(ctx context.Context, deliver func(ChangeEvent)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.brokers,
		GroupID:  s.group,
		Topic:    s.topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		Logger:   kafkaLogger{logger: s.logger},
	})
	defer reader.Close()

	s.logger.Info("kafka change feed connected", zap.String("topic", s.topic), zap.String("group", s.group))

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		evt, err := ParseChangeEvent(msg.Value)
		if err != nil {
			s.logger.Warn("ignoring malformed kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			deliver(evt)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish keys by order id so every change to one order lands on the same
// partition, in order.
func (p *KafkaPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	value, err := evt.Marshal()
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.OrderID, 10)),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
